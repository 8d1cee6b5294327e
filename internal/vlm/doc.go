// Package vlm provides the concrete collaborators behind the chat gateway: a
// text/template chat template, tokenizers loaded from a HuggingFace
// tokenizer.json, a CLIP image preprocessor producing gorgonia tensors, and an
// HTTP client for the model runtime that performs generation.
//
// The pure-Go tokenizer (sugarme/tokenizer) is the default. Build with
// -tags rust_tokenizers to use the Rust bindings (daulet/tokenizers), which
// require libtokenizers.a at link time.
package vlm
