// Package gateway turns a chat request (prompt plus optional image) into a
// sanitized model reply. It is structured into small files by concern:
//
//   - gateway.go: Gateway type, Chat entry point, Ready/Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: request, mode and envelope types.
//   - errors.go: error types and helpers (IsTooBusy, IsImageDecode, ...).
//   - collaborators.go: interfaces for the tokenizer, chat template, image
//     preprocessor and generator that back the gateway.
//   - mode.go: mode resolution (vision vs text-only).
//   - prompt.go: prompt envelope construction and token truncation.
//   - invoker.go: generation with the one-shot noise-image fallback.
//   - noise.go: random-noise image synthesis for the fallback.
//   - sanitize.go: single-pass cleanup of raw generated text.
//   - admission.go: single in-flight generation gate with a bounded queue.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - status_report.go: Status reporting.
//
// Concrete collaborators live in package vlm. External packages should use the
// public methods only (New, Chat, Ready, Status, Close).
package gateway
