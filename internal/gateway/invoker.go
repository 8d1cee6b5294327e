package gateway

import (
	"context"
	"fmt"
	"image"
)

// Invoker calls the generator with a bounded fallback policy: a text-only
// request whose primary attempt is rejected for lacking a pixel tensor is
// retried exactly once with a random-noise tensor. Nothing else is retried.
type Invoker struct {
	gen        Generator
	tokenizer  Tokenizer
	preprocess ImagePreprocessor
	params     GenerationParams
	noise      func() image.Image
}

// NewInvoker constructs an Invoker. A nil noise source defaults to NoiseImage.
func NewInvoker(gen Generator, tok Tokenizer, pre ImagePreprocessor, params GenerationParams, noise func() image.Image) *Invoker {
	if noise == nil {
		noise = NoiseImage
	}
	return &Invoker{gen: gen, tokenizer: tok, preprocess: pre, params: params, noise: noise}
}

// Params returns the generation parameters used for every attempt.
func (iv *Invoker) Params() GenerationParams { return iv.params }

// Generate runs the primary attempt and, when allowed, the fallback attempt.
// Context errors are returned unwrapped; every other failure is a
// GenerationFatalError. On fallback env.Pixels is set to the noise tensor.
func (iv *Invoker) Generate(ctx context.Context, env *PromptEnvelope) (Generation, error) {
	req := GenerateRequest{
		InputIDs:      env.InputIDs,
		AttentionMask: env.AttentionMask,
		Pixels:        env.Pixels,
		Params:        iv.params,
	}
	ids, err := iv.gen.Generate(ctx, req)
	if err == nil {
		return Generation{Raw: iv.tokenizer.Decode(ids, true), Attempts: 1}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Generation{Attempts: 1}, ctxErr
	}
	if env.Mode != TextOnly || env.Pixels != nil || !IsPixelTensorRequired(err) {
		return Generation{Attempts: 1}, &GenerationFatalError{Mode: env.Mode, Attempts: 1, Err: err}
	}

	pixels, perr := iv.preprocess.Preprocess(iv.noise())
	if perr != nil {
		return Generation{Attempts: 1, Fallback: true}, &GenerationFatalError{
			Mode: env.Mode, Attempts: 1, Err: fmt.Errorf("preprocess noise image: %w", perr),
		}
	}
	env.Pixels = pixels
	req.Pixels = pixels

	ids, err = iv.gen.Generate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Generation{Attempts: 2, Fallback: true}, ctxErr
		}
		return Generation{Attempts: 2, Fallback: true}, &GenerationFatalError{
			Mode: env.Mode, Attempts: 2, Err: fmt.Errorf("fallback attempt: %w", err),
		}
	}
	return Generation{Raw: iv.tokenizer.Decode(ids, true), Attempts: 2, Fallback: true}, nil
}
