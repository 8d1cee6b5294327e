package gateway

import (
	"context"
	"image"

	"gorgonia.org/tensor"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string
	Content string
}

// ChatTemplate renders messages into model-ready text. With
// addGenerationPrompt set, the assistant turn opener is appended.
type ChatTemplate interface {
	Apply(messages []Message, addGenerationPrompt bool) (string, error)
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int, skipSpecialTokens bool) string
	// TokenID resolves a single token (e.g. "<|im_end|>") to its id.
	TokenID(token string) (int, bool)
}

// ImagePreprocessor converts a decoded image into the pixel tensor consumed by
// the generator.
type ImagePreprocessor interface {
	Preprocess(img image.Image) (tensor.Tensor, error)
}

// GenerationParams are fixed per deployment and read-only after startup.
type GenerationParams struct {
	Temperature       float32
	TopP              float32
	RepetitionPenalty float32
	MaxNewTokens      int
	DoSample          bool
	PadTokenID        int
	EOSTokenID        int
}

// GenerateRequest is one call into the generator.
type GenerateRequest struct {
	InputIDs      []int
	AttentionMask []int
	// Pixels may be nil; generators that need a visual input reject that
	// with ErrPixelTensorRequired.
	Pixels tensor.Tensor
	Params GenerationParams
}

// Generator produces output token ids. Implementations must return when the
// context is canceled.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]int, error)
	// Close releases the model handle.
	Close() error
}

// Pinger is implemented by generators that can report runtime readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// unavailableGenerator is used when no runtime is configured. It refuses to
// generate instead of returning mocked output.
type unavailableGenerator struct{ reason string }

// Unavailable returns a Generator whose every call fails with a
// dependency-unavailable error carrying reason.
func Unavailable(reason string) Generator { return unavailableGenerator{reason: reason} }

func (u unavailableGenerator) Generate(ctx context.Context, _ GenerateRequest) ([]int, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return nil, ErrDependencyUnavailable(u.reason)
}

func (u unavailableGenerator) Close() error { return nil }

func (u unavailableGenerator) Ping(context.Context) error { return ErrDependencyUnavailable(u.reason) }
