package gateway

import (
	"gorgonia.org/tensor"
)

// State represents the lifecycle state of the gateway.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
	StateClosed  State = "closed"
)

// Mode classifies a request as vision-grounded or text-only.
type Mode int

const (
	TextOnly Mode = iota
	Vision
)

func (m Mode) String() string {
	if m == Vision {
		return "vision"
	}
	return "text"
}

// ImageUpload is an uploaded image file as received from the client.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// InferenceRequest is one chat turn. It is never persisted.
type InferenceRequest struct {
	Prompt string
	Image  *ImageUpload
}

// PromptEnvelope is the tokenization-ready representation of a turn.
type PromptEnvelope struct {
	Mode Mode
	// UserContent is the user message handed to the chat template.
	UserContent string
	// FormattedText is the chat-template output before truncation.
	FormattedText string
	// InputIDs holds the trailing MaxSeqLen-1 tokens of FormattedText.
	InputIDs      []int
	AttentionMask []int
	// Pixels is nil in text-only mode until the fallback substitutes noise.
	Pixels tensor.Tensor
}

// Generation is the outcome of GenerationInvoker.Generate.
type Generation struct {
	// Raw is the decoded output including template scaffolding.
	Raw      string
	Attempts int
	Fallback bool
}

// ChatResult is returned by Gateway.Chat.
type ChatResult struct {
	Response string
	Mode     Mode
	Fallback bool
	Attempts int
	// Stripped reports whether a hallucinated opening sentence was removed.
	Stripped bool
}
