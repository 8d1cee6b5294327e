package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPromptRequired is returned when the prompt is empty or whitespace.
var ErrPromptRequired = errors.New("prompt is required")

// IsPromptRequired reports whether err indicates a missing prompt.
func IsPromptRequired(err error) bool { return errors.Is(err, ErrPromptRequired) }

// ImageDecodeError signals that an attached image could not be decoded.
type ImageDecodeError struct {
	Filename string
	Err      error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Filename, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

func (e *ImageDecodeError) StatusCode() int { return http.StatusUnprocessableEntity }

// IsImageDecode reports whether err is an ImageDecodeError.
func IsImageDecode(err error) bool {
	var de *ImageDecodeError
	return errors.As(err, &de)
}

// GenerationInterfaceError is the generator's rejection of a nil pixel tensor.
// The invoker recovers from it with the noise-image fallback; it is never
// returned to callers on its own.
type GenerationInterfaceError struct{ Detail string }

func (e *GenerationInterfaceError) Error() string {
	if e.Detail == "" {
		return "generator requires a pixel tensor"
	}
	return "generator requires a pixel tensor: " + e.Detail
}

// ErrPixelTensorRequired constructs a GenerationInterfaceError.
func ErrPixelTensorRequired(detail string) error { return &GenerationInterfaceError{Detail: detail} }

// IsPixelTensorRequired reports whether err is the nil-tensor rejection.
func IsPixelTensorRequired(err error) bool {
	var ie *GenerationInterfaceError
	return errors.As(err, &ie)
}

// GenerationFatalError is returned when generation fails for good: any
// generator failure in vision mode, any failure that is not the nil-tensor
// rejection, or a failed fallback attempt.
type GenerationFatalError struct {
	Mode     Mode
	Attempts int
	Err      error
}

func (e *GenerationFatalError) Error() string {
	return fmt.Sprintf("generation failed (mode=%s attempts=%d): %v", e.Mode, e.Attempts, e.Err)
}

func (e *GenerationFatalError) Unwrap() error { return e.Err }

func (e *GenerationFatalError) StatusCode() int { return http.StatusBadGateway }

// IsGenerationFatal reports whether err is a GenerationFatalError.
func IsGenerationFatal(err error) bool {
	var fe *GenerationFatalError
	return errors.As(err, &fe)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(reason string) error { return tooBusyError{reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// dependencyUnavailableError signals a missing model runtime so the HTTP layer
// can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
