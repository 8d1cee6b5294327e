package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	// Decoders accepted for uploaded images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// PromptPlaceholder marks where the user prompt goes in the text-only template.
const PromptPlaceholder = "{prompt}"

// Defaults for prompt construction.
const (
	// One '@' per vision patch (14x14 patches of a
	// ViT-B/16 at 224px).
	defaultImageMarkerLen   = 196
	DefaultTextOnlyTemplate = "（系统指令：请忽略视觉感知，仅作为纯文本医疗助手回答问题）\n用户问题：" + PromptPlaceholder
	DefaultMaxSeqLen        = 8192
	// DefaultMaxImagePixels bounds width*height of an accepted upload.
	DefaultMaxImagePixels = 40_000_000
)

// DefaultImageMarker is the image placeholder token expected by the model.
var DefaultImageMarker = strings.Repeat("@", defaultImageMarkerLen)

// PromptBuilder assembles PromptEnvelopes. It holds no mutable state and is
// safe for concurrent use.
type PromptBuilder struct {
	template         ChatTemplate
	tokenizer        Tokenizer
	preprocess       ImagePreprocessor
	imageMarker      string
	textOnlyTemplate string
	maxSeqLen        int
	maxImagePixels   int
}

// NewPromptBuilder constructs a PromptBuilder. Empty marker/template and
// non-positive maxSeqLen fall back to package defaults.
func NewPromptBuilder(tmpl ChatTemplate, tok Tokenizer, pre ImagePreprocessor, imageMarker, textOnlyTemplate string, maxSeqLen int) *PromptBuilder {
	if imageMarker == "" {
		imageMarker = DefaultImageMarker
	}
	if textOnlyTemplate == "" {
		textOnlyTemplate = DefaultTextOnlyTemplate
	}
	if maxSeqLen <= 1 {
		maxSeqLen = DefaultMaxSeqLen
	}
	return &PromptBuilder{
		template:         tmpl,
		tokenizer:        tok,
		preprocess:       pre,
		imageMarker:      imageMarker,
		textOnlyTemplate: textOnlyTemplate,
		maxSeqLen:        maxSeqLen,
		maxImagePixels:   DefaultMaxImagePixels,
	}
}

// WithMaxImagePixels sets the largest width*height accepted before decoding.
// Non-positive n restores the default.
func (b *PromptBuilder) WithMaxImagePixels(n int) *PromptBuilder {
	if n <= 0 {
		n = DefaultMaxImagePixels
	}
	b.maxImagePixels = n
	return b
}

// ImageMarker returns the configured image marker token.
func (b *PromptBuilder) ImageMarker() string { return b.imageMarker }

// Build produces the envelope for req in the given mode. In vision mode the
// image is decoded and preprocessed; undecodable bytes yield ImageDecodeError.
func (b *PromptBuilder) Build(mode Mode, req InferenceRequest) (*PromptEnvelope, error) {
	// The marker may only ever appear where the builder puts it.
	prompt := stripMarker(req.Prompt, b.imageMarker)

	env := &PromptEnvelope{Mode: mode}
	switch mode {
	case Vision:
		if req.Image == nil {
			return nil, &ImageDecodeError{Err: errors.New("no image attached")}
		}
		img, err := decodeImage(req.Image.Data, b.maxImagePixels)
		if err != nil {
			return nil, &ImageDecodeError{Filename: req.Image.Filename, Err: err}
		}
		pixels, err := b.preprocess.Preprocess(img)
		if err != nil {
			return nil, fmt.Errorf("preprocess image: %w", err)
		}
		env.UserContent = b.imageMarker + "\n" + prompt
		env.Pixels = pixels
	default:
		env.UserContent = strings.ReplaceAll(b.textOnlyTemplate, PromptPlaceholder, prompt)
	}

	formatted, err := b.template.Apply([]Message{{Role: "user", Content: env.UserContent}}, true)
	if err != nil {
		return nil, fmt.Errorf("apply chat template: %w", err)
	}
	env.FormattedText = formatted

	ids, err := b.tokenizer.Encode(formatted)
	if err != nil {
		return nil, fmt.Errorf("tokenize prompt: %w", err)
	}
	env.InputIDs = truncateTail(ids, b.maxSeqLen-1)
	env.AttentionMask = make([]int, len(env.InputIDs))
	for i := range env.AttentionMask {
		env.AttentionMask[i] = 1
	}
	return env, nil
}

// truncateTail keeps the last n ids. The tail carries the user turn and the
// assistant opener, which must survive truncation.
func truncateTail(ids []int, n int) []int {
	if n <= 0 || len(ids) <= n {
		return ids
	}
	return append([]int(nil), ids[len(ids)-n:]...)
}

// stripMarker removes marker from s until none is left; a single pass can
// splice a new occurrence together from the remains.
func stripMarker(s, marker string) string {
	if marker == "" {
		return s
	}
	for strings.Contains(s, marker) {
		s = strings.ReplaceAll(s, marker, "")
	}
	return s
}

// decodeImage reads the header first so oversized images are rejected before
// the pixel buffer is allocated.
func decodeImage(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}
