package gateway

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"gorgonia.org/tensor"
)

// chatmlTemplate renders messages the way the served model expects.
type chatmlTemplate struct{ err error }

func (c chatmlTemplate) Apply(messages []Message, addGenerationPrompt bool) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	var b strings.Builder
	for _, m := range messages {
		b.WriteString("<|im_start|>" + m.Role + "\n" + m.Content + "<|im_end|>\n")
	}
	if addGenerationPrompt {
		b.WriteString("<|im_start|>assistant\n")
	}
	return b.String(), nil
}

// runeTokenizer maps every rune to its code point.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, int(r))
	}
	return ids, nil
}

func (runeTokenizer) Decode(ids []int, _ bool) string {
	rs := make([]rune, len(ids))
	for i, id := range ids {
		rs[i] = rune(id)
	}
	return string(rs)
}

func (runeTokenizer) TokenID(token string) (int, bool) {
	rs := []rune(token)
	if len(rs) != 1 {
		return 0, false
	}
	return int(rs[0]), true
}

func encode(s string) []int {
	ids, _ := runeTokenizer{}.Encode(s)
	return ids
}

// fakePreprocessor returns a tiny tensor and records the images it saw.
type fakePreprocessor struct {
	mu     sync.Mutex
	err    error
	bounds []image.Rectangle
}

func (p *fakePreprocessor) Preprocess(img image.Image) (tensor.Tensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bounds = append(p.bounds, img.Bounds())
	if p.err != nil {
		return nil, p.err
	}
	return tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float32, 12))), nil
}

func (p *fakePreprocessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bounds)
}

// fakeGenerator answers each call through fn and records the requests.
type fakeGenerator struct {
	mu     sync.Mutex
	fn     func(call int, req GenerateRequest) ([]int, error)
	reqs   []GenerateRequest
	closed bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) ([]int, error) {
	f.mu.Lock()
	call := len(f.reqs)
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn(call, req)
}

func (f *fakeGenerator) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeGenerator) requests() []GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerateRequest(nil), f.reqs...)
}

// pixelHungry mimics a vision model that rejects a nil pixel tensor and
// otherwise answers with reply.
func pixelHungry(reply string) *fakeGenerator {
	return &fakeGenerator{fn: func(_ int, req GenerateRequest) ([]int, error) {
		if req.Pixels == nil {
			return nil, ErrPixelTensorRequired("pixel_values is None")
		}
		return encode(reply), nil
	}}
}

func replying(reply string) *fakeGenerator {
	return &fakeGenerator{fn: func(int, GenerateRequest) ([]int, error) { return encode(reply), nil }}
}

// pngBytes encodes a small solid image.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestGateway(t *testing.T, gen Generator, mutate func(*Config)) *Gateway {
	t.Helper()
	cfg := Config{
		Template:     chatmlTemplate{},
		Tokenizer:    runeTokenizer{},
		Preprocessor: &fakePreprocessor{},
		Generator:    gen,
		ImageMarker:  "@@@@",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
