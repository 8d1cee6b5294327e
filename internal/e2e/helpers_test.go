package e2e

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"medgate/internal/gateway"
	"medgate/internal/httpapi"
	"medgate/internal/vlm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runeTokenizer maps every rune to its code point. Special tokens are not
// distinguished, so decoding is lossless.
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

func (runeTokenizer) TokenID(string) (int, bool) { return 0, true }

// runtimeCall is what the fake runtime saw for one /generate request.
type runtimeCall struct {
	InputIDs    []int `json:"input_ids"`
	PixelValues *struct {
		Shape []int     `json:"shape"`
		Data  []float32 `json:"data"`
	} `json:"pixel_values"`
	MaxNewTokens int `json:"max_new_tokens"`
}

// fakeRuntime speaks the runtime wire protocol. The model echoes its input
// followed by answer and the end-of-turn token, like a decoder returning the
// full sequence.
type fakeRuntime struct {
	srv *httptest.Server

	// requirePixels rejects requests without pixel_values.
	requirePixels bool
	// hold delays every generation until released.
	hold chan struct{}
	// inflight counts generations currently held.
	inflight atomic.Int32

	mu     sync.Mutex
	answer string
	calls  []runtimeCall
}

func newFakeRuntime(t *testing.T, answer string) *fakeRuntime {
	t.Helper()
	rt := &fakeRuntime{answer: answer}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/generate", rt.generate)
	rt.srv = httptest.NewServer(mux)
	t.Cleanup(rt.srv.Close)
	return rt
}

func (rt *fakeRuntime) generate(w http.ResponseWriter, r *http.Request) {
	var call runtimeCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rt.mu.Lock()
	rt.calls = append(rt.calls, call)
	answer := rt.answer
	rt.mu.Unlock()

	if rt.requirePixels && call.PixelValues == nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"pixel_values_required","detail":"vision tower expects an image"}`))
		return
	}
	if rt.hold != nil {
		rt.inflight.Add(1)
		select {
		case <-rt.hold:
		case <-r.Context().Done():
		}
		rt.inflight.Add(-1)
	}
	out := append(append([]int(nil), call.InputIDs...), encode(answer+"<|im_end|>")...)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"output_ids": out})
}

func (rt *fakeRuntime) recorded() []runtimeCall {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]runtimeCall(nil), rt.calls...)
}

func encode(s string) []int {
	ids, _ := runeTokenizer{}.Encode(s)
	return ids
}

type stackOptions struct {
	maxQueueDepth int
	maxWait       time.Duration
	events        gateway.EventPublisher
}

// newStack wires the real HTTP layer, gateway, template, preprocessor and
// runtime client against rt.
func newStack(t *testing.T, rt *fakeRuntime, opts stackOptions) (*httptest.Server, *gateway.Gateway) {
	t.Helper()
	tmpl, err := vlm.NewTemplate("", "", "<|im_end|>")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	gw, err := gateway.New(gateway.Config{
		Template:     tmpl,
		Tokenizer:    runeTokenizer{},
		Preprocessor: vlm.NewCLIPPreprocessor(16),
		Generator:    vlm.NewRuntimeClient(rt.srv.URL, "", time.Second),
		Params: gateway.GenerationParams{
			Temperature: 0.3, TopP: 0.85, RepetitionPenalty: 1.1, MaxNewTokens: 128, DoSample: true,
		},
		ImageMarker:     "@@@@",
		MaxQueueDepth:   opts.maxQueueDepth,
		MaxWait:         opts.maxWait,
		GenerateTimeout: 5 * time.Second,
		Events:          opts.events,
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := gw.Warmup(ctx); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(gw))
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Close()
	})
	return srv, gw
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

// postChat sends a multipart /chat request and returns the status, headers
// and body.
func postChat(t *testing.T, base, prompt, filename string, image []byte) (int, http.Header, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("prompt", prompt)
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(image)
	}
	_ = mw.Close()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/chat", &buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, resp.Header, body
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
