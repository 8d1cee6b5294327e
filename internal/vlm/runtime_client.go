package vlm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gorgonia.org/tensor"

	"medgate/internal/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errPixelValuesRequired is the runtime's error code for a missing tensor.
const errPixelValuesRequired = "pixel_values_required"

// RuntimeClient implements gateway.Generator by talking to a model runtime
// server over HTTP. Deadlines come from the caller's context.
type RuntimeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRuntimeClient constructs a server-backed generator.
func NewRuntimeClient(baseURL, apiKey string, connectTimeout time.Duration) *RuntimeClient {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &RuntimeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: cli,
	}
}

// BaseURL returns the runtime address.
func (c *RuntimeClient) BaseURL() string { return c.baseURL }

type pixelPayload struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

type generateRequest struct {
	InputIDs          []int         `json:"input_ids"`
	AttentionMask     []int         `json:"attention_mask"`
	PixelValues       *pixelPayload `json:"pixel_values"`
	Temperature       float32       `json:"temperature"`
	TopP              float32       `json:"top_p"`
	RepetitionPenalty float32       `json:"repetition_penalty"`
	MaxNewTokens      int           `json:"max_new_tokens"`
	DoSample          bool          `json:"do_sample"`
	PadTokenID        int           `json:"pad_token_id"`
	EOSTokenID        int           `json:"eos_token_id"`
}

type generateResponse struct {
	OutputIDs []int `json:"output_ids"`
}

type runtimeError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Generate implements gateway.Generator.
func (c *RuntimeClient) Generate(ctx context.Context, req gateway.GenerateRequest) ([]int, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("runtime client not initialized")
	}
	pixels, err := encodePixels(req.Pixels)
	if err != nil {
		return nil, err
	}
	p := req.Params
	body, err := json.Marshal(generateRequest{
		InputIDs:          req.InputIDs,
		AttentionMask:     req.AttentionMask,
		PixelValues:       pixels,
		Temperature:       p.Temperature,
		TopP:              p.TopP,
		RepetitionPenalty: p.RepetitionPenalty,
		MaxNewTokens:      p.MaxNewTokens,
		DoSample:          p.DoSample,
		PadTokenID:        p.PadTokenID,
		EOSTokenID:        p.EOSTokenID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Translate context timeouts/cancels
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, gateway.ErrDependencyUnavailable("runtime unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var re runtimeError
		_ = json.Unmarshal(b, &re)
		switch {
		case resp.StatusCode == http.StatusUnprocessableEntity && re.Error == errPixelValuesRequired:
			return nil, gateway.ErrPixelTensorRequired(re.Detail)
		case resp.StatusCode == http.StatusServiceUnavailable:
			return nil, gateway.ErrDependencyUnavailable("runtime unavailable: " + strings.TrimSpace(string(b)))
		}
		return nil, errors.New("runtime http error: " + resp.Status + ": " + strings.TrimSpace(string(b)))
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return out.OutputIDs, nil
}

// Ping checks GET /health on the runtime.
func (c *RuntimeClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return gateway.ErrDependencyUnavailable("runtime unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return gateway.ErrDependencyUnavailable("runtime health: " + resp.Status)
	}
	return nil
}

// Close releases idle connections.
func (c *RuntimeClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RuntimeClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func encodePixels(t tensor.Tensor) (*pixelPayload, error) {
	if t == nil {
		return nil, nil
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("pixel tensor must be float32, got %T", t.Data())
	}
	return &pixelPayload{Shape: append([]int(nil), t.Shape()...), Data: data}, nil
}
