package httpapi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"medgate/internal/gateway"
	"medgate/pkg/types"
)

type mockService struct {
	mu      sync.Mutex
	status  types.StatusResponse
	ready   bool
	chatErr error
	result  gateway.ChatResult
	got     []gateway.InferenceRequest
	block   bool
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Chat(ctx context.Context, req gateway.InferenceRequest) (gateway.ChatResult, error) {
	m.mu.Lock()
	m.got = append(m.got, req)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return gateway.ChatResult{}, ctx.Err()
	}
	if m.chatErr != nil {
		return gateway.ChatResult{}, m.chatErr
	}
	res := m.result
	if res.Response == "" {
		res.Response = "echo: " + req.Prompt
		res.Mode = gateway.Resolve(req)
	}
	return res, nil
}

func (m *mockService) requests() []gateway.InferenceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.InferenceRequest(nil), m.got...)
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

// multipartChat builds a POST /chat request with an optional image part.
func multipartChat(t *testing.T, prompt, filename string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("prompt", prompt); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if image != nil || filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
