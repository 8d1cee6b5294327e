package e2e

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"medgate/internal/gateway"
	"medgate/pkg/types"
)

func decodeResponse(t *testing.T, body []byte) string {
	t.Helper()
	var out types.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
	return out.Response
}

func TestE2E_VisionChat(t *testing.T) {
	rt := newFakeRuntime(t, "The image shows a red rash. It may be contact dermatitis.")
	srv, _ := newStack(t, rt, stackOptions{})

	code, hdr, body := postChat(t, srv.URL, "what is this?", "arm.png", pngBytes(t, 40, 30))
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%s", code, body)
	}
	if got := decodeResponse(t, body); got != "It may be contact dermatitis." {
		t.Fatalf("response %q", got)
	}
	if hdr.Get("X-Chat-Mode") != "vision" || hdr.Get("X-Chat-Fallback") != "" {
		t.Fatalf("headers %v", hdr)
	}
	calls := rt.recorded()
	if len(calls) != 1 {
		t.Fatalf("expected one runtime call, got %d", len(calls))
	}
	px := calls[0].PixelValues
	if px == nil || len(px.Shape) != 4 || px.Shape[1] != 3 || px.Shape[2] != 16 || px.Shape[3] != 16 || len(px.Data) != 3*16*16 {
		t.Fatalf("pixel payload %+v", px)
	}
	prompt := runeTokenizer{}.Decode(calls[0].InputIDs, false)
	if !strings.Contains(prompt, "<|im_start|>user\n@@@@\nwhat is this?<|im_end|>") || !strings.HasSuffix(prompt, "<|im_start|>assistant\n") {
		t.Fatalf("prompt sent to runtime %q", prompt)
	}
}

func TestE2E_TextOnlyNoiseFallback(t *testing.T) {
	rt := newFakeRuntime(t, "多喝水，注意休息。")
	rt.requirePixels = true
	events := gateway.NewMemoryPublisher()
	srv, _ := newStack(t, rt, stackOptions{events: events})

	code, hdr, body := postChat(t, srv.URL, "感冒了怎么办", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%s", code, body)
	}
	if got := decodeResponse(t, body); got != "多喝水，注意休息。" {
		t.Fatalf("response %q", got)
	}
	if hdr.Get("X-Chat-Mode") != "text" || hdr.Get("X-Chat-Fallback") != "1" {
		t.Fatalf("headers %v", hdr)
	}
	calls := rt.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected primary attempt plus one fallback, got %d calls", len(calls))
	}
	if calls[0].PixelValues != nil {
		t.Fatalf("primary text-only attempt must not carry pixels")
	}
	if calls[1].PixelValues == nil || len(calls[1].PixelValues.Data) != 3*16*16 {
		t.Fatalf("fallback must carry a noise tensor, got %+v", calls[1].PixelValues)
	}
	prompt := runeTokenizer{}.Decode(calls[0].InputIDs, false)
	if !strings.Contains(prompt, "仅作为纯文本医疗助手") || !strings.Contains(prompt, "用户问题：感冒了怎么办") || strings.Contains(prompt, "@@@@") {
		t.Fatalf("text-only prompt %q", prompt)
	}
	if events.Count(gateway.EventFallback) != 1 || events.Count(gateway.EventChatEnd) != 1 {
		t.Fatalf("events %+v", events.Events())
	}

	resp, sbody := httpGet(t, srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(sbody, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "ready" || st.FallbacksTotal != 1 || st.TextTotal != 1 || st.RequestsTotal != 1 {
		t.Fatalf("status %+v", st)
	}
}

func TestE2E_BadImageIs422(t *testing.T) {
	rt := newFakeRuntime(t, "unused")
	srv, _ := newStack(t, rt, stackOptions{})

	code, _, body := postChat(t, srv.URL, "look", "scan.jpg", []byte("definitely not a jpeg"))
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", code, body)
	}
	if len(rt.recorded()) != 0 {
		t.Fatalf("runtime must not be called for an undecodable image")
	}
}

func TestE2E_MissingPromptIs400(t *testing.T) {
	rt := newFakeRuntime(t, "unused")
	srv, _ := newStack(t, rt, stackOptions{})
	if code, _, _ := postChat(t, srv.URL, "", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

// TestE2E_Backpressure429 verifies 429 when the queue is full while a
// generation is in flight.
func TestE2E_Backpressure429(t *testing.T) {
	rt := newFakeRuntime(t, "ok.")
	rt.hold = make(chan struct{})
	srv, _ := newStack(t, rt, stackOptions{maxQueueDepth: 1, maxWait: 50 * time.Millisecond})

	var wg sync.WaitGroup
	var firstCode int
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstCode, _, _ = postChat(t, srv.URL, "first", "", nil)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for rt.inflight.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first request never reached the runtime")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code, _, body := postChat(t, srv.URL, "second", "", nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", code, body)
	}
	close(rt.hold)
	wg.Wait()
	if firstCode != http.StatusOK {
		t.Fatalf("in-flight request status %d", firstCode)
	}
}

func TestE2E_MetricsExposeChatCounters(t *testing.T) {
	rt := newFakeRuntime(t, "fine.")
	srv, _ := newStack(t, rt, stackOptions{})
	if code, _, _ := postChat(t, srv.URL, "hi", "", nil); code != http.StatusOK {
		t.Fatalf("chat status %d", code)
	}
	resp, body := httpGet(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status %d", resp.StatusCode)
	}
	for _, name := range []string{"medgate_chat_requests_total", "medgate_chat_generation_duration_seconds", "medgate_http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %s missing", name)
		}
	}
}
