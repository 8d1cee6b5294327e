package types

// ChatResponse is returned by POST /chat on success.
type ChatResponse struct {
	// Sanitized model reply.
	// example: Take the medicine twice daily.
	Response string `json:"response" example:"Take the medicine twice daily."`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: prompt is required
	Error string `json:"error" example:"prompt is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall gateway state (loading, ready, error, closed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Generator runtime description.
	// example: runtime http://127.0.0.1:5000
	Runtime string `json:"runtime,omitempty" example:"runtime http://127.0.0.1:5000"`
	// Requests waiting for the generation slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Generations currently running (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Chat requests accepted since start.
	// example: 12
	RequestsTotal uint64 `json:"requests_total" example:"12"`
	// Requests served in vision mode.
	// example: 4
	VisionTotal uint64 `json:"vision_total" example:"4"`
	// Requests served in text-only mode.
	// example: 8
	TextTotal uint64 `json:"text_total" example:"8"`
	// Noise-image fallbacks performed.
	// example: 2
	FallbacksTotal uint64 `json:"fallbacks_total" example:"2"`
	// Requests that ended in a fatal generation error.
	// example: 0
	FatalTotal uint64 `json:"fatal_total" example:"0"`
	// Last error observed by the gateway (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
