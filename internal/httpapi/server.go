package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medgate/internal/gateway"
	"medgate/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Chat(ctx context.Context, req gateway.InferenceRequest) (gateway.ChatResult, error)
	Status() types.StatusResponse
	Ready() bool
}

// Response headers describing how a chat turn was served.
const (
	HeaderChatMode     = "X-Chat-Mode"
	HeaderChatFallback = "X-Chat-Fallback"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json", "text/plain"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{HeaderChatMode, HeaderChatFallback, middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Post("/chat", chatHandler(svc))
	r.Get("/status", statusHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// statusHandler godoc
//
//	@Summary	Gateway status
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// chatHandler godoc
//
//	@Summary		Chat with the medical assistant
//	@Description	Answers a prompt, grounded on the uploaded image when one is attached.
//	@Tags			chat
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			prompt	formData	string	true	"User question"
//	@Param			image	formData	file	false	"Optional image"
//	@Success		200		{object}	types.ChatResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		413		{object}	types.ErrorResponse
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		422		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Failure		504		{object}	types.ErrorResponse
//	@Router			/chat [post]
func chatHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)

		req, status, err := parseChatRequest(w, r)
		if err != nil {
			writeJSONError(w, status, err.Error())
			logChatEnd(r, lvl, status, "", start, err)
			return
		}
		mode := gateway.Resolve(req).String()
		if lvl >= LevelDebug && zlog != nil {
			z := zlog.Debug().Str("mode", mode).Int("prompt_len", len(req.Prompt))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("chat start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := requestContext(r, lvl)
		defer cancel()
		res, err := svc.Chat(ctx, req)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if shuttingDown(r) {
				logChatEnd(r, lvl, 499, mode, start, err)
				return
			}
			status := statusFor(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure(backpressureReason(err))
			}
			writeJSONError(w, status, err.Error())
			reportError(r, status, err)
			logChatEnd(r, lvl, status, mode, start, err)
			return
		}

		w.Header().Set(HeaderChatMode, res.Mode.String())
		if res.Fallback {
			w.Header().Set(HeaderChatFallback, "1")
		}
		writeJSON(w, http.StatusOK, types.ChatResponse{Response: res.Response})
		logChatEnd(r, lvl, http.StatusOK, res.Mode.String(), start, nil)
	}
}

var (
	errUnsupportedMedia = errors.New("Content-Type must be multipart/form-data or application/x-www-form-urlencoded")
	errBodyTooLarge     = errors.New("request body too large")
	errInvalidForm      = errors.New("invalid form body")
)

// parseChatRequest reads the prompt field and the optional image file. On
// failure it returns the HTTP status to answer with.
func parseChatRequest(w http.ResponseWriter, r *http.Request) (gateway.InferenceRequest, int, error) {
	var req gateway.InferenceRequest
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return req, http.StatusUnsupportedMediaType, errUnsupportedMedia
	}
	// Limit body size (configurable)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch strings.ToLower(mediaType) {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return req, formErrorStatus(err), formError(err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, formErrorStatus(err), formError(err)
		}
	default:
		return req, http.StatusUnsupportedMediaType, errUnsupportedMedia
	}

	req.Prompt = r.PostFormValue("prompt")
	if strings.TrimSpace(req.Prompt) == "" {
		return req, http.StatusBadRequest, gateway.ErrPromptRequired
	}
	if r.MultipartForm == nil {
		return req, 0, nil
	}
	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, 0, nil
	}
	if err != nil {
		return req, http.StatusBadRequest, errInvalidForm
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, formErrorStatus(err), formError(err)
	}
	req.Image = &gateway.ImageUpload{Filename: hdr.Filename, Data: data}
	return req, 0, nil
}

func formErrorStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func formError(err error) error {
	if formErrorStatus(err) == http.StatusRequestEntityTooLarge {
		return errBodyTooLarge
	}
	return errInvalidForm
}
