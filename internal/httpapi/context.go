package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// requestContext returns a context canceled when either the request or the
// server base context is done. It carries a logger tagged with the request id
// at the request's log level. The cancel func must be called when the
// handler ends.
func requestContext(r *http.Request, lvl LogLevel) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(serverBaseCtx, cancel)

	if zlog != nil {
		l := zlog.With().Str("request_id", middleware.GetReqID(r.Context())).Logger().Level(lvl.zerolog())
		ctx = l.WithContext(ctx)
	}
	return ctx, func() {
		stop()
		cancel()
	}
}

// shuttingDown reports whether the request ended because the client left or
// the server is stopping.
func shuttingDown(r *http.Request) bool {
	return r.Context().Err() != nil || serverBaseCtx.Err() != nil
}
