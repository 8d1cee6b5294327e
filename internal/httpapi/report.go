package httpapi

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
)

// reportErrors enables Sentry capture of 5xx responses. The process must
// have called sentry.Init.
var reportErrors bool

// EnableErrorReporting toggles Sentry capture of server-side failures.
func EnableErrorReporting(on bool) { reportErrors = on }

func reportError(r *http.Request, status int, err error) {
	if !reportErrors || err == nil || status < http.StatusInternalServerError {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(r)
		scope.SetTag("status", http.StatusText(status))
		scope.SetTag("path", routePatternOrPath(r))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			scope.SetTag("request_id", rid)
		}
		hub.CaptureException(err)
	})
}
