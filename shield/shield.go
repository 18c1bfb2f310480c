// Package shield hardens the local panel API: security headers, loopback
// Host checks, body limits, request ids and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.PanelStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// PanelStack returns the middleware stack for the gjump panel, outermost
// first: HeadToGet, LoopbackOnly, SecurityHeaders, MaxBody, RequestID.
func PanelStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		LoopbackOnly,
		SecurityHeaders(PanelHeaders()),
		MaxBody(64 * 1024),
		RequestID(logger),
	}
}
