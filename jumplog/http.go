// CLAUDE:SUMMARY chi panel API over a Navigator: list/filter, jump, excerpt, clear, HTML panel, metrics and MCP mount.
package jumplog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/gjump/capture"
	"github.com/hazyhaar/gjump/shield"
)

// HandlerOptions wires optional routes into NewHandler.
type HandlerOptions struct {
	// Gatherer backs GET /metrics. Nil omits the route.
	Gatherer prometheus.Gatherer
	// MCP is served over streamable HTTP at /mcp. Nil omits the route.
	MCP    *mcp.Server
	Logger *slog.Logger
}

// NewHandler returns the panel HTTP API over nav.
func NewHandler(nav Navigator, opts HandlerOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.PanelStack(opts.Logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
	})

	r.Get("/", panelHandler(nav, opts.Logger))

	r.Route("/api/entries", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			entries, err := nav.Entries(req.Context(), req.URL.Query().Get("q"))
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, entries)
		})

		r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
			if err := nav.Clear(req.Context()); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/{id}/jump", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := nav.Jump(req.Context(), id); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id})
		})

		r.Get("/{id}/excerpt", func(w http.ResponseWriter, req *http.Request) {
			ex, err := nav.Excerpt(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, ex)
		})
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.MCP != nil {
		srv := opts.MCP
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

// Handler returns the panel API for this service, with metrics and MCP.
func (s *Service) Handler() http.Handler {
	return NewHandler(s, HandlerOptions{
		Gatherer: s.registry,
		MCP:      NewMCPServer(s, s.logger),
		Logger:   s.logger,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, capture.ErrUnknownEntry), errors.Is(err, capture.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
