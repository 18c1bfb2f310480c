package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/gjump/entrylog"
)

// DefaultRenderTimeout bounds each sink's Render call.
const DefaultRenderTimeout = 2 * time.Second

// Router fans entry lists out to every sink in order. A failing sink is
// logged and does not stop the others; the joined errors are returned.
// Router implements entrylog.Renderer, so it can be handed to the log as is.
type Router struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
}

var _ entrylog.Renderer = (*Router)(nil)

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, timeout: DefaultRenderTimeout, logger: logger}
}

// Render implements Sink and entrylog.Renderer.
func (r *Router) Render(ctx context.Context, entries []entrylog.Entry) error {
	var errs []error
	for i, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := s.Render(sctx, entries)
		cancel()
		if err != nil {
			r.logger.Warn("sink: render failed", "sink", i, "entries", len(entries), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (r *Router) Close() error {
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
