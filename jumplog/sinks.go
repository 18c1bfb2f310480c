package jumplog

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/gjump/entrylog"
	"github.com/hazyhaar/gjump/jumplog/internal/sink"
)

// Sink is the output interface for rendered entry lists.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, retries int, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookRetries(retries), sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink, for panels living in the
// same binary.
func NewCallbackSink(fn entrylog.RenderFunc) Sink {
	return sink.NewCallback(fn)
}

// SinksFromConfig builds the configured sinks. Unknown types are skipped
// with a warning; an empty result falls back to stdout.
func SinksFromConfig(cfg *Config, logger *slog.Logger) []Sink {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, sc.Retries, logger))
		default:
			logger.Warn("jumplog: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, NewStdoutSink(nil))
	}
	return sinks
}
