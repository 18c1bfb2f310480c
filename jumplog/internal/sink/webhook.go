package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/gjump/entrylog"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("sink: closed")

// Webhook POSTs entry-list snapshots to a URL from a background worker.
// Render never blocks on the network: each call replaces the pending
// snapshot, and a delivery still retrying is abandoned once a newer one is
// queued, since every snapshot carries the whole list.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending *Snapshot
	seq     uint64

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; later delays double. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a Webhook sink and starts its delivery worker.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	go w.run()
	return w
}

// Render queues entries for delivery.
func (w *Webhook) Render(_ context.Context, entries []entrylog.Entry) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}

	snap := newSnapshot(entries)
	w.mu.Lock()
	w.pending = &snap
	w.seq++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the worker after one last attempt at the pending snapshot.
func (w *Webhook) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	<-w.stopped
	return nil
}

func (w *Webhook) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.deliver()
		case <-w.done:
			w.deliver()
			return
		}
	}
}

func (w *Webhook) take() (*Snapshot, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.pending
	w.pending = nil
	return snap, w.seq
}

func (w *Webhook) superseded(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq != seq
}

func (w *Webhook) deliver() {
	snap, seq := w.take()
	if snap == nil {
		return
	}
	body, err := json.Marshal(envelope{Type: "entries", Data: snap})
	if err != nil {
		w.logger.Error("webhook: marshal", "error", err)
		return
	}

	attempts := w.maxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.backoff << uint(attempt-1)):
			case <-w.done:
				attempts = attempt + 1 // shutting down: one last try, no more waiting
			}
			if w.superseded(seq) {
				w.logger.Debug("webhook: superseded", "attempt", attempt)
				return
			}
		}
		if lastErr = w.post(body); lastErr == nil {
			return
		}
		w.logger.Warn("webhook: delivery failed", "attempt", attempt+1, "error", lastErr)
	}
	w.logger.Error("webhook: giving up", "url", w.url, "entries", len(snap.Entries), "error", lastErr)
}

func (w *Webhook) post(body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}
