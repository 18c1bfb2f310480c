package capture

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/gjump/entrylog"
	"github.com/hazyhaar/gjump/hostdoc"
	"github.com/hazyhaar/gjump/idgen"
)

// Config for creating an Engine.
type Config struct {
	Document hostdoc.Document
	Log      *entrylog.Log
	Settings Settings
	Metrics  *Metrics
	// IdentityGen generates node identity tags. Default: "gj_" + UUIDv7.
	IdentityGen idgen.Generator
	Logger      *slog.Logger
}

// Engine runs the capture loop over one host document.
type Engine struct {
	doc      hostdoc.Document
	log      *entrylog.Log
	set      Settings
	tagger   *Tagger
	locator  *Locator
	authored *regexp.Regexp
	metrics  *Metrics
	logger   *slog.Logger

	// viewport is refreshed on every rescan; insertions read it from here.
	viewport hostdoc.Rect

	tasks    chan func(context.Context)
	deferred *deferredSet
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// New creates an Engine. The returned engine does nothing until Run.
func New(cfg Config) (*Engine, error) {
	if cfg.Document == nil {
		return nil, errors.New("capture: nil document")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Log == nil {
		cfg.Log = entrylog.New(entrylog.WithLogger(cfg.Logger))
	}
	cfg.Settings.Defaults()

	tagger, err := NewTagger(cfg.Settings.AncestorDepth, cfg.Settings.WrapperPattern, cfg.IdentityGen)
	if err != nil {
		return nil, err
	}
	locator, err := NewLocator(cfg.Document, cfg.Settings.TriggerVocabulary, cfg.Logger)
	if err != nil {
		return nil, err
	}
	authored, err := compileVocab("authored", cfg.Settings.AuthoredVocabulary)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		doc:      cfg.Document,
		log:      cfg.Log,
		set:      cfg.Settings,
		tagger:   tagger,
		locator:  locator,
		authored: authored,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tasks:    make(chan func(context.Context)),
		done:     make(chan struct{}),
	}
	e.deferred = newDeferredSet(e.done)
	return e, nil
}

// Run hydrates the log, instruments the document and processes host events
// until ctx is cancelled or the event feed closes. Run may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("capture: engine already running")
	}
	defer e.stop()

	e.log.Hydrate(ctx)
	e.refreshViewport(ctx)
	e.locator.Attach(ctx)
	e.logger.Info("capture: engine started", "entries", e.log.Len())

	rescan := time.NewTicker(e.set.RescanInterval)
	defer rescan.Stop()
	events := e.doc.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				e.logger.Info("capture: document closed")
				return nil
			}
			e.handle(ctx, ev)

		case f := <-e.deferred.fired:
			e.deferred.fire(ctx, f)

		case fn := <-e.tasks:
			fn(ctx)

		case <-rescan.C:
			e.refreshViewport(ctx)
			e.locator.Attach(ctx)
		}
	}
}

func (e *Engine) refreshViewport(ctx context.Context) {
	vp, err := e.doc.Viewport(ctx)
	if err != nil {
		e.logger.Debug("capture: viewport failed", "error", err)
		return
	}
	e.viewport = vp
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		e.deferred.cancelAll()
		close(e.done)
	})
}

// Done is closed when Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) handle(ctx context.Context, ev hostdoc.Event) {
	switch ev.Kind {
	case hostdoc.EventKey:
		e.onKey(ev)
	case hostdoc.EventClick:
		e.onClick()
	case hostdoc.EventInsert:
		e.onInsert(ctx, ev.Node)
	case hostdoc.EventUnload:
		e.onUnload(ctx)
	}
}

// onUnload wipes the session: the page is going away and nothing is meant
// to survive a reload.
func (e *Engine) onUnload(ctx context.Context) {
	e.deferred.cancelAll()
	e.log.Discard(ctx)
	e.logger.Info("capture: page unloaded, log discarded")
}

// do runs fn on the engine loop and waits for it.
func (e *Engine) do(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	task := func(lctx context.Context) {
		defer close(finished)
		fn(lctx)
	}
	select {
	case e.tasks <- task:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the log filtered by a case-insensitive substring.
func (e *Engine) Entries(ctx context.Context, filter string) ([]entrylog.Entry, error) {
	var out []entrylog.Entry
	err := e.do(ctx, func(context.Context) { out = e.log.Query(filter) })
	return out, err
}

// Clear empties the log and its persisted snapshot.
func (e *Engine) Clear(ctx context.Context) error {
	return e.do(ctx, func(lctx context.Context) {
		e.log.Clear(lctx)
		e.logger.Info("capture: log cleared")
	})
}
