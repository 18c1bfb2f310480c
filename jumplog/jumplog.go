// Package jumplog runs a gjump session: it drives Chrome on the chat page,
// binds the capture engine to it and serves the entry list to panels over
// HTTP and MCP.
//
// One Service observes one page. Main-frame navigations are handled by the
// engine (the log is discarded); Chrome recycling rebinds a fresh engine to
// a fresh tab, hydrated from the persisted snapshot.
package jumplog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hazyhaar/gjump/capture"
	"github.com/hazyhaar/gjump/entrylog"
	"github.com/hazyhaar/gjump/hostdoc"
	"github.com/hazyhaar/gjump/hostdoc/roddoc"
	"github.com/hazyhaar/gjump/jumplog/internal/browser"
	"github.com/hazyhaar/gjump/jumplog/internal/config"
	"github.com/hazyhaar/gjump/jumplog/internal/sink"
	"github.com/hazyhaar/gjump/kvstore"
)

// Version is reported by the MCP server and /health.
const Version = "0.3.0"

// Navigator is what panels need from a session.
type Navigator interface {
	Entries(ctx context.Context, query string) ([]entrylog.Entry, error)
	Jump(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Excerpt(ctx context.Context, id string) (*Excerpt, error)
}

// Service is the top-level orchestrator.
type Service struct {
	cfg      *config.Config
	mgr      *browser.Manager
	router   *sink.Router
	kv       kvstore.Store
	registry *prometheus.Registry
	metrics  *capture.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	engine *capture.Engine
	cancel context.CancelFunc
	tab    *browser.Tab
	doc    *roddoc.Document
}

var _ Navigator = (*Service)(nil)

// New creates a Service and opens the configured snapshot store. Rendered
// entry lists go to every sink.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	kv, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("jumplog: open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		NavigateTimeout:  cfg.Browser.NavigateTimeout,
		Logger:           logger,
	})

	return &Service{
		cfg:      cfg,
		mgr:      mgr,
		router:   sink.NewRouter(logger, sinks...),
		kv:       kv,
		registry: reg,
		metrics:  capture.NewMetrics(reg),
		logger:   logger,
	}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (kvstore.Store, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return kvstore.NewMemory(), nil
	case config.DriverRedis:
		r, err := kvstore.NewRedis(ctx, kvstore.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.DriverSQLite, "":
		db, err := kvstore.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", sc.Driver)
	}
}

// Start launches the browser, opens the chat page and starts capturing.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.mgr.Start(ctx); err != nil {
		return fmt.Errorf("jumplog: start browser: %w", err)
	}
	s.mgr.OnRecycle(browser.RecycleHooks{
		Before: s.closePage,
		After: func(*rod.Browser) {
			if err := s.openPage(ctx); err != nil {
				s.logger.Error("jumplog: reopen after recycle", "error", err)
			}
		},
	})
	return s.openPage(ctx)
}

func (s *Service) openPage(ctx context.Context) error {
	url := s.cfg.Browser.URL
	tab, err := browser.OpenTab(ctx, s.mgr, url)
	if err != nil {
		return fmt.Errorf("jumplog: open tab: %w", err)
	}
	doc, err := roddoc.Bind(ctx, tab.Page, roddoc.WithLogger(s.logger))
	if err != nil {
		tab.Close()
		return fmt.Errorf("jumplog: bind page: %w", err)
	}

	s.mu.Lock()
	s.tab, s.doc = tab, doc
	s.mu.Unlock()

	if err := s.Attach(ctx, doc); err != nil {
		s.closePage()
		return err
	}
	s.logger.Info("jumplog: observing page", "url", url)
	return nil
}

func (s *Service) closePage() {
	s.detach()

	s.mu.Lock()
	tab, doc := s.tab, s.doc
	s.tab, s.doc = nil, nil
	s.mu.Unlock()

	if doc != nil {
		doc.Close()
	}
	if err := tab.Close(); err != nil {
		s.logger.Debug("jumplog: close tab", "error", err)
	}
}

// Attach runs a fresh capture engine over doc, replacing any previous one.
// The engine's log is hydrated from the service store and renders to the
// service sinks. Start calls it with the live page; it is exported so other
// document bindings can be served the same way.
func (s *Service) Attach(ctx context.Context, doc hostdoc.Document) error {
	log := entrylog.New(
		entrylog.WithMaxEntries(s.cfg.Log.MaxEntries),
		entrylog.WithStore(entrylog.NewKVStore(s.kv)),
		entrylog.WithRenderer(s.router),
		entrylog.WithLogger(s.logger),
	)
	eng, err := capture.New(capture.Config{
		Document: doc,
		Log:      log,
		Settings: s.cfg.Capture,
		Metrics:  s.metrics,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("jumplog: %w", err)
	}

	s.detach()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.engine, s.cancel = eng, cancel
	s.mu.Unlock()

	go func() {
		if err := eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("jumplog: engine stopped", "error", err)
		}
	}()
	return nil
}

func (s *Service) detach() {
	s.mu.Lock()
	eng, cancel := s.engine, s.cancel
	s.engine, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-eng.Done()
	}
}

// Stop stops capturing, closes the browser and releases the store.
func (s *Service) Stop() error {
	s.closePage()
	if err := s.mgr.Close(); err != nil {
		s.logger.Warn("jumplog: close browser", "error", err)
	}
	if err := s.router.Close(); err != nil {
		s.logger.Warn("jumplog: close sinks", "error", err)
	}
	return s.kv.Close()
}

// Registry exposes the service metrics.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

func (s *Service) current() (*capture.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, capture.ErrStopped
	}
	return s.engine, nil
}

// Entries returns the entries whose text contains query, case-insensitively.
func (s *Service) Entries(ctx context.Context, query string) ([]entrylog.Entry, error) {
	eng, err := s.current()
	if err != nil {
		return nil, err
	}
	return eng.Entries(ctx, query)
}

// Jump scrolls the page to an entry and highlights it.
func (s *Service) Jump(ctx context.Context, id string) error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	return eng.Jump(ctx, id)
}

// Clear empties the log and its snapshot.
func (s *Service) Clear(ctx context.Context) error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	return eng.Clear(ctx)
}

// Excerpt relocates an entry and returns its rendered node as markdown.
func (s *Service) Excerpt(ctx context.Context, id string) (*Excerpt, error) {
	eng, err := s.current()
	if err != nil {
		return nil, err
	}
	entry, html, err := eng.EntryHTML(ctx, id)
	if err != nil {
		return nil, err
	}
	md, err := toMarkdown(html)
	if err != nil {
		return nil, fmt.Errorf("jumplog: excerpt %s: %w", id, err)
	}
	return &Excerpt{Entry: entry, Markdown: md}, nil
}
