package capture

import (
	"context"
	"time"
)

// Deferred task keys. One task per key may be pending; scheduling a key
// again supersedes the previous task.
const (
	taskKey       = "key"
	taskClick     = "click"
	taskHighlight = "highlight"
)

type firing struct {
	key string
	gen uint64
}

type pendingTask struct {
	timer *time.Timer
	gen   uint64
	fn    func(context.Context)
}

// deferredSet holds the engine's cancellable deferred tasks. Timer callbacks
// only post a firing back into the loop; fn always runs on the loop.
type deferredSet struct {
	pending map[string]*pendingTask
	gen     uint64
	fired   chan firing
	stopped <-chan struct{}
}

func newDeferredSet(stopped <-chan struct{}) *deferredSet {
	return &deferredSet{
		pending: make(map[string]*pendingTask),
		fired:   make(chan firing, 16),
		stopped: stopped,
	}
}

// schedule runs fn on the loop after d, cancelling any task pending under key.
func (s *deferredSet) schedule(key string, d time.Duration, fn func(context.Context)) {
	s.cancel(key)
	s.gen++
	gen := s.gen
	t := time.AfterFunc(d, func() {
		select {
		case s.fired <- firing{key: key, gen: gen}:
		case <-s.stopped:
		}
	})
	s.pending[key] = &pendingTask{timer: t, gen: gen, fn: fn}
}

// cancel drops the task pending under key. It reports whether one existed.
func (s *deferredSet) cancel(key string) bool {
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, key)
	return true
}

// flush runs the task pending under key now.
func (s *deferredSet) flush(ctx context.Context, key string) {
	p, ok := s.pending[key]
	if !ok {
		return
	}
	p.timer.Stop()
	delete(s.pending, key)
	p.fn(ctx)
}

// fire runs a task whose timer elapsed, unless it was cancelled or
// superseded in the meantime.
func (s *deferredSet) fire(ctx context.Context, f firing) {
	p, ok := s.pending[f.key]
	if !ok || p.gen != f.gen {
		return
	}
	delete(s.pending, f.key)
	p.fn(ctx)
}

func (s *deferredSet) cancelAll() {
	for k := range s.pending {
		s.cancel(k)
	}
}

func (s *deferredSet) has(key string) bool {
	_, ok := s.pending[key]
	return ok
}
