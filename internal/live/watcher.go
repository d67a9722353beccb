// Package live keeps a loaded view in sync with the change feed: it listens on
// one subscription per table, filters events against the current view and
// re-runs the loader when an event is in scope.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lumenflow/portal/internal/realtime"
)

var ErrClosed = errors.New("watcher closed")

// Subscriber opens table subscriptions. *realtime.Broker satisfies it.
type Subscriber interface {
	Subscribe(table string) *realtime.Subscription
}

type Config[T any] struct {
	Name   string
	Tables []string
	Load   func(ctx context.Context) (T, error)
	// Match reports whether ev affects current. Nil matches every event.
	Match func(ev realtime.Event, current T) bool
	// Fatal reports whether a reload error ends the watch. Other reload
	// errors keep the last state.
	Fatal func(err error) bool
}

type scope struct {
	gen    uint64
	cancel context.CancelFunc
	subs   []*realtime.Subscription
	kick   chan struct{}
}

type Watcher[T any] struct {
	feed    Subscriber
	parent  context.Context
	updates chan T

	mu      sync.Mutex
	cfg     Config[T]
	current T
	loaded  bool // current belongs to the live scope
	gen     uint64
	scope   *scope
	closed  bool
	err     error
}

// Watch loads the view once and keeps it live until ctx is done or Close is
// called. The initial load error is returned and nothing stays subscribed.
func Watch[T any](ctx context.Context, feed Subscriber, cfg Config[T]) (*Watcher[T], error) {
	w := &Watcher[T]{
		feed:    feed,
		parent:  ctx,
		updates: make(chan T, 1),
	}

	err := w.Rescope(cfg)
	if err != nil {
		w.Close()
		return nil, err
	}

	context.AfterFunc(ctx, w.Close)
	return w, nil
}

// Updates delivers the view after every reload. Only the latest view is
// kept when the reader falls behind. The channel is closed by Close or by a
// fatal reload error, see Err.
func (w *Watcher[T]) Updates() <-chan T {
	return w.updates
}

// Err is the reload error that ended the watch, nil while it runs or after a
// plain Close.
func (w *Watcher[T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher[T]) Current() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Rescope drops the current subscriptions, then subscribes and loads for cfg.
// Results still in flight for the old scope are discarded.
func (w *Watcher[T]) Rescope(cfg Config[T]) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.teardown()
	w.gen++
	gen := w.gen
	w.cfg = cfg
	w.loaded = false
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(w.parent)
	sc := &scope{gen: gen, cancel: cancel, kick: make(chan struct{}, 1)}
	for _, table := range cfg.Tables {
		sc.subs = append(sc.subs, w.feed.Subscribe(table))
	}

	w.mu.Lock()
	if w.closed || w.gen != gen {
		w.mu.Unlock()
		sc.close()
		return ErrClosed
	}
	w.scope = sc
	w.mu.Unlock()

	for _, sub := range sc.subs {
		go w.forward(sc, sub, cfg.Match)
	}

	value, err := cfg.Load(ctx)
	if err != nil {
		return err
	}
	w.apply(gen, value)

	go w.reload(ctx, sc, cfg)
	return nil
}

// Close tears down every subscription and closes Updates. Safe to call more than once.
func (w *Watcher[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.gen++
	w.teardown()
	close(w.updates)
}

// teardown must be called with mu held.
func (w *Watcher[T]) teardown() {
	if w.scope != nil {
		w.scope.close()
		w.scope = nil
	}
}

func (sc *scope) close() {
	sc.cancel()
	for _, sub := range sc.subs {
		sub.Unsubscribe()
	}
}

func (w *Watcher[T]) forward(sc *scope, sub *realtime.Subscription, match func(realtime.Event, T) bool) {
	for ev := range sub.Events() {
		if match != nil {
			w.mu.Lock()
			stale := w.gen != sc.gen
			current, loaded := w.current, w.loaded
			w.mu.Unlock()
			if stale {
				return
			}
			// Events racing the first load cannot be matched yet; reload after it.
			if loaded && !match(ev, current) {
				continue
			}
		}

		select {
		case sc.kick <- struct{}{}:
		default:
		}
	}
}

// reload coalesces bursts of events into one load at a time.
func (w *Watcher[T]) reload(ctx context.Context, sc *scope, cfg Config[T]) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.kick:
		}

		value, err := cfg.Load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && cfg.Fatal != nil && cfg.Fatal(err) {
			slog.Info("live view gone", "error", err, "view", cfg.Name)
			w.fail(sc.gen, err)
			return
		}
		if err != nil {
			slog.Warn("live reload failed, keeping last state", "error", err, "view", cfg.Name)
			continue
		}
		w.apply(sc.gen, value)
	}
}

// fail ends the watch with err. A view still waiting in Updates is dropped.
func (w *Watcher[T]) fail(gen uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.gen != gen {
		return
	}
	w.err = err
	w.closed = true
	w.gen++
	w.teardown()

	select {
	case <-w.updates:
	default:
	}
	close(w.updates)
}

func (w *Watcher[T]) apply(gen uint64, value T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.gen != gen {
		return
	}
	w.current = value
	w.loaded = true

	select {
	case <-w.updates:
	default:
	}
	w.updates <- value
}
