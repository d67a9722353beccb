package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Publisher delivers row change events to the change feed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker fans events out to subscribers of a table. Subscribers that do not
// keep up lose events instead of blocking the writer.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is one table channel. Events is closed after Unsubscribe.
type Subscription struct {
	table  string
	ch     chan Event
	broker *Broker
	once   sync.Once
}

func (s *Subscription) Table() string {
	return s.table
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe removes the subscription from the broker. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

func (b *Broker) Subscribe(table string) *Subscription {
	sub := &Subscription{
		table:  table,
		ch:     make(chan Event, b.buffer),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	if b.subs[table] == nil {
		b.subs[table] = make(map[*Subscription]struct{})
	}
	b.subs[table][sub] = struct{}{}
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sub.table]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.table)
	}
	close(sub.ch)
}

func (b *Broker) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CommitTimestamp.IsZero() {
		ev.CommitTimestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for sub := range b.subs[ev.Table] {
		select {
		case sub.ch <- ev:
		default:
			slog.WarnContext(ctx, "realtime subscriber queue full, dropping event",
				"table", ev.Table, "event_id", ev.ID, "type", ev.Type)
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions for table.
func (b *Broker) Subscribers(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[table])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for table, set := range b.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(b.subs, table)
	}
}
