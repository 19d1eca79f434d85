package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// EventKind distinguishes tracker notifications
type EventKind string

const (
	// EventReconciled fires once per record when the ledger took a terminal status
	EventReconciled EventKind = "reconciled"
	// EventUnresolved fires when retries ran out and the outcome is unknown
	EventUnresolved EventKind = "unresolved"
)

// Event is published on the Bus
type Event struct {
	Kind        EventKind
	ID          string
	Subject     txledger.Subject
	ChainID     int64
	Account     string
	Status      txledger.Status
	Reason      string
	BlockNumber uint64

	// Stale is set for records submitted before the stale horizon
	Stale bool
	// ContextChanged is set when the active account or chain no longer
	// matches the record's
	ContextChanged bool
}

// Announceable reports whether the user should be told about this event
func (e Event) Announceable() bool {
	return !e.Stale && !e.ContextChanged
}

// Handler consumes tracker events
type Handler func(ctx context.Context, ev Event)

// Subscriber is the read side of the Bus
type Subscriber interface {
	Subscribe(h Handler) (unsubscribe func())
}

type subscription struct {
	id      uuid.UUID
	handler Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
// A panicking handler is logged and does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "event_bus")}
}

// Subscribe registers h and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) func() {
	id := uuid.New()

	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every current subscriber
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"subscription", s.id.String(),
				"tx_id", ev.ID,
				"panic", fmt.Sprint(r))
		}
	}()
	s.handler(ctx, ev)
}
