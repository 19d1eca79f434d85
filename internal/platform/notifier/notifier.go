// Package notifier turns transaction lifecycle events into user-visible
// indicators, showing each outcome at most once.
package notifier

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/loworbit/txtrack/internal/platform/tracker"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// DefaultCapacity bounds how many finished indicators are kept
const DefaultCapacity = 256

// Notifier holds the current indicators keyed by transaction id
// (or a generated key for indicators without one). Indicators still waiting
// for an outcome are never evicted; finished ones live in a bounded LRU.
type Notifier struct {
	mu     sync.Mutex
	live   map[string]entry
	done   *lru.Cache
	seq    uint64
	sink   Sink
	clock  clock.Clock
	logger *slog.Logger
}

// entry orders indicators by their last change
type entry struct {
	ind Indicator
	seq uint64
}

// New creates a notifier keeping at most capacity finished indicators
func New(capacity int, sink Sink, clk clock.Clock, logger *slog.Logger) (*Notifier, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	done, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create indicator cache: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Notifier{
		live:   make(map[string]entry),
		done:   done,
		sink:   sink,
		clock:  clk,
		logger: logger.With("service", "notifier"),
	}, nil
}

// AnnounceSubmission shows a loading indicator for id. Repeated calls for the
// same id leave the existing indicator alone.
func (n *Notifier) AnnounceSubmission(ctx context.Context, id string, subject txledger.Subject) {
	n.mu.Lock()
	if _, ok := n.lookup(id); ok {
		n.mu.Unlock()
		return
	}
	ind := Indicator{
		Key:       id,
		TxID:      id,
		Subject:   subject,
		State:     StateLoading,
		Message:   messagesFor(subject).loading,
		UpdatedAt: n.clock.Now(),
	}
	n.store(ind)
	n.mu.Unlock()

	n.show(ctx, ind)
}

// AnnounceReconciled replaces the live indicator of id with its outcome.
// Without a live indicator (e.g. after a reload, or when the outcome was
// already shown) nothing happens. It reports whether an indicator changed.
func (n *Notifier) AnnounceReconciled(ctx context.Context, id string, status txledger.Status, reason string) bool {
	n.mu.Lock()
	e, ok := n.live[id]
	if !ok {
		n.mu.Unlock()
		return false
	}
	ind := e.ind

	msgs := messagesFor(ind.Subject)
	switch status {
	case txledger.StatusConfirmed:
		ind.State = StateSuccess
		ind.Message = msgs.success
		ind.Detail = ""
	case txledger.StatusFailed:
		ind.State = StateError
		ind.Message = msgs.failure
		ind.Detail = capitalize(reason)
	default:
		n.mu.Unlock()
		return false
	}
	ind.UpdatedAt = n.clock.Now()
	n.store(ind)
	n.mu.Unlock()

	n.show(ctx, ind)
	return true
}

// AnnounceUnknown marks the live indicator of id as "status unknown"
func (n *Notifier) AnnounceUnknown(ctx context.Context, id string) bool {
	n.mu.Lock()
	e, ok := n.live[id]
	if !ok || e.ind.State == StateUnknown {
		n.mu.Unlock()
		return false
	}
	ind := e.ind
	ind.State = StateUnknown
	ind.Message = unknownMessage
	ind.UpdatedAt = n.clock.Now()
	n.store(ind)
	n.mu.Unlock()

	n.show(ctx, ind)
	return true
}

// AnnounceSubmissionFailed shows an error for a submission that never
// produced a transaction id
func (n *Notifier) AnnounceSubmissionFailed(ctx context.Context, subject txledger.Subject, err error) Indicator {
	ind := Indicator{
		Key:       "submission-" + uuid.NewString(),
		Subject:   subject,
		State:     StateError,
		Message:   messagesFor(subject).failure,
		Detail:    capitalize(rootMessage(err)),
		UpdatedAt: n.clock.Now(),
	}
	n.put(ctx, ind)
	return ind
}

// AnnounceCancelled tells the user the wallet prompt was dismissed
func (n *Notifier) AnnounceCancelled(ctx context.Context, subject txledger.Subject) Indicator {
	ind := Indicator{
		Key:       "cancelled-" + uuid.NewString(),
		Subject:   subject,
		State:     StateCancelled,
		Message:   cancelledMessage,
		UpdatedAt: n.clock.Now(),
	}
	n.put(ctx, ind)
	return ind
}

// OnEvent consumes tracker events. Stale events and events for an account or
// network the user has since switched away from are not announced.
func (n *Notifier) OnEvent(ctx context.Context, ev tracker.Event) {
	if !ev.Announceable() {
		n.logger.Debug("suppressing announcement",
			"tx_id", ev.ID,
			"stale", ev.Stale,
			"context_changed", ev.ContextChanged)
		return
	}

	switch ev.Kind {
	case tracker.EventReconciled:
		n.AnnounceReconciled(ctx, ev.ID, ev.Status, ev.Reason)
	case tracker.EventUnresolved:
		n.AnnounceUnknown(ctx, ev.ID)
	}
}

// Get returns the indicator stored under key
func (n *Notifier) Get(key string) (Indicator, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.lookup(key)
	return e.ind, ok
}

// Snapshot returns all indicators, most recently changed first
func (n *Notifier) Snapshot() []Indicator {
	n.mu.Lock()
	entries := make([]entry, 0, len(n.live)+n.done.Len())
	for _, e := range n.live {
		entries = append(entries, e)
	}
	for _, k := range n.done.Keys() {
		if v, ok := n.done.Peek(k); ok {
			entries = append(entries, v.(entry))
		}
	}
	n.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(b.seq, a.seq) })
	out := make([]Indicator, len(entries))
	for i, e := range entries {
		out[i] = e.ind
	}
	return out
}

// Dismiss removes the indicator stored under key
func (n *Notifier) Dismiss(key string) {
	n.mu.Lock()
	delete(n.live, key)
	n.done.Remove(key)
	n.mu.Unlock()
}

// lookup finds key among live and finished indicators. Callers hold n.mu.
func (n *Notifier) lookup(key string) (entry, bool) {
	if e, ok := n.live[key]; ok {
		return e, true
	}
	v, ok := n.done.Peek(key)
	if !ok {
		return entry{}, false
	}
	return v.(entry), true
}

// store files ind by state. Callers hold n.mu.
func (n *Notifier) store(ind Indicator) {
	n.seq++
	e := entry{ind: ind, seq: n.seq}
	if ind.State.IsLive() {
		n.done.Remove(ind.Key)
		n.live[ind.Key] = e
		return
	}
	delete(n.live, ind.Key)
	n.done.Add(ind.Key, e)
}

func (n *Notifier) put(ctx context.Context, ind Indicator) {
	n.mu.Lock()
	n.store(ind)
	n.mu.Unlock()

	n.show(ctx, ind)
}

func (n *Notifier) show(ctx context.Context, ind Indicator) {
	if n.sink == nil {
		return
	}
	if err := n.sink.Show(ctx, ind); err != nil {
		n.logger.Warn("failed to deliver indicator", "key", ind.Key, "error", err)
	}
}

// rootMessage prefers the innermost error message, which is what the chain
// or the wallet reported
func rootMessage(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
