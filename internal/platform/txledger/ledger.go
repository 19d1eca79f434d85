// Package txledger remembers every user-submitted staking transaction and its
// lifecycle status, and persists that mapping so pending work survives restarts.
package txledger

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
)

// Ledger is the authoritative set of tracked transactions.
//
// Reads (Get, ListPending, All) never wait on store I/O: the in-memory map is
// guarded by mu, while writes to the store are serialized by writeMu and always
// persist the latest in-memory value of a record.
type Ledger struct {
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	mu      sync.RWMutex
	records map[string]Record
	writeMu sync.Mutex
}

// NewLedger creates a ledger and loads every record already in store
func NewLedger(ctx context.Context, store Store, clk clock.Clock, logger *slog.Logger) (*Ledger, error) {
	if clk == nil {
		clk = clock.New()
	}

	stored, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	l := &Ledger{
		store:   store,
		clock:   clk,
		logger:  logger.With("service", "txledger"),
		records: make(map[string]Record, len(stored)),
	}
	pending := 0
	for _, r := range stored {
		l.records[r.ID] = r
		if r.IsPending() {
			pending++
		}
	}

	l.logger.Info("ledger loaded", "records", len(stored), "pending", pending)
	return l, nil
}

// Record inserts a PENDING record for a freshly submitted transaction and
// persists it. When the id is already known the existing record is returned
// together with ErrDuplicateTransaction and nothing is modified.
//
// The transaction is already broadcast when Record is called, so a failed
// write does not undo the insert: the record stays in memory and the next
// successful persist of its id writes it.
func (l *Ledger) Record(ctx context.Context, subject Subject, chainID int64, sub Submission) (Record, error) {
	if sub.ID == "" {
		return Record{}, ErrMissingTransactionID
	}
	if !subject.IsValid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}

	rec := Record{
		ID:          sub.ID,
		Subject:     subject,
		ChainID:     chainID,
		Account:     strings.ToLower(sub.Account),
		SubmittedAt: truncate(l.clock.Now()),
		Status:      StatusPending,
	}

	l.mu.Lock()
	if existing, ok := l.records[rec.ID]; ok {
		l.mu.Unlock()
		l.logger.Error("duplicate transaction id",
			"tx_id", rec.ID,
			"existing_subject", existing.Subject,
			"subject", subject)
		return existing, ErrDuplicateTransaction
	}
	l.records[rec.ID] = rec
	l.mu.Unlock()

	if err := l.persist(ctx, rec.ID); err != nil {
		l.logger.Error("failed to persist recorded transaction",
			"tx_id", rec.ID,
			"subject", rec.Subject,
			"error", err)
	}

	l.logger.Debug("transaction recorded",
		"tx_id", rec.ID,
		"subject", rec.Subject,
		"chain_id", rec.ChainID)
	return rec, nil
}

// Update moves a PENDING record to a terminal status. Unknown ids and
// transitions other than PENDING -> CONFIRMED|FAILED are ignored. It reports
// whether the transition was applied.
func (l *Ledger) Update(ctx context.Context, id string, status Status, reason string) bool {
	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok || !CanTransition(rec.Status, status) {
		l.mu.Unlock()
		if ok && rec.Status != status {
			l.logger.Warn("ignoring status transition",
				"tx_id", id,
				"from", rec.Status,
				"to", status)
		}
		return false
	}
	rec.Status = status
	rec.ResolvedAt = truncate(l.clock.Now())
	if status == StatusFailed {
		rec.Reason = reason
	}
	l.records[id] = rec
	l.mu.Unlock()

	// The in-memory transition stands even if the write fails; the next
	// successful persist of this id carries it.
	if err := l.persist(ctx, id); err != nil {
		l.logger.Error("failed to persist status update",
			"tx_id", id,
			"status", status,
			"error", err)
	}
	return true
}

// Get returns the record for id
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[id]
	return r, ok
}

// ListPending returns the PENDING records of chainID, oldest first.
// The sequence is a snapshot taken at call time and can be ranged repeatedly.
func (l *Ledger) ListPending(chainID int64) iter.Seq[Record] {
	l.mu.RLock()
	snapshot := make([]Record, 0)
	for _, r := range l.records {
		if r.IsPending() && r.ChainID == chainID {
			snapshot = append(snapshot, r)
		}
	}
	l.mu.RUnlock()

	sortBySubmission(snapshot)
	return slices.Values(snapshot)
}

// All returns every record regardless of status or chain, oldest first
func (l *Ledger) All() iter.Seq[Record] {
	l.mu.RLock()
	snapshot := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		snapshot = append(snapshot, r)
	}
	l.mu.RUnlock()

	sortBySubmission(snapshot)
	return slices.Values(snapshot)
}

func (l *Ledger) persist(ctx context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.RLock()
	rec, ok := l.records[id]
	l.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := l.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist transaction %s: %w", id, err)
	}
	return nil
}

func sortBySubmission(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
