package txledger

import (
	"strings"
	"time"
)

// Subject is the user action a tracked transaction performs
type Subject string

const (
	SubjectApprove  Subject = "APPROVE"
	SubjectDeposit  Subject = "DEPOSIT"
	SubjectWithdraw Subject = "WITHDRAW"
	SubjectMigrate  Subject = "MIGRATE"
)

// IsValid checks if the subject is one of the known actions
func (s Subject) IsValid() bool {
	switch s {
	case SubjectApprove, SubjectDeposit, SubjectWithdraw, SubjectMigrate:
		return true
	}
	return false
}

// ParseSubject accepts subjects case-insensitively ("deposit", "DEPOSIT")
func ParseSubject(s string) (Subject, error) {
	subject := Subject(strings.ToUpper(strings.TrimSpace(s)))
	if !subject.IsValid() {
		return "", ErrInvalidSubject
	}
	return subject, nil
}

// Status is the lifecycle state of a tracked transaction
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransition reports whether from -> to is an allowed forward transition.
// Only PENDING may move, and only to a terminal status.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// Record is one user-submitted transaction remembered by the ledger
type Record struct {
	ID          string
	Subject     Subject
	ChainID     int64
	Account     string
	SubmittedAt time.Time
	Status      Status
	Reason      string
	ResolvedAt  time.Time
}

// IsPending returns true while the transaction awaits its outcome
func (r Record) IsPending() bool {
	return r.Status == StatusPending
}

// IsStale reports whether the record was submitted before now - horizon.
// A zero horizon disables staleness.
func (r Record) IsStale(now time.Time, horizon time.Duration) bool {
	if horizon <= 0 {
		return false
	}
	return r.SubmittedAt.Before(now.Add(-horizon))
}

// Submission is what the chain adapter hands back for a freshly submitted transaction
type Submission struct {
	ID      string
	ChainID int64
	Account string
}
