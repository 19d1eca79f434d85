package txledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// storedRecord is the persisted value layout. The id is the storage key and
// is not repeated in the value. Timestamps are Unix milliseconds.
type storedRecord struct {
	Subject     Subject `json:"subject"`
	SubmittedAt int64   `json:"submittedAt"`
	Status      Status  `json:"status"`
	ChainID     int64   `json:"chainId"`
	Account     string  `json:"account,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	ResolvedAt  int64   `json:"resolvedAt,omitempty"`
}

// EncodeRecord serializes a record value for a key-value store
func EncodeRecord(r Record) ([]byte, error) {
	v := storedRecord{
		Subject:     r.Subject,
		SubmittedAt: r.SubmittedAt.UnixMilli(),
		Status:      r.Status,
		ChainID:     r.ChainID,
		Account:     r.Account,
		Reason:      r.Reason,
	}
	if !r.ResolvedAt.IsZero() {
		v.ResolvedAt = r.ResolvedAt.UnixMilli()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", r.ID, err)
	}
	return data, nil
}

// DecodeRecord restores a record stored under id
func DecodeRecord(id string, data []byte) (Record, error) {
	var v storedRecord
	if err := json.Unmarshal(data, &v); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, id, err)
	}
	if !v.Subject.IsValid() {
		return Record{}, fmt.Errorf("%w: %s: subject %q", ErrCorruptRecord, id, v.Subject)
	}
	if !v.Status.IsValid() {
		return Record{}, fmt.Errorf("%w: %s: status %q", ErrCorruptRecord, id, v.Status)
	}

	r := Record{
		ID:          id,
		Subject:     v.Subject,
		ChainID:     v.ChainID,
		Account:     v.Account,
		SubmittedAt: time.UnixMilli(v.SubmittedAt).UTC(),
		Status:      v.Status,
		Reason:      v.Reason,
	}
	if v.ResolvedAt != 0 {
		r.ResolvedAt = time.UnixMilli(v.ResolvedAt).UTC()
	}
	return r, nil
}

// truncate normalizes a timestamp to what survives a store round trip
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Millisecond).UTC()
}
