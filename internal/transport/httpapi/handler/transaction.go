package handler

import (
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loworbit/txtrack/internal/platform/txledger"
	apperrors "github.com/loworbit/txtrack/internal/shared/errors"
)

// TransactionReader defines the ledger reads needed by TransactionHandler
type TransactionReader interface {
	GetPending(chainID int64) iter.Seq[txledger.Record]
	Get(id string) (txledger.Record, error)
}

// TransactionHandler serves tracked transactions
type TransactionHandler struct {
	reader         TransactionReader
	defaultChainID int64
}

// NewTransactionHandler creates a new transaction handler. defaultChainID is
// used when a request names no chain.
func NewTransactionHandler(reader TransactionReader, defaultChainID int64) *TransactionHandler {
	return &TransactionHandler{reader: reader, defaultChainID: defaultChainID}
}

// TransactionResponse represents a tracked transaction
type TransactionResponse struct {
	ID          string  `json:"id"`
	Subject     string  `json:"subject"`
	ChainID     int64   `json:"chain_id"`
	Account     string  `json:"account,omitempty"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	SubmittedAt string  `json:"submitted_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

func toTransactionResponse(r txledger.Record) TransactionResponse {
	resp := TransactionResponse{
		ID:          r.ID,
		Subject:     string(r.Subject),
		ChainID:     r.ChainID,
		Account:     r.Account,
		Status:      string(r.Status),
		Reason:      r.Reason,
		SubmittedAt: r.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if !r.ResolvedAt.IsZero() {
		resolved := r.ResolvedAt.UTC().Format(time.RFC3339Nano)
		resp.ResolvedAt = &resolved
	}
	return resp
}

// GetPending handles GET /transactions/pending?chain_id=
func (h *TransactionHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	chainID, err := chainIDParam(r, h.defaultChainID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	items := []TransactionResponse{}
	for rec := range h.reader.GetPending(chainID) {
		items = append(items, toTransactionResponse(rec))
	}

	respondJSON(w, map[string]any{
		"chain_id":     chainID,
		"transactions": items,
	}, http.StatusOK)
}

// GetTransaction handles GET /transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.reader.Get(id)
	if err != nil {
		respondAppError(w, apperrors.NotFound("transaction"))
		return
	}

	respondJSON(w, toTransactionResponse(rec), http.StatusOK)
}

// chainIDParam reads ?chain_id=, falling back to def
func chainIDParam(r *http.Request, def int64) (int64, error) {
	raw := r.URL.Query().Get("chain_id")
	if raw == "" {
		return def, nil
	}
	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chainID <= 0 {
		return 0, apperrors.Validation("chain_id must be a positive integer")
	}
	return chainID, nil
}
