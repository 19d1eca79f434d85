package handler

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/loworbit/txtrack/internal/platform/staking"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	apperrors "github.com/loworbit/txtrack/internal/shared/errors"
	"github.com/loworbit/txtrack/pkg/money"
)

// StakingService defines the staking operations needed by StakingHandler
type StakingService interface {
	Approve(ctx context.Context, amount *big.Int) (txledger.Record, error)
	Deposit(ctx context.Context, amount *big.Int) (txledger.Record, error)
	Withdraw(ctx context.Context) (txledger.Record, error)
	Migrate(ctx context.Context) (txledger.Record, error)
	NeedsApproval(ctx context.Context) (bool, error)
}

// StakingHandler submits staking transactions
type StakingHandler struct {
	service  StakingService
	decimals int
}

// NewStakingHandler creates a staking handler. Amounts in requests are
// decimal strings in units of a token with the given decimals.
func NewStakingHandler(service StakingService, decimals int) *StakingHandler {
	return &StakingHandler{service: service, decimals: decimals}
}

// AmountRequest is the body of approve and deposit
type AmountRequest struct {
	Amount string `json:"amount"`
}

// Approve handles POST /staking/approve. An empty amount approves the default allowance.
func (h *StakingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	var amount *big.Int
	if req.Amount != "" {
		parsed, err := h.parseAmount(req.Amount)
		if err != nil {
			respondAppError(w, err)
			return
		}
		amount = parsed
	}

	rec, err := h.service.Approve(r.Context(), amount)
	h.respondSubmitted(w, rec, err)
}

// Deposit handles POST /staking/deposit
func (h *StakingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	amount, err := h.parseAmount(req.Amount)
	if err != nil {
		respondAppError(w, err)
		return
	}

	rec, err := h.service.Deposit(r.Context(), amount)
	h.respondSubmitted(w, rec, err)
}

// Withdraw handles POST /staking/withdraw
func (h *StakingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Withdraw(r.Context())
	h.respondSubmitted(w, rec, err)
}

// Migrate handles POST /staking/migrate
func (h *StakingHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Migrate(r.Context())
	h.respondSubmitted(w, rec, err)
}

// GetAllowance handles GET /staking/allowance
func (h *StakingHandler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	needs, err := h.service.NeedsApproval(r.Context())
	if err != nil {
		respondAppError(w, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "failed to read allowance"))
		return
	}
	respondJSON(w, map[string]bool{"needs_approval": needs}, http.StatusOK)
}

func (h *StakingHandler) parseAmount(s string) (*big.Int, error) {
	amount, err := money.ParseUnits(s, h.decimals)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid amount")
	}
	return amount, nil
}

func (h *StakingHandler) respondSubmitted(w http.ResponseWriter, rec txledger.Record, err error) {
	if err != nil {
		respondAppError(w, stakingError(err))
		return
	}
	respondJSON(w, toTransactionResponse(rec), http.StatusAccepted)
}

// stakingError maps staking service errors to API errors
func stakingError(err error) error {
	switch {
	case errors.Is(err, staking.ErrUserRejected):
		return apperrors.UserRejected()
	case errors.Is(err, staking.ErrSubmissionFailed):
		return apperrors.SubmissionFailed(submissionCause(err))
	case errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrBelowMinimumStake),
		errors.Is(err, staking.ErrInsufficientBalance),
		errors.Is(err, staking.ErrNothingToMigrate):
		return apperrors.Validation(err.Error())
	default:
		return apperrors.Internal("failed to submit transaction", err)
	}
}

// submissionCause drops the ErrSubmissionFailed marker and keeps what the chain reported
func submissionCause(err error) error {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range multi.Unwrap() {
			if !errors.Is(e, staking.ErrSubmissionFailed) {
				return e
			}
		}
	}
	return err
}
