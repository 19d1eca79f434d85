package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/loworbit/txtrack/internal/platform/refresher"
	apperrors "github.com/loworbit/txtrack/internal/shared/errors"
	"github.com/loworbit/txtrack/pkg/money"
)

// displayPlaces is how many fractional digits formatted values keep
const displayPlaces = 4

// StatsService defines the refresher operations needed by StatsHandler
type StatsService interface {
	Stats(ctx context.Context, account string, chainID int64) (*refresher.Stats, error)
	Refresh(ctx context.Context, account string, chainID int64, quantities []refresher.Quantity) (*refresher.Stats, error)
	RefreshActive(ctx context.Context) (*refresher.Stats, error)
}

// StatsHandler serves cached balances and staking figures
type StatsHandler struct {
	service        StatsService
	decimals       int
	defaultChainID int64
}

func NewStatsHandler(service StatsService, decimals int, defaultChainID int64) *StatsHandler {
	return &StatsHandler{service: service, decimals: decimals, defaultChainID: defaultChainID}
}

// StatsResponse carries every value as a base-unit integer string and as a
// display string in token units
type StatsResponse struct {
	Account     string            `json:"account"`
	ChainID     int64             `json:"chain_id"`
	BlockNumber uint64            `json:"block_number"`
	RefreshedAt string            `json:"refreshed_at"`
	Values      map[string]string `json:"values"`
	Display     map[string]string `json:"display"`
	Partial     bool              `json:"partial,omitempty"`
}

func (h *StatsHandler) toResponse(s *refresher.Stats, partial bool) StatsResponse {
	resp := StatsResponse{
		Account:     s.Account,
		ChainID:     s.ChainID,
		BlockNumber: s.BlockNumber,
		RefreshedAt: s.RefreshedAt.UTC().Format(time.RFC3339),
		Values:      make(map[string]string, len(s.Values)),
		Display:     make(map[string]string, len(s.Values)),
		Partial:     partial,
	}
	for q, v := range s.Values {
		resp.Values[string(q)] = v.String()
		resp.Display[string(q)] = money.FormatUnitsFixed(v, h.decimals, displayPlaces)
	}
	return resp
}

// GetStats handles GET /stats?account=&chain_id=. A cache miss on the connected
// chain triggers a full read.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if !common.IsHexAddress(account) {
		respondAppError(w, apperrors.Validation("account must be a hex address"))
		return
	}
	chainID, err := chainIDParam(r, h.defaultChainID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), account, chainID)
	if err == nil {
		respondJSON(w, h.toResponse(stats, false), http.StatusOK)
		return
	}
	if !errors.Is(err, refresher.ErrStatsNotFound) {
		respondAppError(w, apperrors.Internal("failed to read stats", err))
		return
	}
	if chainID != h.defaultChainID {
		// Only the connected chain can be read
		respondAppError(w, apperrors.NotFound("stats"))
		return
	}

	stats, err = h.service.Refresh(r.Context(), account, chainID, refresher.AllQuantities)
	h.respondRefreshed(w, stats, err)
}

// RefreshStats handles POST /stats/refresh for the connected account
func (h *StatsHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.RefreshActive(r.Context())
	h.respondRefreshed(w, stats, err)
}

// respondRefreshed serves whatever was read; failed reads only mark the response partial
func (h *StatsHandler) respondRefreshed(w http.ResponseWriter, stats *refresher.Stats, err error) {
	if stats == nil {
		respondAppError(w, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "stats unavailable"))
		return
	}
	respondJSON(w, h.toResponse(stats, err != nil), http.StatusOK)
}
