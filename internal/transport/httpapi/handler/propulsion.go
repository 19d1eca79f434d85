package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/loworbit/txtrack/internal/platform/refresher"
	apperrors "github.com/loworbit/txtrack/internal/shared/errors"
	"github.com/loworbit/txtrack/pkg/money"
)

// PropulsionService defines the watcher operations needed by PropulsionHandler
type PropulsionService interface {
	Info() (*refresher.PropulsionInfo, error)
	Refresh(ctx context.Context) (*refresher.PropulsionInfo, error)
}

// PropulsionHandler serves the propulsion countdown and recent winners
type PropulsionHandler struct {
	service  PropulsionService
	decimals int
}

func NewPropulsionHandler(service PropulsionService, decimals int) *PropulsionHandler {
	return &PropulsionHandler{service: service, decimals: decimals}
}

// PropulsionEntry is one recent propulsion
type PropulsionEntry struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Astronaut   string `json:"astronaut"`
	FuelEarned  string `json:"fuel_earned"`
	Reward      string `json:"reward"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// PropulsionResponse represents the propulsion figures in API responses
type PropulsionResponse struct {
	ChainID          int64             `json:"chain_id"`
	BlocksBetween    uint64            `json:"blocks_between_propulsion"`
	LastBlock        uint64            `json:"last_propulsion_block"`
	CurrentBlock     uint64            `json:"current_block"`
	RemainingBlocks  uint64            `json:"remaining_blocks"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	FuelToWin        string            `json:"fuel_to_win,omitempty"`
	MinStake         string            `json:"min_stake,omitempty"`
	Recent           []PropulsionEntry `json:"recent"`
	RefreshedAt      string            `json:"refreshed_at"`
	Partial          bool              `json:"partial,omitempty"`
}

func (h *PropulsionHandler) toResponse(info *refresher.PropulsionInfo, partial bool) PropulsionResponse {
	resp := PropulsionResponse{
		ChainID:          info.ChainID,
		BlocksBetween:    info.BlocksBetween,
		LastBlock:        info.LastBlock,
		CurrentBlock:     info.CurrentBlock,
		RemainingBlocks:  info.RemainingBlocks,
		RemainingSeconds: int64(info.NextIn / time.Second),
		Recent:           make([]PropulsionEntry, 0, len(info.Recent)),
		RefreshedAt:      info.RefreshedAt.UTC().Format(time.RFC3339),
		Partial:          partial,
	}
	if info.FuelToWin != nil {
		resp.FuelToWin = money.FormatUnitsFixed(info.FuelToWin, h.decimals, displayPlaces)
	}
	if info.MinStake != nil {
		resp.MinStake = money.FormatUnitsFixed(info.MinStake, h.decimals, displayPlaces)
	}
	for _, p := range info.Recent {
		entry := PropulsionEntry{
			TxHash:      p.TxHash,
			BlockNumber: p.BlockNumber,
			Astronaut:   p.Astronaut,
			FuelEarned:  p.FuelEarned.String(),
			Reward:      money.FormatUnitsFixed(p.FuelEarned, h.decimals, displayPlaces),
		}
		if !p.Timestamp.IsZero() {
			entry.Timestamp = p.Timestamp.UTC().Format(time.RFC3339)
		}
		resp.Recent = append(resp.Recent, entry)
	}
	return resp
}

// GetPropulsion handles GET /propulsion. Nothing loaded yet triggers a read.
func (h *PropulsionHandler) GetPropulsion(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Info()
	if err == nil {
		respondJSON(w, h.toResponse(info, false), http.StatusOK)
		return
	}
	if !errors.Is(err, refresher.ErrPropulsionNotLoaded) {
		respondAppError(w, apperrors.Internal("failed to read propulsion info", err))
		return
	}

	info, err = h.service.Refresh(r.Context())
	if info == nil {
		respondAppError(w, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "propulsion info unavailable"))
		return
	}
	respondJSON(w, h.toResponse(info, err != nil), http.StatusOK)
}
