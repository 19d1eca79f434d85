package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/loworbit/txtrack/internal/platform/tracker"
)

const (
	defaultKeepAlive = 15 * time.Second
	eventBuffer      = 32
)

// EventsHandler streams tracker events as server-sent events
type EventsHandler struct {
	events    tracker.Subscriber
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates an event stream handler. keepAlive <= 0 uses 15s.
func NewEventsHandler(events tracker.Subscriber, keepAlive time.Duration, logger *slog.Logger) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &EventsHandler{
		events:    events,
		keepAlive: keepAlive,
		logger:    logger.With("component", "event_stream"),
	}
}

// EventPayload is the data of one streamed event
type EventPayload struct {
	ID             string `json:"id"`
	Subject        string `json:"subject"`
	ChainID        int64  `json:"chain_id"`
	Account        string `json:"account,omitempty"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	BlockNumber    uint64 `json:"block_number,omitempty"`
	Stale          bool   `json:"stale,omitempty"`
	ContextChanged bool   `json:"context_changed,omitempty"`
}

// Stream handles GET /events. Each event is written as
// "event: <kind>" followed by a JSON "data:" line.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Subscribe before the headers go out so no later event is missed
	ch := make(chan tracker.Event, eventBuffer)
	unsubscribe := h.events.Subscribe(func(_ context.Context, ev tracker.Event) {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("event stream is slow, dropping event", "tx_id", ev.ID, "kind", ev.Kind)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("response does not support streaming", "error", err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev tracker.Event) error {
	data, err := json.Marshal(EventPayload{
		ID:             ev.ID,
		Subject:        string(ev.Subject),
		ChainID:        ev.ChainID,
		Account:        ev.Account,
		Status:         string(ev.Status),
		Reason:         ev.Reason,
		BlockNumber:    ev.BlockNumber,
		Stale:          ev.Stale,
		ContextChanged: ev.ContextChanged,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
