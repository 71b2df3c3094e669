package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/realtime"
	"github.com/sakif/family-trips/internal/service"
)

// DefaultHeartbeat keeps idle SSE connections alive through proxies.
const DefaultHeartbeat = 25 * time.Second

// EventsHandler streams a trip's change feed as Server-Sent Events.
//
// SSE FORMAT:
// Each change is written as
//
//	event: change
//	data: {"table":"wishlist_items","type":"INSERT","tripId":"...","record":{...}}
//
// followed by a blank line. Comment lines (": ping") keep the connection
// open when nothing changes.
type EventsHandler struct {
	trips     *service.TripService
	hub       *realtime.Hub
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewEventsHandler(trips *service.TripService, hub *realtime.Hub, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventsHandler{trips: trips, hub: hub, heartbeat: heartbeat, logger: logger}
}

// HandleStream subscribes the caller to one trip's changes.
//
// HTTP: GET /api/trips/{tripID}/events?table=wishlist_items,memories
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	if _, err := h.trips.Get(r.Context(), callerID(r), tripID); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var tables []string
	for _, t := range strings.Split(r.URL.Query().Get("table"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}

	// Streams outlive the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(realtime.Filter{TripID: tripID, Tables: tables})
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.logger.Debug("event stream opened", slog.String("tripID", tripID), slog.Any("tables", tables))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				// hub closed during shutdown
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encoding change event", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
