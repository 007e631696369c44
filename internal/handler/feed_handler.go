package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/feed"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

const (
	defaultRecentLimit = 20
	subscriberBuffer   = 100
)

// FeedHandler exposes the activity hub over Server-Sent Events.
type FeedHandler struct {
	Hub       *feed.Hub
	Log       *zap.Logger
	Heartbeat time.Duration
}

// Stream serves GET /feed. The connection stays open until the client leaves.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cancel := h.Hub.Subscribe(subscriberBuffer)
	defer cancel()

	h.Log.Info("feed client connected", zap.Int("subscribers", h.Hub.SubscriberCount()))
	fmt.Fprintf(w, "event: connected\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Log.Info("feed client disconnected")
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.Log.Warn("failed to write feed event", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}

// Recent serves GET /feed/recent?limit=, newest first.
func (h *FeedHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": h.Hub.Recent(limit)})
}
