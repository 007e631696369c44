package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/service"
)

// ClickRecorder is the part of DeeplinkService the redirect needs.
type ClickRecorder interface {
	RecordClick(ctx context.Context, code string, meta service.ClickMeta) (*model.ClickOutcome, error)
}

// RedirectHandler serves the public tracking links handed out to consumers.
type RedirectHandler struct {
	Clicks ClickRecorder
	Log    *zap.Logger
}

// Redirect records the click behind /r/{code} and sends the visitor on with a 302.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	out, err := h.Clicks.RecordClick(r.Context(), code, service.ClickMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	})
	if err != nil {
		if appErrors.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "link not found")
			return
		}
		h.Log.Error("failed to record click", zap.String("code", code), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.Log.Debug("click recorded",
		zap.Int64("click_id", out.ClickID),
		zap.Int64("campaign_id", out.CampaignID),
		zap.Bool("unique", out.Unique),
		zap.String("charged", out.Charged.String()),
	)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, out.DestinationURL, http.StatusFound)
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware has
// already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
