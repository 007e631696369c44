package controller

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type DeeplinkController struct {
	DeeplinkService *service.DeeplinkService
	Log             *zap.Logger
}

func (c *DeeplinkController) Generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID int64  `json:"campaign_id" validate:"required,gt=0"`
		UserID     string `json:"user_id" validate:"required,uuid"`
		Source     string `json:"source" validate:"max=50"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	link, err := c.DeeplinkService.Generate(r.Context(), body.CampaignID, uuid.MustParse(body.UserID), body.Source)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (c *DeeplinkController) GetDeeplink(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	link, err := c.DeeplinkService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (c *DeeplinkController) ListByCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	links, err := c.DeeplinkService.ListByCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": links})
}

func (c *DeeplinkController) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	links, err := c.DeeplinkService.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": links})
}
