package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
	Log              *zap.Logger
}

// CampaignAnalytics serves GET /campaigns/{id}/analytics?from=&to=
func (c *AnalyticsController) CampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	a, err := c.AnalyticsService.CampaignAnalytics(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (c *AnalyticsController) AdvertiserOverview(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	o, err := c.AnalyticsService.AdvertiserOverview(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
