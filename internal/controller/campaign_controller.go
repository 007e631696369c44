package controller

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Log             *zap.Logger
}

type createCampaignRequest struct {
	AdvertiserID   string          `json:"advertiser_id" validate:"required,uuid"`
	Title          string          `json:"title" validate:"required,max=200"`
	Description    string          `json:"description"`
	DestinationURL string          `json:"destination_url" validate:"required,url"`
	Category       string          `json:"category" validate:"max=50"`
	CPC            decimal.Decimal `json:"cpc"`
	TotalBudget    decimal.Decimal `json:"total_budget"`
	DailyBudget    decimal.Decimal `json:"daily_budget"`
	StartDate      *string         `json:"start_date"`
	EndDate        *string         `json:"end_date"`
}

func (req createCampaignRequest) input() service.CreateCampaignInput {
	return service.CreateCampaignInput{
		AdvertiserID:   uuid.MustParse(req.AdvertiserID),
		Title:          req.Title,
		Description:    req.Description,
		DestinationURL: req.DestinationURL,
		Category:       req.Category,
		CPC:            req.CPC,
		TotalBudget:    req.TotalBudget,
		DailyBudget:    req.DailyBudget,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body createCampaignRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body.input())
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// CreateFromTemplate builds a draft from a stored template. Any campaign field in the
// body overrides the template's.
func (c *CampaignController) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID   int64             `json:"template_id" validate:"required,gt=0"`
		Variables    map[string]string `json:"variables"`
		AdvertiserID string            `json:"advertiser_id" validate:"omitempty,uuid"`
		Title        string            `json:"title" validate:"max=200"`
		Description  string            `json:"description"`
		URL          string            `json:"destination_url" validate:"omitempty,url"`
		Category     string            `json:"category"`
		CPC          decimal.Decimal   `json:"cpc"`
		TotalBudget  decimal.Decimal   `json:"total_budget"`
		DailyBudget  decimal.Decimal   `json:"daily_budget"`
		StartDate    *string           `json:"start_date"`
		EndDate      *string           `json:"end_date"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	overrides := service.CreateCampaignInput{
		Title:          body.Title,
		Description:    body.Description,
		DestinationURL: body.URL,
		Category:       body.Category,
		CPC:            body.CPC,
		TotalBudget:    body.TotalBudget,
		DailyBudget:    body.DailyBudget,
		StartDate:      body.StartDate,
		EndDate:        body.EndDate,
	}
	if body.AdvertiserID != "" {
		overrides.AdvertiserID = uuid.MustParse(body.AdvertiserID)
	}

	campaign, err := c.CampaignService.CreateFromTemplate(r.Context(), body.TemplateID, body.Variables, overrides)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	var advertiserID *uuid.UUID
	if raw := q.Get("advertiser_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, c.Log, appErrors.NewValidation("advertiser_id", "must be a UUID"))
			return
		}
		advertiserID = &id
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, advertiserID, q.Get("status"))
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Title          *string `json:"title" validate:"omitempty,max=200"`
		Description    *string `json:"description"`
		DestinationURL *string `json:"destination_url" validate:"omitempty,url"`
		Category       *string `json:"category" validate:"omitempty,max=50"`
		StartDate      *string `json:"start_date"`
		EndDate        *string `json:"end_date"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), id, service.UpdateCampaignInput{
		Title:          body.Title,
		Description:    body.Description,
		DestinationURL: body.DestinationURL,
		Category:       body.Category,
		StartDate:      body.StartDate,
		EndDate:        body.EndDate,
	})
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// ChangeStatus applies a lifecycle action: activate, pause, resume or complete.
func (c *CampaignController) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Action string `json:"action" validate:"required,oneof=activate pause resume complete"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.ChangeStatus(r.Context(), id, body.Action)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) IncreaseBudget(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.IncreaseBudget(r.Context(), id, body.Amount)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	if err := c.CampaignService.DeleteCampaign(r.Context(), id); err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
