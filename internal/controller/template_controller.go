package controller

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type TemplateController struct {
	TemplateService *service.TemplateService
	Log             *zap.Logger
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AdvertiserID   string          `json:"advertiser_id" validate:"required,uuid"`
		Name           string          `json:"name" validate:"required,max=100"`
		Category       string          `json:"category" validate:"max=50"`
		Title          string          `json:"title" validate:"required,max=200"`
		Description    string          `json:"description"`
		DestinationURL string          `json:"destination_url" validate:"omitempty,url"`
		DefaultCPC     decimal.Decimal `json:"default_cpc"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	t, err := c.TemplateService.CreateTemplate(r.Context(), service.CreateTemplateInput{
		AdvertiserID:   uuid.MustParse(body.AdvertiserID),
		Name:           body.Name,
		Category:       body.Category,
		Title:          body.Title,
		Description:    body.Description,
		DestinationURL: body.DestinationURL,
		DefaultCPC:     body.DefaultCPC,
	})
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	list, err := c.TemplateService.ListTemplates(r.Context(), advertiserID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (c *TemplateController) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	t, err := c.TemplateService.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"template":     t,
		"placeholders": service.Placeholders(t.Title + " " + t.Description),
	})
}

func (c *TemplateController) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	if err := c.TemplateService.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *TemplateController) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Variables map[string]string `json:"variables"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	title, description, err := c.TemplateService.Preview(r.Context(), id, body.Variables)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"title":       title,
		"description": description,
	})
}
