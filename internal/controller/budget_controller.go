package controller

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type BudgetController struct {
	BudgetService *service.BudgetService
	Log           *zap.Logger
}

func (c *BudgetController) CreateRule(w http.ResponseWriter, r *http.Request) {
	campaignID, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		RuleType  string          `json:"rule_type" validate:"required,oneof=spend_percent daily_cap"`
		Threshold decimal.Decimal `json:"threshold"`
		Action    string          `json:"action" validate:"required,oneof=pause alert"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	rule, err := c.BudgetService.CreateRule(r.Context(), service.CreateRuleInput{
		CampaignID: campaignID,
		RuleType:   body.RuleType,
		Threshold:  body.Threshold,
		Action:     body.Action,
	})
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (c *BudgetController) ListRules(w http.ResponseWriter, r *http.Request) {
	campaignID, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	rules, err := c.BudgetService.ListRules(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rules})
}

func (c *BudgetController) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	ruleID, err := int64Param(r, "ruleID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Enabled *bool `json:"enabled" validate:"required"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	if err := c.BudgetService.SetRuleEnabled(r.Context(), ruleID, *body.Enabled); err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": ruleID, "enabled": *body.Enabled})
}

func (c *BudgetController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := int64Param(r, "ruleID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	if err := c.BudgetService.DeleteRule(r.Context(), ruleID); err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate runs the campaign's rules now and returns the ones that fired.
func (c *BudgetController) Evaluate(w http.ResponseWriter, r *http.Request) {
	campaignID, err := int64Param(r, "id")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	triggers, err := c.BudgetService.Evaluate(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggered": triggers})
}

func (c *BudgetController) Overview(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	o, err := c.BudgetService.Overview(r.Context(), advertiserID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
