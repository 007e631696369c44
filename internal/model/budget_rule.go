package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RuleSpendPercent = "spend_percent"
	RuleDailyCap     = "daily_cap"

	ActionPause = "pause"
	ActionAlert = "alert"
)

type BudgetRule struct {
	ID              int64           `db:"id" json:"id"`
	CampaignID      int64           `db:"campaign_id" json:"campaign_id"`
	RuleType        string          `db:"rule_type" json:"rule_type"`
	Threshold       decimal.Decimal `db:"threshold" json:"threshold"`
	Action          string          `db:"action" json:"action"`
	Enabled         bool            `db:"enabled" json:"enabled"`
	LastTriggeredAt *time.Time      `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// TriggeredToday reports whether the rule already fired on now's UTC day.
func (r *BudgetRule) TriggeredToday(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}
	return DayStart(*r.LastTriggeredAt).Equal(DayStart(now))
}

type RuleTrigger struct {
	RuleID     int64           `json:"rule_id"`
	CampaignID int64           `json:"campaign_id"`
	RuleType   string          `json:"rule_type"`
	Action     string          `json:"action"`
	Threshold  decimal.Decimal `json:"threshold"`
	Observed   decimal.Decimal `json:"observed"`
}

type CampaignBudget struct {
	CampaignID  int64           `json:"campaign_id"`
	Title       string          `json:"title"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total_budget"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization decimal.Decimal `json:"utilization_percent"`
}

type BudgetOverview struct {
	Campaigns        []CampaignBudget `json:"campaigns"`
	TotalBudget      decimal.Decimal  `json:"total_budget"`
	TotalSpent       decimal.Decimal  `json:"total_spent"`
	TotalRemaining   decimal.Decimal  `json:"total_remaining"`
	Utilization      decimal.Decimal  `json:"utilization_percent"`
	AvailableBalance decimal.Decimal  `json:"available_balance"`
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
