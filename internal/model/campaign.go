package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignExhausted = "exhausted"
	CampaignCompleted = "completed"
	CampaignDeleted   = "deleted"
)

type Campaign struct {
	ID             int64           `db:"id" json:"id"`
	AdvertiserID   uuid.UUID       `db:"advertiser_id" json:"advertiser_id"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	DestinationURL string          `db:"destination_url" json:"destination_url"`
	Category       string          `db:"category" json:"category"`
	CPC            decimal.Decimal `db:"cpc" json:"cpc"`
	TotalBudget    decimal.Decimal `db:"total_budget" json:"total_budget"`
	DailyBudget    decimal.Decimal `db:"daily_budget" json:"daily_budget"`
	SpentAmount    decimal.Decimal `db:"spent_amount" json:"spent_amount"`
	Status         string          `db:"status" json:"status"`
	StartDate      *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time      `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// Remaining is the unspent part of the allocated budget, never negative.
func (c *Campaign) Remaining() decimal.Decimal {
	r := c.TotalBudget.Sub(c.SpentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Utilization is spent/total as a percentage rounded to 2 places.
func (c *Campaign) Utilization() decimal.Decimal {
	return Percent(c.SpentAmount, c.TotalBudget)
}

var campaignTransitions = map[string][]string{
	CampaignDraft:     {CampaignActive, CampaignDeleted},
	CampaignActive:    {CampaignPaused, CampaignExhausted, CampaignCompleted, CampaignDeleted},
	CampaignPaused:    {CampaignActive, CampaignCompleted, CampaignDeleted},
	CampaignExhausted: {CampaignActive, CampaignCompleted, CampaignDeleted},
}

// CanTransition reports whether a campaign may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range campaignTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Editable statuses accept title/url/date changes.
func (c *Campaign) Editable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignActive || c.Status == CampaignPaused
}

type CampaignFilter struct {
	AdvertiserID *uuid.UUID
	Status       string
	Offset       int
	Limit        int
}

type CampaignStats struct {
	ClickCount       int             `json:"click_count"`
	UniqueClickCount int             `json:"unique_click_count"`
	DeeplinkCount    int             `json:"deeplink_count"`
	Remaining        decimal.Decimal `json:"remaining_budget"`
	Utilization      decimal.Decimal `json:"utilization_percent"`
}

// Percent returns part/whole*100 rounded to 2 places; zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
