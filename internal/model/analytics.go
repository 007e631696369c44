package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyStat is one row of a per-day series.
type DailyStat struct {
	Date         time.Time       `json:"date"`
	Clicks       int             `json:"clicks"`
	UniqueClicks int             `json:"unique_clicks"`
	Spend        decimal.Decimal `json:"spend"`
}

type CampaignAnalytics struct {
	CampaignID      int64           `json:"campaign_id"`
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	Daily           []DailyStat     `json:"daily"`
	TotalClicks     int             `json:"total_clicks"`
	UniqueClicks    int             `json:"unique_clicks"`
	BilledClicks    int             `json:"billed_clicks"`
	TotalSpend      decimal.Decimal `json:"total_spend"`
	UniqueRate      decimal.Decimal `json:"unique_rate_percent"`
	AvgCostPerClick decimal.Decimal `json:"avg_cost_per_click"`
}

// CampaignTotals is the per-campaign aggregate used by the advertiser overview.
type CampaignTotals struct {
	CampaignID   int64           `json:"campaign_id"`
	Title        string          `json:"title"`
	Clicks       int             `json:"clicks"`
	UniqueClicks int             `json:"unique_clicks"`
	Spend        decimal.Decimal `json:"spend"`
	SpendShare   decimal.Decimal `json:"spend_share_percent"`
}

type AdvertiserAnalytics struct {
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Campaigns   []CampaignTotals `json:"campaigns"`
	TotalClicks int              `json:"total_clicks"`
	TotalSpend  decimal.Decimal  `json:"total_spend"`
}
