package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Deeplink struct {
	ID               int64     `db:"id" json:"id"`
	CampaignID       int64     `db:"campaign_id" json:"campaign_id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	TrackingCode     string    `db:"tracking_code" json:"tracking_code"`
	DestinationURL   string    `db:"destination_url" json:"destination_url"`
	TrackingURL      string    `db:"tracking_url" json:"tracking_url"`
	ClickCount       int       `db:"click_count" json:"click_count"`
	UniqueClickCount int       `db:"unique_click_count" json:"unique_click_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type Click struct {
	ID            int64           `db:"id" json:"id"`
	DeeplinkID    int64           `db:"deeplink_id" json:"deeplink_id"`
	CampaignID    int64           `db:"campaign_id" json:"campaign_id"`
	Fingerprint   string          `db:"fingerprint" json:"-"`
	IP            string          `db:"ip" json:"ip"`
	UserAgent     string          `db:"user_agent" json:"user_agent"`
	Referrer      string          `db:"referrer" json:"referrer,omitempty"`
	IsUnique      bool            `db:"is_unique" json:"is_unique"`
	ChargedAmount decimal.Decimal `db:"charged_amount" json:"charged_amount"`
	RewardAmount  decimal.Decimal `db:"reward_amount" json:"reward_amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ClickInput is what the repository needs to record one click atomically.
type ClickInput struct {
	DeeplinkID  int64
	Fingerprint string
	IP          string
	UserAgent   string
	Referrer    string
	// KnownDuplicate skips the uniqueness query when the cache already saw this fingerprint.
	KnownDuplicate bool
	WindowStart    time.Time
	DayStart       time.Time
	Now            time.Time
}

// ClickOutcome reports what recording a click changed.
type ClickOutcome struct {
	ClickID           int64           `json:"click_id"`
	DeeplinkID        int64           `json:"deeplink_id"`
	CampaignID        int64           `json:"campaign_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Unique            bool            `json:"unique"`
	Charged           decimal.Decimal `json:"charged"`
	Reward            decimal.Decimal `json:"reward"`
	CampaignExhausted bool            `json:"campaign_exhausted"`
	DestinationURL    string          `json:"destination_url"`
}

// XP granted to a consumer for each billable click on their link.
const ClickXP = 5
