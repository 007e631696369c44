package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Template is a reusable campaign blueprint. Title and Description may hold {placeholders}.
type Template struct {
	ID             int64           `db:"id" json:"id"`
	AdvertiserID   uuid.UUID       `db:"advertiser_id" json:"advertiser_id"`
	Name           string          `db:"name" json:"name"`
	Category       string          `db:"category" json:"category"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	DestinationURL string          `db:"destination_url" json:"destination_url"`
	DefaultCPC     decimal.Decimal `db:"default_cpc" json:"default_cpc"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
