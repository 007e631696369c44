package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Queue topics.
const (
	TopicClickRecorded = "click_recorded"
)

// Feed event kinds.
const (
	EventClick           = "click"
	EventBudgetAlert     = "budget_alert"
	EventCampaignStatus  = "campaign_status"
	EventPaymentComplete = "payment_completed"
	EventPaymentFailed   = "payment_failed"
	EventLevelUp         = "level_up"
)

// Event is one entry in the realtime activity feed.
type Event struct {
	Kind       string    `json:"kind"`
	CampaignID int64     `json:"campaign_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Message    string    `json:"message"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

// ClickEvent is published on TopicClickRecorded after a click commits.
type ClickEvent struct {
	ClickID    int64           `json:"click_id"`
	DeeplinkID int64           `json:"deeplink_id"`
	CampaignID int64           `json:"campaign_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Unique     bool            `json:"unique"`
	Charged    decimal.Decimal `json:"charged"`
	Exhausted  bool            `json:"exhausted"`
	At         time.Time       `json:"at"`
}

// DecodeClickEvent accepts the payload shapes produced by the in-memory and AMQP queues.
func DecodeClickEvent(payload any) (ClickEvent, error) {
	switch p := payload.(type) {
	case ClickEvent:
		return p, nil
	case *ClickEvent:
		if p == nil {
			return ClickEvent{}, fmt.Errorf("nil click event")
		}
		return *p, nil
	case []byte:
		var ev ClickEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			return ClickEvent{}, fmt.Errorf("decode click event: %w", err)
		}
		return ev, nil
	default:
		return ClickEvent{}, fmt.Errorf("unexpected click event payload %T", payload)
	}
}
