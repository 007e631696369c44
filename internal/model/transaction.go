package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TxDeposit          = "deposit"
	TxBudgetAllocation = "budget_allocation"
	TxRefund           = "refund"

	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"

	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodBalance      = "balance"
)

type Advertiser struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type Transaction struct {
	ID           int64           `db:"id" json:"id"`
	AdvertiserID uuid.UUID       `db:"advertiser_id" json:"advertiser_id"`
	CampaignID   *int64          `db:"campaign_id" json:"campaign_id,omitempty"`
	Type         string          `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Status       string          `db:"status" json:"status"`
	Method       string          `db:"method" json:"method"`
	Description  string          `db:"description" json:"description"`
	Reference    string          `db:"reference" json:"reference,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type TransactionFilter struct {
	AdvertiserID uuid.UUID
	Type         string
	Status       string
	From         *time.Time
	To           *time.Time
	Offset       int
	Limit        int
}

type TransactionSummary struct {
	Deposits    decimal.Decimal `json:"deposits"`
	Allocations decimal.Decimal `json:"allocations"`
	Refunds     decimal.Decimal `json:"refunds"`
	Net         decimal.Decimal `json:"net"`
	Count       int             `json:"count"`
}
