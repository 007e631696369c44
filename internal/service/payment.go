package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is what the processor needs to take money from the advertiser.
type PaymentRequest struct {
	AdvertiserID uuid.UUID
	Amount       decimal.Decimal
	Method       string
	Card         *CardDetails
	Bank         *BankDetails
}

type CardDetails struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"` // MM/YY
	CVC    string `json:"cvc"`
	Holder string `json:"holder"`
}

type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
}

type PaymentReceipt struct {
	Reference   string
	ProcessedAt time.Time
}

type PaymentProcessor interface {
	Charge(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error)
}

// MockProcessor simulates a gateway: it waits Delay and then succeeds with SuccessRate.
type MockProcessor struct {
	SuccessRate float64
	Delay       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMockProcessor(successRate float64, delay time.Duration) *MockProcessor {
	return &MockProcessor{
		SuccessRate: successRate,
		Delay:       delay,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *MockProcessor) Charge(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	roll := p.rnd.Float64()
	p.mu.Unlock()

	if roll >= p.SuccessRate {
		return nil, fmt.Errorf("payment declined by issuer")
	}
	return &PaymentReceipt{
		Reference:   "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// LuhnValid reports whether a digit string passes the Luhn checksum.
func LuhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return len(number) > 0 && sum%10 == 0
}

var _ PaymentProcessor = (*MockProcessor)(nil)
