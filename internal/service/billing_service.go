package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/feed"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

type BillingService struct {
	BillingRepo repository.BillingRepositoryInterface
	Processor   PaymentProcessor
	Feed        feed.Publisher
	Log         *zap.Logger

	MinTopUp decimal.Decimal
	MaxTopUp decimal.Decimal
	Now      func() time.Time
}

type TopUpResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Balance     decimal.Decimal    `json:"balance"`
}

type ListTransactionsInput struct {
	AdvertiserID uuid.UUID
	Type         string
	Status       string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

func (s *BillingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *BillingService) GetBalance(ctx context.Context, advertiserID uuid.UUID) (*model.Advertiser, error) {
	return s.BillingRepo.GetAdvertiser(ctx, advertiserID)
}

func (s *BillingService) CreateAdvertiser(ctx context.Context, name string) (*model.Advertiser, error) {
	if strings.TrimSpace(name) == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	a := &model.Advertiser{Name: strings.TrimSpace(name), Balance: decimal.Zero}
	if err := s.BillingRepo.CreateAdvertiser(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// TopUp validates the payment form, charges through the processor and credits the balance.
// A declined payment leaves a failed transaction behind and returns the transaction with the error.
func (s *BillingService) TopUp(ctx context.Context, req PaymentRequest) (*TopUpResult, error) {
	if err := s.ValidatePayment(req); err != nil {
		return nil, err
	}
	if _, err := s.BillingRepo.GetAdvertiser(ctx, req.AdvertiserID); err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		AdvertiserID: req.AdvertiserID,
		Type:         model.TxDeposit,
		Amount:       req.Amount,
		Status:       model.TxPending,
		Method:       req.Method,
		Description:  describePayment(req),
	}
	if err := s.BillingRepo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	receipt, err := s.Processor.Charge(ctx, req)
	if err != nil {
		s.Log.Warn("payment failed", zap.Int64("transaction_id", tx.ID), zap.Error(err))
		// the request context may already be gone
		if ferr := s.BillingRepo.FailTransaction(context.WithoutCancel(ctx), tx.ID, err.Error()); ferr != nil {
			s.Log.Error("failed to mark transaction failed", zap.Int64("transaction_id", tx.ID), zap.Error(ferr))
		}
		tx.Status = model.TxFailed
		tx.Description = err.Error()
		s.publish(model.EventPaymentFailed, tx, fmt.Sprintf("payment of %s failed: %v", tx.Amount, err))
		return &TopUpResult{Transaction: tx}, fmt.Errorf("payment failed: %w", err)
	}

	// the processor has charged; crediting must not depend on the client staying
	credit := context.WithoutCancel(ctx)
	done, err := s.BillingRepo.CompleteDeposit(credit, tx.ID, receipt.Reference)
	if err != nil {
		s.Log.Error("charged payment could not be credited",
			zap.Int64("transaction_id", tx.ID), zap.String("reference", receipt.Reference), zap.Error(err))
		return nil, err
	}
	a, err := s.BillingRepo.GetAdvertiser(credit, req.AdvertiserID)
	if err != nil {
		return nil, err
	}

	s.Log.Info("balance topped up",
		zap.String("advertiser_id", req.AdvertiserID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", receipt.Reference),
	)
	s.publish(model.EventPaymentComplete, done, fmt.Sprintf("deposit of %s completed", done.Amount))
	return &TopUpResult{Transaction: done, Balance: a.Balance}, nil
}

// ValidatePayment applies the payment form rules.
func (s *BillingService) ValidatePayment(req PaymentRequest) error {
	v := &appErrors.ValidationError{}

	if req.AdvertiserID == uuid.Nil {
		v.Add("advertiser_id", "is required")
	}
	if req.Amount.LessThan(s.MinTopUp) || req.Amount.GreaterThan(s.MaxTopUp) {
		v.Add("amount", fmt.Sprintf("must be between %s and %s", s.MinTopUp, s.MaxTopUp))
	}
	checkMoney(v, "amount", req.Amount)

	switch req.Method {
	case model.MethodCard:
		if req.Card == nil {
			v.Add("card", "is required")
			break
		}
		number := strings.ReplaceAll(strings.ReplaceAll(req.Card.Number, " ", ""), "-", "")
		if len(number) < 13 || len(number) > 19 || !LuhnValid(number) {
			v.Add("card.number", "is invalid")
		}
		if !expiryValid(req.Card.Expiry, s.now()) {
			v.Add("card.expiry", "must be a future MM/YY")
		}
		if !digitsBetween(req.Card.CVC, 3, 4) {
			v.Add("card.cvc", "must be 3 or 4 digits")
		}
	case model.MethodBankTransfer:
		if req.Bank == nil || strings.TrimSpace(req.Bank.AccountHolder) == "" {
			v.Add("bank.account_holder", "is required")
		}
		if req.Bank == nil || strings.TrimSpace(req.Bank.BankName) == "" {
			v.Add("bank.bank_name", "is required")
		}
	default:
		v.Add("method", "must be card or bank_transfer")
	}
	return v.OrNil()
}

func (s *BillingService) ListTransactions(ctx context.Context, in ListTransactionsInput) ([]*model.Transaction, map[string]int, error) {
	if in.From != nil && in.To != nil && !in.To.After(*in.From) {
		return nil, nil, appErrors.NewValidation("to", "must be after from")
	}
	page, pageSize, offset := paginate(in.Page, in.PageSize)
	list, total, err := s.BillingRepo.ListTransactions(ctx, model.TransactionFilter{
		AdvertiserID: in.AdvertiserID,
		Type:         in.Type,
		Status:       in.Status,
		From:         in.From,
		To:           in.To,
		Offset:       offset,
		Limit:        pageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return list, pageInfo(page, pageSize, total), nil
}

func (s *BillingService) Summary(ctx context.Context, advertiserID uuid.UUID, from, to *time.Time) (*model.TransactionSummary, error) {
	f, t, err := resolveRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	return s.BillingRepo.Summarize(ctx, advertiserID, f, t)
}

func (s *BillingService) publish(kind string, tx *model.Transaction, msg string) {
	if s.Feed == nil {
		return
	}
	s.Feed.Publish(model.Event{
		Kind:    kind,
		Subject: tx.AdvertiserID.String(),
		Message: msg,
		Data:    tx,
	})
}

func describePayment(req PaymentRequest) string {
	switch req.Method {
	case model.MethodCard:
		n := req.Card.Number
		if len(n) > 4 {
			n = n[len(n)-4:]
		}
		return "card top-up ****" + n
	case model.MethodBankTransfer:
		return "bank transfer from " + req.Bank.BankName
	}
	return "top-up"
}

func expiryValid(expiry string, now time.Time) bool {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	month, err1 := strconv.Atoi(parts[0])
	year, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return false
	}
	// cards expire at the end of their month
	end := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.Before(end)
}

func digitsBetween(s string, lo, hi int) bool {
	if len(s) < lo || len(s) > hi {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
