package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unclebandit/clickreward-backend/internal/db"
	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type BillingRepositoryInterface interface {
	CreateAdvertiser(ctx context.Context, a *model.Advertiser) error
	GetAdvertiser(ctx context.Context, id uuid.UUID) (*model.Advertiser, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	CompleteDeposit(ctx context.Context, txID int64, reference string) (*model.Transaction, error)
	FailTransaction(ctx context.Context, txID int64, reason string) error
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int, error)
	Summarize(ctx context.Context, advertiserID uuid.UUID, from, to time.Time) (*model.TransactionSummary, error)
}

type BillingRepository struct {
	DB *sql.DB
}

const transactionColumns = `id, advertiser_id, campaign_id, type, amount, status, method, description,
	reference, created_at, updated_at`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var campaignID sql.NullInt64
	err := row.Scan(&t.ID, &t.AdvertiserID, &campaignID, &t.Type, &t.Amount, &t.Status, &t.Method,
		&t.Description, &t.Reference, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if campaignID.Valid {
		t.CampaignID = &campaignID.Int64
	}
	return &t, nil
}

func (r *BillingRepository) CreateAdvertiser(ctx context.Context, a *model.Advertiser) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO advertisers (id, name, balance, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Name, a.Balance, a.CreatedAt,
	)
	return err
}

func (r *BillingRepository) GetAdvertiser(ctx context.Context, id uuid.UUID) (*model.Advertiser, error) {
	var a model.Advertiser
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, balance, created_at FROM advertisers WHERE id=$1`, id,
	).Scan(&a.ID, &a.Name, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("advertiser", id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *BillingRepository) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return insertTransaction(ctx, r.DB, t)
}

// CompleteDeposit marks a pending deposit completed and credits the balance in one transaction.
func (r *BillingRepository) CompleteDeposit(ctx context.Context, txID int64, reference string) (*model.Transaction, error) {
	var out *model.Transaction
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		t, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id=$1 FOR UPDATE`, txID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewNotFound("transaction", txID)
			}
			return err
		}
		if t.Status != model.TxPending || t.Type != model.TxDeposit {
			return fmt.Errorf("%w: transaction %d is %s %s", appErrors.ErrInvalidTransition, txID, t.Status, t.Type)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE advertisers SET balance = balance + $1 WHERE id=$2`, t.Amount, t.AdvertiserID)
		if err != nil {
			return err
		}
		if err := requireAffected(res, appErrors.NewNotFound("advertiser", t.AdvertiserID)); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status='completed', reference=$1, updated_at=$2 WHERE id=$3`,
			reference, now, txID,
		); err != nil {
			return err
		}
		t.Status = model.TxCompleted
		t.Reference = reference
		t.UpdatedAt = now
		out = t
		return nil
	})
	return out, err
}

func (r *BillingRepository) FailTransaction(ctx context.Context, txID int64, reason string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET status='failed', description=$1, updated_at=NOW() WHERE id=$2 AND status='pending'`,
		reason, txID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, appErrors.NewNotFound("pending transaction", txID))
}

func (r *BillingRepository) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int, error) {
	where := ` WHERE advertiser_id=$1`
	args := []any{f.AdvertiserID}
	argPos := 2

	if f.Type != "" {
		where += fmt.Sprintf(" AND type=$%d", argPos)
		args = append(args, f.Type)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *f.From)
		argPos++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND created_at < $%d", argPos)
		args = append(args, *f.To)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := r.DB.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

func (r *BillingRepository) Summarize(ctx context.Context, advertiserID uuid.UUID, from, to time.Time) (*model.TransactionSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE advertiser_id=$1 AND status='completed' AND created_at >= $2 AND created_at < $3
		GROUP BY type
	`, advertiserID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &model.TransactionSummary{
		Deposits:    decimal.Zero,
		Allocations: decimal.Zero,
		Refunds:     decimal.Zero,
	}
	for rows.Next() {
		var (
			typ   string
			sum   decimal.Decimal
			count int
		)
		if err := rows.Scan(&typ, &sum, &count); err != nil {
			return nil, err
		}
		switch typ {
		case model.TxDeposit:
			s.Deposits = sum
		case model.TxBudgetAllocation:
			s.Allocations = sum
		case model.TxRefund:
			s.Refunds = sum
		}
		s.Count += count
	}
	s.Net = s.Deposits.Sub(s.Allocations).Add(s.Refunds)
	return s, rows.Err()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertTransaction(ctx context.Context, q execQuerier, t *model.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.TxPending
	}
	query := `
		INSERT INTO transactions (advertiser_id, campaign_id, type, amount, status, method, description,
			reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return q.QueryRowContext(ctx, query,
		t.AdvertiserID, t.CampaignID, t.Type, t.Amount, t.Status, t.Method, t.Description,
		t.Reference, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
}

// debitBalance subtracts amount from the advertiser balance, refusing to go negative.
func debitBalance(ctx context.Context, tx *sql.Tx, advertiserID uuid.UUID, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM advertisers WHERE id=$1 FOR UPDATE`, advertiserID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewNotFound("advertiser", advertiserID)
		}
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: need %s, have %s", appErrors.ErrInsufficientBalance, amount, balance)
	}
	_, err = tx.ExecContext(ctx, `UPDATE advertisers SET balance = balance - $1 WHERE id=$2`, amount, advertiserID)
	return err
}

var _ BillingRepositoryInterface = (*BillingRepository)(nil)
