package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/unclebandit/clickreward-backend/internal/db"
	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID) ([]*model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, id int64) (*model.CampaignStats, error)

	// Status and budget
	UpdateStatus(ctx context.Context, id int64, from, to string) error
	Activate(ctx context.Context, id int64) (*model.Campaign, error)
	IncreaseBudget(ctx context.Context, id int64, delta decimal.Decimal) (*model.Campaign, error)
	Close(ctx context.Context, id int64, final string) (*model.Campaign, decimal.Decimal, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, advertiser_id, title, description, destination_url, category, cpc,
	total_budget, daily_budget, spent_amount, status, start_date, end_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.AdvertiserID, &c.Title, &c.Description, &c.DestinationURL, &c.Category, &c.CPC,
		&c.TotalBudget, &c.DailyBudget, &c.SpentAmount, &c.Status, &c.StartDate, &c.EndDate,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
		INSERT INTO campaigns (advertiser_id, title, description, destination_url, category, cpc,
			total_budget, daily_budget, spent_amount, status, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		c.AdvertiserID, c.Title, c.Description, c.DestinationURL, c.Category, c.CPC,
		c.TotalBudget, c.DailyBudget, c.Status, c.StartDate, c.EndDate, c.CreatedAt,
	).Scan(&c.ID)
	return advertiserRef(err, c.AdvertiserID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error) {
	where := ` WHERE status <> 'deleted'`
	args := []any{}
	argPos := 1

	if f.AdvertiserID != nil {
		where += fmt.Sprintf(" AND advertiser_id=$%d", argPos)
		args = append(args, *f.AdvertiserID)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := r.DB.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

func (r *CampaignRepository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE advertiser_id=$1 AND status <> 'deleted' ORDER BY id`,
		advertiserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET title=$1, description=$2, destination_url=$3, category=$4, start_date=$5, end_date=$6, updated_at=NOW()
		WHERE id=$7
	`
	res, err := r.DB.ExecContext(ctx, query,
		c.Title, c.Description, c.DestinationURL, c.Category, c.StartDate, c.EndDate, c.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, appErrors.NewCampaignNotFound(c.ID))
}

// Delete hard-deletes a draft. Non-draft campaigns go through Close instead.
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("%w: only drafts can be removed", appErrors.ErrInvalidTransition))
}

func (r *CampaignRepository) Stats(ctx context.Context, id int64) (*model.CampaignStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(click_count), 0), COALESCE(SUM(unique_click_count), 0)
		FROM deeplinks WHERE campaign_id=$1
	`
	var s model.CampaignStats
	if err := r.DB.QueryRowContext(ctx, query, id).Scan(&s.DeeplinkCount, &s.ClickCount, &s.UniqueClickCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// ====================== Status & Budget ======================

// UpdateStatus moves a campaign from one status to another, failing if it is no longer in from.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		to, id, from,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("%w: campaign %d is no longer %s", appErrors.ErrInvalidTransition, id, from))
}

// Activate funds a draft campaign from the advertiser balance and marks it active.
func (r *CampaignRepository) Activate(ctx context.Context, id int64) (*model.Campaign, error) {
	var out *model.Campaign
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		c, err := lockCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status != model.CampaignDraft {
			return fmt.Errorf("%w: cannot activate %s campaign", appErrors.ErrInvalidTransition, c.Status)
		}
		if err := debitBalance(ctx, tx, c.AdvertiserID, c.TotalBudget); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, &model.Transaction{
			AdvertiserID: c.AdvertiserID,
			CampaignID:   &c.ID,
			Type:         model.TxBudgetAllocation,
			Amount:       c.TotalBudget,
			Status:       model.TxCompleted,
			Method:       model.MethodBalance,
			Description:  fmt.Sprintf("budget allocation for campaign %d", c.ID),
		}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET status='active', updated_at=NOW() WHERE id=$1`, id,
		); err != nil {
			return err
		}
		c.Status = model.CampaignActive
		out = c
		return nil
	})
	return out, err
}

// IncreaseBudget allocates delta more from the balance; an exhausted campaign resumes.
func (r *CampaignRepository) IncreaseBudget(ctx context.Context, id int64, delta decimal.Decimal) (*model.Campaign, error) {
	var out *model.Campaign
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		c, err := lockCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		switch c.Status {
		case model.CampaignCompleted, model.CampaignDeleted:
			return fmt.Errorf("%w: cannot fund %s campaign", appErrors.ErrInvalidTransition, c.Status)
		}

		// drafts are funded on activation, so only the stored budget changes
		if c.Status != model.CampaignDraft {
			if err := debitBalance(ctx, tx, c.AdvertiserID, delta); err != nil {
				return err
			}
			if err := insertTransaction(ctx, tx, &model.Transaction{
				AdvertiserID: c.AdvertiserID,
				CampaignID:   &c.ID,
				Type:         model.TxBudgetAllocation,
				Amount:       delta,
				Status:       model.TxCompleted,
				Method:       model.MethodBalance,
				Description:  fmt.Sprintf("budget increase for campaign %d", c.ID),
			}); err != nil {
				return err
			}
		}

		c.TotalBudget = c.TotalBudget.Add(delta)
		if c.Status == model.CampaignExhausted && c.Remaining().GreaterThanOrEqual(c.CPC) {
			c.Status = model.CampaignActive
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET total_budget=$1, status=$2, updated_at=NOW() WHERE id=$3`,
			c.TotalBudget, c.Status, id,
		); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// Close ends a funded campaign with the final status and refunds what was not spent.
func (r *CampaignRepository) Close(ctx context.Context, id int64, final string) (*model.Campaign, decimal.Decimal, error) {
	var (
		out    *model.Campaign
		refund decimal.Decimal
	)
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		c, err := lockCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status == model.CampaignDraft || !model.CanTransition(c.Status, final) {
			return fmt.Errorf("%w: %s -> %s", appErrors.ErrInvalidTransition, c.Status, final)
		}

		refund = c.Remaining()
		if refund.IsPositive() {
			if _, err := tx.ExecContext(ctx,
				`UPDATE advertisers SET balance = balance + $1 WHERE id=$2`, refund, c.AdvertiserID,
			); err != nil {
				return err
			}
			if err := insertTransaction(ctx, tx, &model.Transaction{
				AdvertiserID: c.AdvertiserID,
				CampaignID:   &c.ID,
				Type:         model.TxRefund,
				Amount:       refund,
				Status:       model.TxCompleted,
				Method:       model.MethodBalance,
				Description:  fmt.Sprintf("unspent budget of campaign %d", c.ID),
			}); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`, final, id,
		); err != nil {
			return err
		}
		c.Status = final
		out = c
		return nil
	})
	return out, refund, err
}

func lockCampaign(ctx context.Context, tx *sql.Tx, id int64) (*model.Campaign, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1 FOR UPDATE`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

// advertiserRef reports an insert that referenced a missing advertiser as not found.
func advertiserRef(err error, advertiserID uuid.UUID) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return appErrors.NewNotFound("advertiser", advertiserID)
	}
	return err
}

const foreignKeyViolation = "23503"

// requireAffected returns notFound when the statement touched no rows.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
