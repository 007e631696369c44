package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unclebandit/clickreward-backend/internal/db"
	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type DeeplinkRepositoryInterface interface {
	Upsert(ctx context.Context, d *model.Deeplink) (*model.Deeplink, error)
	GetByID(ctx context.Context, id int64) (*model.Deeplink, error)
	GetByCode(ctx context.Context, code string) (*model.Deeplink, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Deeplink, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Deeplink, error)
	RecordClick(ctx context.Context, in model.ClickInput) (*model.ClickOutcome, error)
}

type DeeplinkRepository struct {
	DB *sql.DB
}

const deeplinkColumns = `id, campaign_id, user_id, tracking_code, destination_url, tracking_url,
	click_count, unique_click_count, created_at`

func scanDeeplink(row rowScanner) (*model.Deeplink, error) {
	var d model.Deeplink
	err := row.Scan(&d.ID, &d.CampaignID, &d.UserID, &d.TrackingCode, &d.DestinationURL, &d.TrackingURL,
		&d.ClickCount, &d.UniqueClickCount, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert inserts the deeplink, or returns the one already issued for the same campaign and user.
func (r *DeeplinkRepository) Upsert(ctx context.Context, d *model.Deeplink) (*model.Deeplink, error) {
	query := `
		INSERT INTO deeplinks (campaign_id, user_id, tracking_code, destination_url, tracking_url, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (campaign_id, user_id) DO UPDATE SET campaign_id = EXCLUDED.campaign_id
		RETURNING ` + deeplinkColumns
	return scanDeeplink(r.DB.QueryRowContext(ctx, query,
		d.CampaignID, d.UserID, d.TrackingCode, d.DestinationURL, d.TrackingURL,
	))
}

func (r *DeeplinkRepository) GetByID(ctx context.Context, id int64) (*model.Deeplink, error) {
	d, err := scanDeeplink(r.DB.QueryRowContext(ctx, `SELECT `+deeplinkColumns+` FROM deeplinks WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("deeplink", id)
	}
	return d, err
}

func (r *DeeplinkRepository) GetByCode(ctx context.Context, code string) (*model.Deeplink, error) {
	d, err := scanDeeplink(r.DB.QueryRowContext(ctx, `SELECT `+deeplinkColumns+` FROM deeplinks WHERE tracking_code=$1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("deeplink", code)
	}
	return d, err
}

func (r *DeeplinkRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Deeplink, error) {
	return r.list(ctx, `SELECT `+deeplinkColumns+` FROM deeplinks WHERE campaign_id=$1 ORDER BY id`, campaignID)
}

func (r *DeeplinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Deeplink, error) {
	return r.list(ctx, `SELECT `+deeplinkColumns+` FROM deeplinks WHERE user_id=$1 ORDER BY id DESC`, userID)
}

func (r *DeeplinkRepository) list(ctx context.Context, query string, arg any) ([]*model.Deeplink, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []*model.Deeplink{}
	for rows.Next() {
		d, err := scanDeeplink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, d)
	}
	return links, rows.Err()
}

// RecordClick stores one click and applies its side effects atomically.
//
// The deeplink row is locked first, then the campaign, then the consumer's progress, so
// concurrent clicks on the same link serialize and the uniqueness check cannot double count.
// A click is billed only when it is unique, the campaign is active and both the total and
// the daily budget still cover one more CPC.
func (r *DeeplinkRepository) RecordClick(ctx context.Context, in model.ClickInput) (*model.ClickOutcome, error) {
	var out *model.ClickOutcome
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		o := &model.ClickOutcome{DeeplinkID: in.DeeplinkID, Charged: decimal.Zero, Reward: decimal.Zero}

		err := tx.QueryRowContext(ctx,
			`SELECT campaign_id, user_id, destination_url FROM deeplinks WHERE id=$1 FOR UPDATE`, in.DeeplinkID,
		).Scan(&o.CampaignID, &o.UserID, &o.DestinationURL)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewNotFound("deeplink", in.DeeplinkID)
			}
			return err
		}

		var (
			status                   string
			cpc, total, daily, spent decimal.Decimal
		)
		err = tx.QueryRowContext(ctx,
			`SELECT status, cpc, total_budget, daily_budget, spent_amount FROM campaigns WHERE id=$1 FOR UPDATE`,
			o.CampaignID,
		).Scan(&status, &cpc, &total, &daily, &spent)
		if err != nil {
			return err
		}

		if !in.KnownDuplicate {
			var seen bool
			err = tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM clicks WHERE deeplink_id=$1 AND fingerprint=$2 AND created_at >= $3)`,
				in.DeeplinkID, in.Fingerprint, in.WindowStart,
			).Scan(&seen)
			if err != nil {
				return err
			}
			o.Unique = !seen
		}

		billable := o.Unique && status == model.CampaignActive && total.Sub(spent).GreaterThanOrEqual(cpc)
		if billable && daily.IsPositive() {
			var today decimal.Decimal
			err = tx.QueryRowContext(ctx,
				`SELECT COALESCE(SUM(charged_amount), 0) FROM clicks WHERE campaign_id=$1 AND created_at >= $2`,
				o.CampaignID, in.DayStart,
			).Scan(&today)
			if err != nil {
				return err
			}
			billable = today.Add(cpc).LessThanOrEqual(daily)
		}

		if billable {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, o.UserID,
			); err != nil {
				return err
			}
			var xp int
			if err := tx.QueryRowContext(ctx,
				`SELECT xp FROM user_progress WHERE user_id=$1 FOR UPDATE`, o.UserID,
			).Scan(&xp); err != nil {
				return err
			}
			o.Charged = cpc
			o.Reward = model.ClickReward(cpc, xp)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO clicks (deeplink_id, campaign_id, fingerprint, ip, user_agent, referrer, is_unique,
				charged_amount, reward_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			in.DeeplinkID, o.CampaignID, in.Fingerprint, in.IP, in.UserAgent, in.Referrer, o.Unique,
			o.Charged, o.Reward, in.Now,
		).Scan(&o.ClickID)
		if err != nil {
			return err
		}

		uniqueInc := 0
		if o.Unique {
			uniqueInc = 1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE deeplinks SET click_count = click_count + 1, unique_click_count = unique_click_count + $1 WHERE id=$2`,
			uniqueInc, in.DeeplinkID,
		); err != nil {
			return err
		}

		if !billable {
			out = o
			return nil
		}

		spent = spent.Add(cpc)
		if total.Sub(spent).LessThan(cpc) {
			status = model.CampaignExhausted
			o.CampaignExhausted = true
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET spent_amount=$1, status=$2, updated_at=$3 WHERE id=$4`,
			spent, status, in.Now, o.CampaignID,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_progress SET balance = balance + $1, xp = xp + $2 WHERE user_id=$3`,
			o.Reward, model.ClickXP, o.UserID,
		); err != nil {
			return err
		}

		out = o
		return nil
	})
	return out, err
}

var _ DeeplinkRepositoryInterface = (*DeeplinkRepository)(nil)
