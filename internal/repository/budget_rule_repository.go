package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type BudgetRuleRepositoryInterface interface {
	Create(ctx context.Context, rule *model.BudgetRule) error
	GetByID(ctx context.Context, id int64) (*model.BudgetRule, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.BudgetRule, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	MarkTriggered(ctx context.Context, id int64, at time.Time) (bool, error)
	Delete(ctx context.Context, id int64) error
	SpentSince(ctx context.Context, campaignID int64, since time.Time) (decimal.Decimal, error)
}

type BudgetRuleRepository struct {
	DB *sql.DB
}

const ruleColumns = `id, campaign_id, rule_type, threshold, action, enabled, last_triggered_at, created_at`

func scanRule(row rowScanner) (*model.BudgetRule, error) {
	var r model.BudgetRule
	if err := row.Scan(&r.ID, &r.CampaignID, &r.RuleType, &r.Threshold, &r.Action, &r.Enabled,
		&r.LastTriggeredAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *BudgetRuleRepository) Create(ctx context.Context, rule *model.BudgetRule) error {
	rule.CreatedAt = time.Now().UTC()
	return r.DB.QueryRowContext(ctx, `
		INSERT INTO budget_rules (campaign_id, rule_type, threshold, action, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rule.CampaignID, rule.RuleType, rule.Threshold, rule.Action, rule.Enabled, rule.CreatedAt,
	).Scan(&rule.ID)
}

func (r *BudgetRuleRepository) GetByID(ctx context.Context, id int64) (*model.BudgetRule, error) {
	rule, err := scanRule(r.DB.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM budget_rules WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("budget rule", id)
	}
	return rule, err
}

func (r *BudgetRuleRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.BudgetRule, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM budget_rules WHERE campaign_id=$1 ORDER BY id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []*model.BudgetRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *BudgetRuleRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE budget_rules SET enabled=$1 WHERE id=$2`, enabled, id)
	if err != nil {
		return err
	}
	return requireAffected(res, appErrors.NewNotFound("budget rule", id))
}

// MarkTriggered claims the rule for at's UTC day. It reports false when the rule
// is disabled or another evaluation already claimed that day.
func (r *BudgetRuleRepository) MarkTriggered(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE budget_rules SET last_triggered_at=$1
		WHERE id=$2 AND enabled AND (last_triggered_at IS NULL OR last_triggered_at < $3)`,
		at, id, model.DayStart(at),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *BudgetRuleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM budget_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, appErrors.NewNotFound("budget rule", id))
}

// SpentSince sums what the campaign was charged for clicks at or after since.
func (r *BudgetRuleRepository) SpentSince(ctx context.Context, campaignID int64, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(charged_amount), 0) FROM clicks WHERE campaign_id=$1 AND created_at >= $2`,
		campaignID, since,
	).Scan(&sum)
	return sum, err
}

var _ BudgetRuleRepositoryInterface = (*BudgetRuleRepository)(nil)
