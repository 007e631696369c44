package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/feed"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

type BudgetService struct {
	RuleRepo     repository.BudgetRuleRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	BillingRepo  repository.BillingRepositoryInterface
	Feed         feed.Publisher
	Log          *zap.Logger
	Now          func() time.Time
}

type CreateRuleInput struct {
	CampaignID int64
	RuleType   string
	Threshold  decimal.Decimal
	Action     string
}

func (s *BudgetService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *BudgetService) CreateRule(ctx context.Context, in CreateRuleInput) (*model.BudgetRule, error) {
	v := &appErrors.ValidationError{}
	switch in.RuleType {
	case model.RuleSpendPercent:
		if in.Threshold.GreaterThan(decimal.NewFromInt(100)) {
			v.Add("threshold", "must be at most 100 for spend_percent")
		}
	case model.RuleDailyCap:
	default:
		v.Add("rule_type", "must be spend_percent or daily_cap")
	}
	if !in.Threshold.IsPositive() {
		v.Add("threshold", "must be positive")
	}
	checkMoney(v, "threshold", in.Threshold)
	if in.Action != model.ActionPause && in.Action != model.ActionAlert {
		v.Add("action", "must be pause or alert")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.CampaignRepo.GetByID(ctx, in.CampaignID); err != nil {
		return nil, err
	}
	rule := &model.BudgetRule{
		CampaignID: in.CampaignID,
		RuleType:   in.RuleType,
		Threshold:  in.Threshold,
		Action:     in.Action,
		Enabled:    true,
	}
	if err := s.RuleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *BudgetService) ListRules(ctx context.Context, campaignID int64) ([]*model.BudgetRule, error) {
	return s.RuleRepo.ListByCampaign(ctx, campaignID)
}

func (s *BudgetService) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.RuleRepo.SetEnabled(ctx, id, enabled)
}

func (s *BudgetService) DeleteRule(ctx context.Context, id int64) error {
	return s.RuleRepo.Delete(ctx, id)
}

// Evaluate checks every enabled rule of a campaign and applies the ones that fire.
// Each rule fires at most once per UTC day.
func (s *BudgetService) Evaluate(ctx context.Context, campaignID int64) ([]model.RuleTrigger, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	rules, err := s.RuleRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		todaySpent  *decimal.Decimal
		triggers    = []model.RuleTrigger{}
		pausedByRun bool
	)
	for _, r := range rules {
		if !r.Enabled || r.TriggeredToday(now) {
			continue
		}

		var observed decimal.Decimal
		switch r.RuleType {
		case model.RuleSpendPercent:
			observed = c.Utilization()
		case model.RuleDailyCap:
			if todaySpent == nil {
				spent, err := s.RuleRepo.SpentSince(ctx, campaignID, model.DayStart(now))
				if err != nil {
					return nil, err
				}
				todaySpent = &spent
			}
			observed = *todaySpent
		default:
			continue
		}
		if observed.LessThan(r.Threshold) {
			continue
		}

		claimed, err := s.RuleRepo.MarkTriggered(ctx, r.ID, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		t := model.RuleTrigger{
			RuleID:     r.ID,
			CampaignID: campaignID,
			RuleType:   r.RuleType,
			Action:     r.Action,
			Threshold:  r.Threshold,
			Observed:   observed,
		}
		triggers = append(triggers, t)

		switch r.Action {
		case model.ActionPause:
			if c.Status != model.CampaignActive || pausedByRun {
				break
			}
			err := s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignActive, model.CampaignPaused)
			if err != nil && !errors.Is(err, appErrors.ErrInvalidTransition) {
				return triggers, err
			}
			pausedByRun = err == nil
			s.Log.Info("campaign paused by budget rule", zap.Int64("campaign_id", campaignID), zap.Int64("rule_id", r.ID))
			s.alert(c, t, fmt.Sprintf("campaign %q paused: %s reached %s", c.Title, r.RuleType, observed))
		case model.ActionAlert:
			s.alert(c, t, fmt.Sprintf("campaign %q: %s reached %s (threshold %s)", c.Title, r.RuleType, observed, r.Threshold))
		}
	}
	return triggers, nil
}

// HandleClick is the queue-side entry point: only billed clicks can move a budget.
func (s *BudgetService) HandleClick(ev model.ClickEvent) error {
	if !ev.Charged.IsPositive() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	triggers, err := s.Evaluate(ctx, ev.CampaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if len(triggers) > 0 {
		s.Log.Debug("budget rules fired", zap.Int64("campaign_id", ev.CampaignID), zap.Int("count", len(triggers)))
	}
	return nil
}

func (s *BudgetService) Overview(ctx context.Context, advertiserID uuid.UUID) (*model.BudgetOverview, error) {
	adv, err := s.BillingRepo.GetAdvertiser(ctx, advertiserID)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.CampaignRepo.ListByAdvertiser(ctx, advertiserID)
	if err != nil {
		return nil, err
	}

	o := &model.BudgetOverview{
		Campaigns:        make([]model.CampaignBudget, 0, len(campaigns)),
		TotalBudget:      decimal.Zero,
		TotalSpent:       decimal.Zero,
		TotalRemaining:   decimal.Zero,
		AvailableBalance: adv.Balance,
	}
	for _, c := range campaigns {
		o.Campaigns = append(o.Campaigns, model.CampaignBudget{
			CampaignID:  c.ID,
			Title:       c.Title,
			Status:      c.Status,
			Total:       c.TotalBudget,
			Spent:       c.SpentAmount,
			Remaining:   c.Remaining(),
			Utilization: c.Utilization(),
		})
		o.TotalBudget = o.TotalBudget.Add(c.TotalBudget)
		o.TotalSpent = o.TotalSpent.Add(c.SpentAmount)
		o.TotalRemaining = o.TotalRemaining.Add(c.Remaining())
	}
	o.Utilization = model.Percent(o.TotalSpent, o.TotalBudget)
	return o, nil
}

func (s *BudgetService) alert(c *model.Campaign, t model.RuleTrigger, msg string) {
	if s.Feed == nil {
		return
	}
	s.Feed.Publish(model.Event{
		Kind:       model.EventBudgetAlert,
		CampaignID: c.ID,
		Subject:    c.AdvertiserID.String(),
		Message:    msg,
		Data:       t,
	})
}
