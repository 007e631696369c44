package service

import (
	"context"
	"fmt"
	"net/url"
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

const maxTitleLength = 200

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	Feed         feed.Publisher
	Log          *zap.Logger
}

type CreateCampaignInput struct {
	AdvertiserID   uuid.UUID
	Title          string
	Description    string
	DestinationURL string
	Category       string
	CPC            decimal.Decimal
	TotalBudget    decimal.Decimal
	DailyBudget    decimal.Decimal
	StartDate      *string
	EndDate        *string
}

type UpdateCampaignInput struct {
	Title          *string
	Description    *string
	DestinationURL *string
	Category       *string
	StartDate      *string
	EndDate        *string
}

type CampaignDetails struct {
	*model.Campaign
	Stats model.CampaignStats `json:"stats"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	c := &model.Campaign{
		AdvertiserID:   in.AdvertiserID,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		DestinationURL: strings.TrimSpace(in.DestinationURL),
		Category:       in.Category,
		CPC:            in.CPC,
		TotalBudget:    in.TotalBudget,
		DailyBudget:    in.DailyBudget,
		Status:         model.CampaignDraft,
	}

	v := &appErrors.ValidationError{}
	if in.AdvertiserID == uuid.Nil {
		v.Add("advertiser_id", "is required")
	}
	var err error
	if c.StartDate, err = parseOptionalTime(in.StartDate); err != nil {
		v.Add("start_date", "must be RFC3339")
	}
	if c.EndDate, err = parseOptionalTime(in.EndDate); err != nil {
		v.Add("end_date", "must be RFC3339")
	}
	validateCampaign(c, v)
	if c.CPC.IsPositive() && c.TotalBudget.LessThan(c.CPC) {
		v.Add("total_budget", "must cover at least one click")
	}
	if c.DailyBudget.IsNegative() {
		v.Add("daily_budget", "must not be negative")
	}
	checkMoney(v, "cpc", c.CPC)
	checkMoney(v, "total_budget", c.TotalBudget)
	checkMoney(v, "daily_budget", c.DailyBudget)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.Log.Info("campaign created", zap.Int64("campaign_id", c.ID), zap.String("advertiser_id", c.AdvertiserID.String()))
	return c, nil
}

// CreateFromTemplate renders a template with vars and creates a draft from it.
// Non-empty fields in overrides win over the template's.
func (s *CampaignService) CreateFromTemplate(ctx context.Context, templateID int64, vars map[string]string, overrides CreateCampaignInput) (*model.Campaign, error) {
	t, err := s.TemplateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	in := overrides
	if in.AdvertiserID == uuid.Nil {
		in.AdvertiserID = t.AdvertiserID
	}
	if in.Title == "" {
		in.Title = RenderTemplate(t.Title, vars)
	}
	if in.Description == "" {
		in.Description = RenderTemplate(t.Description, vars)
	}
	if in.DestinationURL == "" {
		in.DestinationURL = t.DestinationURL
	}
	if in.Category == "" {
		in.Category = t.Category
	}
	if in.CPC.IsZero() {
		in.CPC = t.DefaultCPC
	}
	return s.CreateCampaign(ctx, in)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, advertiserID *uuid.UUID, status string) ([]model.Campaign, map[string]int, error) {
	page, pageSize, offset := paginate(page, pageSize)

	ptrs, total, err := s.CampaignRepo.List(ctx, model.CampaignFilter{
		AdvertiserID: advertiserID,
		Status:       status,
		Offset:       offset,
		Limit:        pageSize,
	})
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}
	return campaigns, pageInfo(page, pageSize, total), nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, id int64) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.Stats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	stats.Remaining = c.Remaining()
	stats.Utilization = c.Utilization()
	return &CampaignDetails{Campaign: c, Stats: *stats}, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, id int64, in UpdateCampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Editable() {
		return nil, fmt.Errorf("%w: %s campaign cannot be edited", appErrors.ErrInvalidTransition, c.Status)
	}

	v := &appErrors.ValidationError{}
	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.DestinationURL != nil {
		c.DestinationURL = strings.TrimSpace(*in.DestinationURL)
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.StartDate != nil {
		if c.StartDate, err = parseOptionalTime(in.StartDate); err != nil {
			v.Add("start_date", "must be RFC3339")
		}
	}
	if in.EndDate != nil {
		if c.EndDate, err = parseOptionalTime(in.EndDate); err != nil {
			v.Add("end_date", "must be RFC3339")
		}
	}
	validateCampaign(c, v)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Campaign lifecycle actions accepted by ChangeStatus.
const (
	ActionActivate = "activate"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionComplete = "complete"
)

func (s *CampaignService) ChangeStatus(ctx context.Context, id int64, action string) (*model.Campaign, error) {
	var (
		c   *model.Campaign
		err error
	)
	switch action {
	case ActionActivate:
		c, err = s.CampaignRepo.Activate(ctx, id)
	case ActionPause:
		c, err = s.transition(ctx, id, model.CampaignActive, model.CampaignPaused)
	case ActionResume:
		c, err = s.transition(ctx, id, model.CampaignPaused, model.CampaignActive)
	case ActionComplete:
		var refund decimal.Decimal
		c, refund, err = s.CampaignRepo.Close(ctx, id, model.CampaignCompleted)
		if err == nil {
			s.Log.Info("campaign completed", zap.Int64("campaign_id", id), zap.String("refund", refund.String()))
		}
	default:
		return nil, appErrors.NewValidation("action", "must be one of activate, pause, resume, complete")
	}
	if err != nil {
		return nil, err
	}

	s.publishStatus(c)
	return c, nil
}

func (s *CampaignService) transition(ctx context.Context, id int64, from, to string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s", appErrors.ErrInvalidTransition, c.Status, to)
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	c.Status = to
	return c, nil
}

func (s *CampaignService) IncreaseBudget(ctx context.Context, id int64, delta decimal.Decimal) (*model.Campaign, error) {
	v := &appErrors.ValidationError{}
	if !delta.IsPositive() {
		v.Add("amount", "must be positive")
	}
	checkMoney(v, "amount", delta)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	c, err := s.CampaignRepo.IncreaseBudget(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.publishStatus(c)
	return c, nil
}

// DeleteCampaign removes a draft outright; anything else is refunded and soft-deleted.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id int64) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch c.Status {
	case model.CampaignDraft:
		return s.CampaignRepo.Delete(ctx, id)
	case model.CampaignDeleted:
		return appErrors.NewCampaignNotFound(id)
	case model.CampaignCompleted:
		// already refunded
		return s.CampaignRepo.UpdateStatus(ctx, id, model.CampaignCompleted, model.CampaignDeleted)
	}
	_, refund, err := s.CampaignRepo.Close(ctx, id, model.CampaignDeleted)
	if err != nil {
		return err
	}
	s.Log.Info("campaign deleted", zap.Int64("campaign_id", id), zap.String("refund", refund.String()))
	return nil
}

func (s *CampaignService) publishStatus(c *model.Campaign) {
	if s.Feed == nil {
		return
	}
	s.Feed.Publish(model.Event{
		Kind:       model.EventCampaignStatus,
		CampaignID: c.ID,
		Subject:    c.AdvertiserID.String(),
		Message:    fmt.Sprintf("campaign %q is now %s", c.Title, c.Status),
		Data:       map[string]any{"status": c.Status, "total_budget": c.TotalBudget},
	})
}

func validateCampaign(c *model.Campaign, v *appErrors.ValidationError) {
	if c.Title == "" {
		v.Add("title", "is required")
	} else if len([]rune(c.Title)) > maxTitleLength {
		v.Add("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if err := checkURL(c.DestinationURL); err != nil {
		v.Add("destination_url", err.Error())
	}
	if !c.CPC.IsPositive() {
		v.Add("cpc", "must be positive")
	}
	if c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate) {
		v.Add("end_date", "must be after start_date")
	}
}

// maxMoney is the first value NUMERIC(14,2) cannot hold.
var maxMoney = decimal.New(1, 12)

// checkMoney rejects amounts the database would round or overflow.
func checkMoney(v *appErrors.ValidationError, field string, d decimal.Decimal) {
	switch {
	case !d.Equal(d.Round(2)):
		v.Add(field, "must have at most 2 decimal places")
	case d.Abs().GreaterThanOrEqual(maxMoney):
		v.Add(field, "is too large")
	}
}

func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func paginate(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

func pageInfo(page, pageSize, total int) map[string]int {
	return map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}
