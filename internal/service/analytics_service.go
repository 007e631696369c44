package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

const (
	defaultRange = 30 * 24 * time.Hour
	maxRange     = 366 * 24 * time.Hour
)

type AnalyticsService struct {
	AnalyticsRepo repository.AnalyticsRepositoryInterface
	CampaignRepo  repository.CampaignRepositoryInterface
	Log           *zap.Logger
	Now           func() time.Time
}

func (s *AnalyticsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// resolveRange fills missing bounds (last 30 days ending now) and enforces order and span.
func resolveRange(from, to *time.Time, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-defaultRange)
	if from != nil {
		start = from.UTC()
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.NewValidation("to", "must be after from")
	}
	if end.Sub(start) > maxRange {
		return time.Time{}, time.Time{}, appErrors.NewValidation("from", "range must not exceed 366 days")
	}
	return start, end, nil
}

func (s *AnalyticsService) CampaignAnalytics(ctx context.Context, campaignID int64, from, to *time.Time) (*model.CampaignAnalytics, error) {
	start, end, err := resolveRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}

	rows, billed, err := s.AnalyticsRepo.DailyClicks(ctx, campaignID, start, end)
	if err != nil {
		return nil, err
	}

	a := &model.CampaignAnalytics{
		CampaignID:      campaignID,
		From:            start,
		To:              end,
		Daily:           fillDays(rows, start, end),
		BilledClicks:    billed,
		TotalSpend:      decimal.Zero,
		AvgCostPerClick: decimal.Zero,
	}
	for _, d := range rows {
		a.TotalClicks += d.Clicks
		a.UniqueClicks += d.UniqueClicks
		a.TotalSpend = a.TotalSpend.Add(d.Spend)
	}
	a.UniqueRate = model.Percent(decimal.NewFromInt(int64(a.UniqueClicks)), decimal.NewFromInt(int64(a.TotalClicks)))
	if billed > 0 {
		a.AvgCostPerClick = a.TotalSpend.Div(decimal.NewFromInt(int64(billed))).Round(2)
	}
	return a, nil
}

func (s *AnalyticsService) AdvertiserOverview(ctx context.Context, advertiserID uuid.UUID, from, to *time.Time) (*model.AdvertiserAnalytics, error) {
	start, end, err := resolveRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	totals, err := s.AnalyticsRepo.CampaignTotals(ctx, advertiserID, start, end)
	if err != nil {
		return nil, err
	}

	out := &model.AdvertiserAnalytics{From: start, To: end, TotalSpend: decimal.Zero}
	for _, t := range totals {
		out.TotalClicks += t.Clicks
		out.TotalSpend = out.TotalSpend.Add(t.Spend)
	}
	for i := range totals {
		totals[i].SpendShare = model.Percent(totals[i].Spend, out.TotalSpend)
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if !totals[i].Spend.Equal(totals[j].Spend) {
			return totals[i].Spend.GreaterThan(totals[j].Spend)
		}
		return totals[i].CampaignID < totals[j].CampaignID
	})
	out.Campaigns = totals
	return out, nil
}

// fillDays returns one entry per UTC day in [start, end), zero-filling days without clicks.
func fillDays(rows []model.DailyStat, start, end time.Time) []model.DailyStat {
	byDay := make(map[time.Time]model.DailyStat, len(rows))
	for _, r := range rows {
		byDay[model.DayStart(r.Date)] = r
	}

	days := []model.DailyStat{}
	for d := model.DayStart(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		if r, ok := byDay[d]; ok {
			r.Date = d
			days = append(days, r)
			continue
		}
		days = append(days, model.DailyStat{Date: d, Spend: decimal.Zero})
	}
	return days
}
