package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

type AnalyticsRepositoryInterface interface {
	DailyClicks(ctx context.Context, campaignID int64, from, to time.Time) ([]model.DailyStat, int, error)
	CampaignTotals(ctx context.Context, advertiserID uuid.UUID, from, to time.Time) ([]model.CampaignTotals, error)
}

type AnalyticsRepository struct {
	DB *sql.DB
}

// DailyClicks groups a campaign's clicks by UTC day. The int result is the number of billed clicks.
func (r *AnalyticsRepository) DailyClicks(ctx context.Context, campaignID int64, from, to time.Time) ([]model.DailyStat, int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE is_unique),
			COUNT(*) FILTER (WHERE charged_amount > 0),
			COALESCE(SUM(charged_amount), 0)
		FROM clicks
		WHERE campaign_id=$1 AND created_at >= $2 AND created_at < $3
		GROUP BY day
		ORDER BY day
	`, campaignID, from, to)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	stats := []model.DailyStat{}
	billed := 0
	for rows.Next() {
		var (
			s model.DailyStat
			b int
		)
		if err := rows.Scan(&s.Date, &s.Clicks, &s.UniqueClicks, &b, &s.Spend); err != nil {
			return nil, 0, err
		}
		s.Date = model.DayStart(s.Date)
		billed += b
		stats = append(stats, s)
	}
	return stats, billed, rows.Err()
}

// CampaignTotals aggregates clicks and spend per campaign of an advertiser.
func (r *AnalyticsRepository) CampaignTotals(ctx context.Context, advertiserID uuid.UUID, from, to time.Time) ([]model.CampaignTotals, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.title,
			COUNT(k.id),
			COUNT(k.id) FILTER (WHERE k.is_unique),
			COALESCE(SUM(k.charged_amount), 0)
		FROM campaigns c
		LEFT JOIN clicks k ON k.campaign_id = c.id AND k.created_at >= $2 AND k.created_at < $3
		WHERE c.advertiser_id=$1 AND c.status <> 'deleted'
		GROUP BY c.id, c.title
	`, advertiserID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []model.CampaignTotals{}
	for rows.Next() {
		var t model.CampaignTotals
		if err := rows.Scan(&t.CampaignID, &t.Title, &t.Clicks, &t.UniqueClicks, &t.Spend); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

var _ AnalyticsRepositoryInterface = (*AnalyticsRepository)(nil)
