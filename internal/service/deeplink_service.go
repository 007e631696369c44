package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/cache"
	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/feed"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/queue"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

const defaultUTMSource = "reward_app"

type DeeplinkService struct {
	DeeplinkRepo repository.DeeplinkRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	Deduper      cache.ClickDeduper
	Queue        queue.Queue
	Feed         feed.Publisher
	Log          *zap.Logger

	PublicBaseURL string
	DedupeWindow  time.Duration
	Now           func() time.Time
}

type ClickMeta struct {
	IP        string
	UserAgent string
	Referrer  string
}

func (s *DeeplinkService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DeeplinkService) window() time.Duration {
	if s.DedupeWindow > 0 {
		return s.DedupeWindow
	}
	return 24 * time.Hour
}

// Generate issues the tracking link a consumer shares for a campaign.
// Asking twice for the same campaign and user returns the same link.
func (s *DeeplinkService) Generate(ctx context.Context, campaignID int64, userID uuid.UUID, source string) (*model.Deeplink, error) {
	if userID == uuid.Nil {
		return nil, appErrors.NewValidation("user_id", "is required")
	}
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignActive {
		return nil, fmt.Errorf("%w: campaign %d is %s", appErrors.ErrCampaignNotActive, c.ID, c.Status)
	}

	code := NewTrackingCode()
	dest, err := BuildDestinationURL(c.DestinationURL, c.ID, code, source)
	if err != nil {
		return nil, err
	}

	return s.DeeplinkRepo.Upsert(ctx, &model.Deeplink{
		CampaignID:     c.ID,
		UserID:         userID,
		TrackingCode:   code,
		DestinationURL: dest,
		TrackingURL:    strings.TrimRight(s.PublicBaseURL, "/") + "/r/" + code,
	})
}

// RecordClick records one visit to a tracking link and returns where to redirect.
func (s *DeeplinkService) RecordClick(ctx context.Context, code string, meta ClickMeta) (*model.ClickOutcome, error) {
	link, err := s.DeeplinkRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fp := Fingerprint(meta.IP, meta.UserAgent)
	in := model.ClickInput{
		DeeplinkID:  link.ID,
		Fingerprint: fp,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Referrer:    meta.Referrer,
		WindowStart: now.Add(-s.window()),
		DayStart:    model.DayStart(now),
		Now:         now,
	}

	cacheKey := fmt.Sprintf("%d:%s", link.ID, fp)
	marked := false
	if s.Deduper != nil {
		first, err := s.Deduper.FirstSeen(ctx, cacheKey, s.window())
		if err != nil {
			// the database check still runs
			s.Log.Warn("click dedupe cache unavailable", zap.Error(err))
		} else {
			in.KnownDuplicate = !first
			marked = first
		}
	}

	out, err := s.DeeplinkRepo.RecordClick(ctx, in)
	if err != nil {
		if marked {
			// the key must only stand for a committed click
			if ferr := s.Deduper.Forget(context.WithoutCancel(ctx), cacheKey); ferr != nil {
				s.Log.Warn("failed to clear click dedupe key", zap.String("key", cacheKey), zap.Error(ferr))
			}
		}
		return nil, err
	}

	s.publishClick(out, now)
	return out, nil
}

func (s *DeeplinkService) publishClick(out *model.ClickOutcome, at time.Time) {
	ev := model.ClickEvent{
		ClickID:    out.ClickID,
		DeeplinkID: out.DeeplinkID,
		CampaignID: out.CampaignID,
		UserID:     out.UserID,
		Unique:     out.Unique,
		Charged:    out.Charged,
		Exhausted:  out.CampaignExhausted,
		At:         at,
	}
	if s.Queue != nil {
		if err := s.Queue.Publish(model.TopicClickRecorded, ev); err != nil {
			s.Log.Warn("failed to enqueue click event", zap.Int64("click_id", out.ClickID), zap.Error(err))
		}
	}
	if s.Feed != nil {
		msg := fmt.Sprintf("click on campaign %d", out.CampaignID)
		if out.Charged.IsPositive() {
			msg = fmt.Sprintf("billed click on campaign %d (%s)", out.CampaignID, out.Charged)
		}
		s.Feed.Publish(model.Event{
			Kind:       model.EventClick,
			CampaignID: out.CampaignID,
			Subject:    out.UserID.String(),
			Message:    msg,
			Data:       ev,
			At:         at,
		})
	}
}

func (s *DeeplinkService) Get(ctx context.Context, id int64) (*model.Deeplink, error) {
	return s.DeeplinkRepo.GetByID(ctx, id)
}

func (s *DeeplinkService) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Deeplink, error) {
	return s.DeeplinkRepo.ListByCampaign(ctx, campaignID)
}

func (s *DeeplinkService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Deeplink, error) {
	return s.DeeplinkRepo.ListByUser(ctx, userID)
}

// NewTrackingCode returns 10 lowercase hex characters taken from a random UUID.
func NewTrackingCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Fingerprint identifies a visitor for click dedupe.
func Fingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// BuildDestinationURL adds UTM and ref parameters to the advertiser URL, keeping its own query.
func BuildDestinationURL(raw string, campaignID int64, code, source string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse destination url: %w", err)
	}
	if source == "" {
		source = defaultUTMSource
	}
	qs := u.Query()
	qs.Set("utm_source", source)
	qs.Set("utm_medium", "cpc")
	qs.Set("utm_campaign", fmt.Sprintf("campaign_%d", campaignID))
	qs.Set("ref", code)
	u.RawQuery = qs.Encode()
	return u.String(), nil
}
