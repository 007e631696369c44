package service

import (
	"context"
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

const (
	checkInXP        = 10
	streakBonusXP    = 50
	streakBonusEvery = 7
	bonusBase        = 10
	bonusStreakCap   = 7
)

type RewardService struct {
	ProgressRepo repository.ProgressRepositoryInterface
	Feed         feed.Publisher
	Log          *zap.Logger
	Now          func() time.Time
}

func (s *RewardService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RewardService) GetProgress(ctx context.Context, userID uuid.UUID) (*model.ProgressView, error) {
	if userID == uuid.Nil {
		return nil, appErrors.NewValidation("user_id", "is required")
	}
	p, err := s.ProgressRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := p.View(s.now())
	return &v, nil
}

// CheckIn records today's attendance. The streak grows on consecutive UTC days and
// resets to one after a gap.
func (s *RewardService) CheckIn(ctx context.Context, userID uuid.UUID) (*model.CheckInResult, error) {
	if userID == uuid.Nil {
		return nil, appErrors.NewValidation("user_id", "is required")
	}
	now := s.now()
	today := model.DayStart(now)
	res := &model.CheckInResult{}

	p, err := s.ProgressRepo.Mutate(ctx, userID, func(p *model.UserProgress) error {
		if p.LastAttendance != nil {
			last := model.DayStart(*p.LastAttendance)
			switch {
			case last.Equal(today):
				return appErrors.ErrAlreadyCheckedIn
			case last.AddDate(0, 0, 1).Equal(today):
				p.Streak++
			default:
				p.Streak = 1
			}
		} else {
			p.Streak = 1
		}
		if p.Streak > p.BestStreak {
			p.BestStreak = p.Streak
		}
		p.LastAttendance = &now

		gained := checkInXP
		if p.Streak%streakBonusEvery == 0 {
			gained += streakBonusXP
			res.StreakBonus = true
		}
		before := model.LevelForXP(p.XP)
		p.XP += gained
		res.XPGained = gained
		res.LeveledUp = model.LevelForXP(p.XP) > before
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Streak = p.Streak
	res.Progress = p.View(now)
	if res.LeveledUp {
		s.levelUp(res.Progress)
	}
	return res, nil
}

// DailyBonusAmount is 10 scaled up to 2x as the streak approaches a week.
func DailyBonusAmount(streak int) decimal.Decimal {
	if streak > bonusStreakCap {
		streak = bonusStreakCap
	}
	if streak < 0 {
		streak = 0
	}
	factor := decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(streak)).Div(decimal.NewFromInt(bonusStreakCap)))
	return decimal.NewFromInt(bonusBase).Mul(factor).Round(2)
}

func (s *RewardService) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (*model.BonusResult, error) {
	if userID == uuid.Nil {
		return nil, appErrors.NewValidation("user_id", "is required")
	}
	now := s.now()
	var amount decimal.Decimal

	p, err := s.ProgressRepo.Mutate(ctx, userID, func(p *model.UserProgress) error {
		if p.LastBonusAt != nil && model.DayStart(*p.LastBonusAt).Equal(model.DayStart(now)) {
			return appErrors.ErrBonusAlreadyClaimed
		}
		amount = DailyBonusAmount(p.Streak)
		p.Balance = p.Balance.Add(amount)
		p.LastBonusAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.BonusResult{Amount: amount, Progress: p.View(now)}, nil
}

// AddXP credits XP for a completed mission.
func (s *RewardService) AddXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*model.XPResult, error) {
	v := &appErrors.ValidationError{}
	if userID == uuid.Nil {
		v.Add("user_id", "is required")
	}
	if amount <= 0 {
		v.Add("amount", "must be positive")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	res := &model.XPResult{XPGained: amount}

	p, err := s.ProgressRepo.Mutate(ctx, userID, func(p *model.UserProgress) error {
		before := model.LevelForXP(p.XP)
		p.XP += amount
		res.LeveledUp = model.LevelForXP(p.XP) > before
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Progress = p.View(s.now())
	s.Log.Debug("xp awarded", zap.String("user_id", userID.String()), zap.Int("xp", amount), zap.String("reason", reason))
	if res.LeveledUp {
		s.levelUp(res.Progress)
	}
	return res, nil
}

func (s *RewardService) levelUp(v model.ProgressView) {
	if s.Feed == nil {
		return
	}
	s.Feed.Publish(model.Event{
		Kind:    model.EventLevelUp,
		Subject: v.UserID.String(),
		Message: fmt.Sprintf("reached level %d (%s)", v.Level, v.Grade),
		Data:    map[string]any{"level": v.Level, "grade": v.Grade},
	})
}
