package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	GradeBronze   = "bronze"
	GradeSilver   = "silver"
	GradeGold     = "gold"
	GradePlatinum = "platinum"
	GradeDiamond  = "diamond"
)

// UserProgress is a consumer's gamification state. Level and grade derive from XP.
type UserProgress struct {
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	XP             int             `db:"xp" json:"xp"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Streak         int             `db:"streak" json:"streak"`
	BestStreak     int             `db:"best_streak" json:"best_streak"`
	LastAttendance *time.Time      `db:"last_attendance" json:"last_attendance,omitempty"`
	LastBonusAt    *time.Time      `db:"last_bonus_at" json:"last_bonus_at,omitempty"`
}

// XPForLevel is the cumulative XP needed to reach level; moving from L to L+1 costs L*100.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 50 * level * (level - 1)
}

func LevelForXP(xp int) int {
	level := 1
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

func GradeForLevel(level int) string {
	switch {
	case level >= 30:
		return GradeDiamond
	case level >= 20:
		return GradePlatinum
	case level >= 10:
		return GradeGold
	case level >= 5:
		return GradeSilver
	default:
		return GradeBronze
	}
}

var gradeShare = map[string]decimal.Decimal{
	GradeBronze:   decimal.RequireFromString("0.50"),
	GradeSilver:   decimal.RequireFromString("0.55"),
	GradeGold:     decimal.RequireFromString("0.60"),
	GradePlatinum: decimal.RequireFromString("0.65"),
	GradeDiamond:  decimal.RequireFromString("0.70"),
}

// RewardShare is the fraction of CPC paid out to a consumer of the given grade.
func RewardShare(grade string) decimal.Decimal {
	if s, ok := gradeShare[grade]; ok {
		return s
	}
	return gradeShare[GradeBronze]
}

// ClickReward is what a consumer with xp earns from one billable click at cpc.
func ClickReward(cpc decimal.Decimal, xp int) decimal.Decimal {
	return cpc.Mul(RewardShare(GradeForLevel(LevelForXP(xp)))).Round(2)
}

type ProgressView struct {
	UserID          uuid.UUID       `json:"user_id"`
	XP              int             `json:"xp"`
	Level           int             `json:"level"`
	Grade           string          `json:"grade"`
	RewardShare     decimal.Decimal `json:"reward_share"`
	XPToNextLevel   int             `json:"xp_to_next_level"`
	LevelProgress   decimal.Decimal `json:"level_progress_percent"`
	Streak          int             `json:"streak"`
	BestStreak      int             `json:"best_streak"`
	Balance         decimal.Decimal `json:"balance"`
	LastAttendance  *time.Time      `json:"last_attendance,omitempty"`
	BonusClaimToday bool            `json:"bonus_claimed_today"`
}

// View derives the display state at now.
func (p *UserProgress) View(now time.Time) ProgressView {
	level := LevelForXP(p.XP)
	grade := GradeForLevel(level)
	floor, ceil := XPForLevel(level), XPForLevel(level+1)

	return ProgressView{
		UserID:          p.UserID,
		XP:              p.XP,
		Level:           level,
		Grade:           grade,
		RewardShare:     RewardShare(grade),
		XPToNextLevel:   ceil - p.XP,
		LevelProgress:   Percent(decimal.NewFromInt(int64(p.XP-floor)), decimal.NewFromInt(int64(ceil-floor))),
		Streak:          p.Streak,
		BestStreak:      p.BestStreak,
		Balance:         p.Balance,
		LastAttendance:  p.LastAttendance,
		BonusClaimToday: p.LastBonusAt != nil && DayStart(*p.LastBonusAt).Equal(DayStart(now)),
	}
}

type CheckInResult struct {
	Streak      int          `json:"streak"`
	XPGained    int          `json:"xp_gained"`
	StreakBonus bool         `json:"streak_bonus"`
	LeveledUp   bool         `json:"leveled_up"`
	Progress    ProgressView `json:"progress"`
}

type BonusResult struct {
	Amount   decimal.Decimal `json:"amount"`
	Progress ProgressView    `json:"progress"`
}

type XPResult struct {
	XPGained  int          `json:"xp_gained"`
	LeveledUp bool         `json:"leveled_up"`
	Progress  ProgressView `json:"progress"`
}
