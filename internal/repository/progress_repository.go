package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/unclebandit/clickreward-backend/internal/db"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type ProgressRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error)
	// Mutate loads the row under lock, applies fn and persists the result if fn succeeds.
	Mutate(ctx context.Context, userID uuid.UUID, fn func(p *model.UserProgress) error) (*model.UserProgress, error)
}

type ProgressRepository struct {
	DB *sql.DB
}

const progressColumns = `user_id, xp, balance, streak, best_streak, last_attendance, last_bonus_at`

func scanProgress(row rowScanner) (*model.UserProgress, error) {
	var p model.UserProgress
	if err := row.Scan(&p.UserID, &p.XP, &p.Balance, &p.Streak, &p.BestStreak,
		&p.LastAttendance, &p.LastBonusAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const ensureProgress = `INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

// Get returns the user's progress, creating the default row on first access.
func (r *ProgressRepository) Get(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	if _, err := r.DB.ExecContext(ctx, ensureProgress, userID); err != nil {
		return nil, err
	}
	return scanProgress(r.DB.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id=$1`, userID))
}

func (r *ProgressRepository) Mutate(ctx context.Context, userID uuid.UUID, fn func(p *model.UserProgress) error) (*model.UserProgress, error) {
	var out *model.UserProgress
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ensureProgress, userID); err != nil {
			return err
		}
		p, err := scanProgress(tx.QueryRowContext(ctx,
			`SELECT `+progressColumns+` FROM user_progress WHERE user_id=$1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE user_progress
			SET xp=$1, balance=$2, streak=$3, best_streak=$4, last_attendance=$5, last_bonus_at=$6
			WHERE user_id=$7`,
			p.XP, p.Balance, p.Streak, p.BestStreak, p.LastAttendance, p.LastBonusAt, userID,
		); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

var _ ProgressRepositoryInterface = (*ProgressRepository)(nil)
