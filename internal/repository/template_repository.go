package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id int64) (*model.Template, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID) ([]*model.Template, error)
	Delete(ctx context.Context, id int64) error
}

type TemplateRepository struct {
	DB *sql.DB
}

const templateColumns = `id, advertiser_id, name, category, title, description, destination_url, default_cpc, created_at`

func scanTemplate(row rowScanner) (*model.Template, error) {
	var t model.Template
	if err := row.Scan(&t.ID, &t.AdvertiserID, &t.Name, &t.Category, &t.Title, &t.Description,
		&t.DestinationURL, &t.DefaultCPC, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	t.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO templates (advertiser_id, name, category, title, description, destination_url, default_cpc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		t.AdvertiserID, t.Name, t.Category, t.Title, t.Description, t.DestinationURL, t.DefaultCPC, t.CreatedAt,
	).Scan(&t.ID)
	return advertiserRef(err, t.AdvertiserID)
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*model.Template, error) {
	t, err := scanTemplate(r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("template", id)
	}
	return t, err
}

func (r *TemplateRepository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID) ([]*model.Template, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE advertiser_id=$1 ORDER BY name`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, appErrors.NewNotFound("template", id))
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
