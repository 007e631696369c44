package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// RenderTemplate replaces {key} tokens with data[key]. Keys present with an empty
// value render as <unknown>; tokens without a key are left untouched.
func RenderTemplate(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(tok string) string {
		v, ok := data[tok[1:len(tok)-1]]
		if !ok {
			return tok
		}
		if v == "" {
			return "<unknown>"
		}
		return v
	})
}

// Placeholders lists the distinct {keys} in template order.
func Placeholders(template string) []string {
	seen := map[string]bool{}
	keys := []string{}
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

type TemplateService struct {
	TemplateRepo repository.TemplateRepositoryInterface
	Log          *zap.Logger
}

type CreateTemplateInput struct {
	AdvertiserID   uuid.UUID
	Name           string
	Category       string
	Title          string
	Description    string
	DestinationURL string
	DefaultCPC     decimal.Decimal
}

func (s *TemplateService) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*model.Template, error) {
	v := &appErrors.ValidationError{}
	if in.AdvertiserID == uuid.Nil {
		v.Add("advertiser_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "is required")
	}
	if in.DestinationURL != "" {
		if err := checkURL(in.DestinationURL); err != nil {
			v.Add("destination_url", err.Error())
		}
	}
	if in.DefaultCPC.IsNegative() {
		v.Add("default_cpc", "must not be negative")
	}
	checkMoney(v, "default_cpc", in.DefaultCPC)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	t := &model.Template{
		AdvertiserID:   in.AdvertiserID,
		Name:           strings.TrimSpace(in.Name),
		Category:       in.Category,
		Title:          in.Title,
		Description:    in.Description,
		DestinationURL: in.DestinationURL,
		DefaultCPC:     in.DefaultCPC,
	}
	if err := s.TemplateRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id int64) (*model.Template, error) {
	return s.TemplateRepo.GetByID(ctx, id)
}

func (s *TemplateService) ListTemplates(ctx context.Context, advertiserID uuid.UUID) ([]*model.Template, error) {
	return s.TemplateRepo.ListByAdvertiser(ctx, advertiserID)
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id int64) error {
	return s.TemplateRepo.Delete(ctx, id)
}

// Preview renders a template's title and description with vars.
func (s *TemplateService) Preview(ctx context.Context, id int64, vars map[string]string) (title, description string, err error) {
	t, err := s.TemplateRepo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	title = RenderTemplate(t.Title, vars)
	if strings.TrimSpace(title) == "" {
		return "", "", appErrors.NewValidation("title", "renders empty")
	}
	return title, RenderTemplate(t.Description, vars), nil
}
