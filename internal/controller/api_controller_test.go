package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/controller"
	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/service"
)

var consumerID = uuid.MustParse("5d0c8a61-2f4e-4b7a-9c3d-8e1f6a2b4c07")

// --- Mock Repositories ---

type MockBillingRepo struct {
	advertisers map[uuid.UUID]*model.Advertiser
	txs         []*model.Transaction
}

func newBillingRepo(ids ...uuid.UUID) *MockBillingRepo {
	m := &MockBillingRepo{advertisers: map[uuid.UUID]*model.Advertiser{}}
	for _, id := range ids {
		m.advertisers[id] = &model.Advertiser{ID: id, Name: "Acme", Balance: decimal.Zero}
	}
	return m
}

func (m *MockBillingRepo) CreateAdvertiser(_ context.Context, a *model.Advertiser) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	cp := *a
	m.advertisers[a.ID] = &cp
	return nil
}

func (m *MockBillingRepo) GetAdvertiser(_ context.Context, id uuid.UUID) (*model.Advertiser, error) {
	a, ok := m.advertisers[id]
	if !ok {
		return nil, appErrors.NewNotFound("advertiser", id)
	}
	cp := *a
	return &cp, nil
}

func (m *MockBillingRepo) CreateTransaction(_ context.Context, t *model.Transaction) error {
	t.ID = int64(len(m.txs) + 1)
	cp := *t
	m.txs = append(m.txs, &cp)
	return nil
}

func (m *MockBillingRepo) find(id int64) (*model.Transaction, error) {
	for _, t := range m.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, appErrors.NewNotFound("transaction", id)
}

func (m *MockBillingRepo) CompleteDeposit(_ context.Context, txID int64, reference string) (*model.Transaction, error) {
	t, err := m.find(txID)
	if err != nil {
		return nil, err
	}
	t.Status = model.TxCompleted
	t.Reference = reference
	a := m.advertisers[t.AdvertiserID]
	a.Balance = a.Balance.Add(t.Amount)
	cp := *t
	return &cp, nil
}

func (m *MockBillingRepo) FailTransaction(_ context.Context, txID int64, reason string) error {
	t, err := m.find(txID)
	if err != nil {
		return err
	}
	t.Status = model.TxFailed
	t.Description = reason
	return nil
}

func (m *MockBillingRepo) ListTransactions(context.Context, model.TransactionFilter) ([]*model.Transaction, int, error) {
	return m.txs, len(m.txs), nil
}

func (m *MockBillingRepo) Summarize(context.Context, uuid.UUID, time.Time, time.Time) (*model.TransactionSummary, error) {
	return &model.TransactionSummary{}, nil
}

type MockRuleRepo struct {
	rules []*model.BudgetRule
}

func (m *MockRuleRepo) find(id int64) (*model.BudgetRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, appErrors.NewNotFound("budget rule", id)
}

func (m *MockRuleRepo) Create(_ context.Context, rule *model.BudgetRule) error {
	rule.ID = int64(len(m.rules) + 1)
	cp := *rule
	m.rules = append(m.rules, &cp)
	return nil
}

func (m *MockRuleRepo) GetByID(_ context.Context, id int64) (*model.BudgetRule, error) {
	return m.find(id)
}

func (m *MockRuleRepo) ListByCampaign(_ context.Context, campaignID int64) ([]*model.BudgetRule, error) {
	out := []*model.BudgetRule{}
	for _, r := range m.rules {
		if r.CampaignID == campaignID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRuleRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	r, err := m.find(id)
	if err != nil {
		return err
	}
	r.Enabled = enabled
	return nil
}

func (m *MockRuleRepo) MarkTriggered(_ context.Context, id int64, at time.Time) (bool, error) {
	r, err := m.find(id)
	if err != nil {
		return false, err
	}
	if r.TriggeredToday(at) {
		return false, nil
	}
	r.LastTriggeredAt = &at
	return true, nil
}

func (m *MockRuleRepo) Delete(_ context.Context, id int64) error {
	if _, err := m.find(id); err != nil {
		return err
	}
	kept := m.rules[:0]
	for _, r := range m.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.rules = kept
	return nil
}

func (m *MockRuleRepo) SpentSince(context.Context, int64, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type MockProgressRepo struct {
	rows map[uuid.UUID]*model.UserProgress
}

func (m *MockProgressRepo) row(id uuid.UUID) *model.UserProgress {
	if m.rows == nil {
		m.rows = map[uuid.UUID]*model.UserProgress{}
	}
	p, ok := m.rows[id]
	if !ok {
		p = &model.UserProgress{UserID: id, Balance: decimal.Zero}
		m.rows[id] = p
	}
	return p
}

func (m *MockProgressRepo) Get(_ context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	cp := *m.row(userID)
	return &cp, nil
}

func (m *MockProgressRepo) Mutate(_ context.Context, userID uuid.UUID, fn func(p *model.UserProgress) error) (*model.UserProgress, error) {
	cp := *m.row(userID)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	m.rows[userID] = &cp
	out := cp
	return &out, nil
}

type MockTemplateRepo struct {
	templates []*model.Template
}

func (m *MockTemplateRepo) Create(_ context.Context, t *model.Template) error {
	t.ID = int64(len(m.templates) + 1)
	cp := *t
	m.templates = append(m.templates, &cp)
	return nil
}

func (m *MockTemplateRepo) GetByID(_ context.Context, id int64) (*model.Template, error) {
	for _, t := range m.templates {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, appErrors.NewNotFound("template", id)
}

func (m *MockTemplateRepo) ListByAdvertiser(_ context.Context, advertiserID uuid.UUID) ([]*model.Template, error) {
	out := []*model.Template{}
	for _, t := range m.templates {
		if t.AdvertiserID == advertiserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTemplateRepo) Delete(context.Context, int64) error { return nil }

type MockDeeplinkRepo struct {
	links []*model.Deeplink
}

func (m *MockDeeplinkRepo) Upsert(_ context.Context, d *model.Deeplink) (*model.Deeplink, error) {
	for _, l := range m.links {
		if l.CampaignID == d.CampaignID && l.UserID == d.UserID {
			cp := *l
			return &cp, nil
		}
	}
	cp := *d
	cp.ID = int64(len(m.links) + 1)
	m.links = append(m.links, &cp)
	out := cp
	return &out, nil
}

func (m *MockDeeplinkRepo) GetByID(_ context.Context, id int64) (*model.Deeplink, error) {
	for _, l := range m.links {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, appErrors.NewNotFound("deeplink", id)
}

func (m *MockDeeplinkRepo) GetByCode(_ context.Context, code string) (*model.Deeplink, error) {
	return nil, appErrors.NewNotFound("deeplink", code)
}

func (m *MockDeeplinkRepo) ListByCampaign(_ context.Context, campaignID int64) ([]*model.Deeplink, error) {
	out := []*model.Deeplink{}
	for _, l := range m.links {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MockDeeplinkRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.Deeplink, error) {
	out := []*model.Deeplink{}
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MockDeeplinkRepo) RecordClick(context.Context, model.ClickInput) (*model.ClickOutcome, error) {
	return nil, errors.New("not used")
}

// --- Router ---

type repos struct {
	campaigns *MockCampaignRepo
	billing   *MockBillingRepo
	rules     *MockRuleRepo
	progress  *MockProgressRepo
	templates *MockTemplateRepo
	deeplinks *MockDeeplinkRepo
	// paymentSuccess is the mock processor's success rate
	paymentSuccess float64
}

// newAPIRouter mounts the full /api route table over in-memory repositories.
func newAPIRouter(rp *repos) http.Handler {
	if rp.campaigns == nil {
		rp.campaigns = &MockCampaignRepo{}
	}
	if rp.billing == nil {
		rp.billing = newBillingRepo()
	}
	if rp.rules == nil {
		rp.rules = &MockRuleRepo{}
	}
	if rp.progress == nil {
		rp.progress = &MockProgressRepo{}
	}
	if rp.templates == nil {
		rp.templates = &MockTemplateRepo{}
	}
	if rp.deeplinks == nil {
		rp.deeplinks = &MockDeeplinkRepo{}
	}
	log := zap.NewNop()

	api := &controller.API{
		Campaigns: &controller.CampaignController{
			CampaignService: &service.CampaignService{CampaignRepo: rp.campaigns, TemplateRepo: rp.templates, Log: log},
			Log:             log,
		},
		Templates: &controller.TemplateController{
			TemplateService: &service.TemplateService{TemplateRepo: rp.templates, Log: log},
			Log:             log,
		},
		Deeplinks: &controller.DeeplinkController{
			DeeplinkService: &service.DeeplinkService{
				DeeplinkRepo:  rp.deeplinks,
				CampaignRepo:  rp.campaigns,
				Log:           log,
				PublicBaseURL: "https://go.example.com/",
			},
			Log: log,
		},
		Billing: &controller.BillingController{
			BillingService: &service.BillingService{
				BillingRepo: rp.billing,
				Processor:   service.NewMockProcessor(rp.paymentSuccess, 0),
				Log:         log,
				MinTopUp:    decimal.NewFromInt(10),
				MaxTopUp:    decimal.NewFromInt(10000),
			},
			Log: log,
		},
		Budget: &controller.BudgetController{
			BudgetService: &service.BudgetService{
				RuleRepo:     rp.rules,
				CampaignRepo: rp.campaigns,
				BillingRepo:  rp.billing,
				Log:          log,
			},
			Log: log,
		},
		Analytics: &controller.AnalyticsController{AnalyticsService: &service.AnalyticsService{}, Log: log},
		Rewards: &controller.RewardController{
			RewardService: &service.RewardService{ProgressRepo: rp.progress, Log: log},
			Log:           log,
		},
	}
	r := chi.NewRouter()
	r.Route("/api", api.Routes)
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func cardTopUp(amount string) map[string]any {
	return map[string]any{
		"amount": amount,
		"method": "card",
		"card": map[string]string{
			"number": "4242 4242 4242 4242",
			"expiry": "12/99",
			"cvc":    "123",
			"holder": "A Person",
		},
	}
}

// --- Billing ---

func TestTopUpDeclinedReturnsFailedTransaction(t *testing.T) {
	billing := newBillingRepo(advertiserID)
	h := newAPIRouter(&repos{billing: billing, paymentSuccess: 0})

	w := do(t, h, http.MethodPost, "/api/advertisers/"+advertiserID.String()+"/topups", cardTopUp("500"))
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())

	var res struct {
		Error       string            `json:"error"`
		Transaction model.Transaction `json:"transaction"`
	}
	decodeBody(t, w, &res)
	assert.Contains(t, res.Error, "declined")
	assert.Equal(t, int64(1), res.Transaction.ID)
	assert.Equal(t, model.TxFailed, res.Transaction.Status)
	assert.Equal(t, model.TxDeposit, res.Transaction.Type)
	assert.Equal(t, advertiserID, res.Transaction.AdvertiserID)
	assert.True(t, res.Transaction.Amount.Equal(decimal.NewFromInt(500)))

	require.Len(t, billing.txs, 1)
	assert.Equal(t, model.TxFailed, billing.txs[0].Status)
	assert.True(t, billing.advertisers[advertiserID].Balance.IsZero())
}

func TestTopUpCreditsBalance(t *testing.T) {
	billing := newBillingRepo(advertiserID)
	h := newAPIRouter(&repos{billing: billing, paymentSuccess: 1})

	w := do(t, h, http.MethodPost, "/api/advertisers/"+advertiserID.String()+"/topups", cardTopUp("250.50"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.TopUpResult
	decodeBody(t, w, &res)
	assert.True(t, res.Balance.Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, model.TxCompleted, res.Transaction.Status)
	assert.True(t, strings.HasPrefix(res.Transaction.Reference, "PAY-"))
	assert.Equal(t, "card top-up ****4242", res.Transaction.Description)

	w = do(t, h, http.MethodGet, "/api/advertisers/"+advertiserID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var a model.Advertiser
	decodeBody(t, w, &a)
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("250.5")))
}

func TestTopUpRejectedBeforeCharging(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		body   map[string]any
		status int
		field  string
	}{
		{"bank transfer without bank", advertiserID.String(), map[string]any{"amount": "50", "method": "bank_transfer"}, http.StatusBadRequest, "bank"},
		{"unknown method", advertiserID.String(), map[string]any{"amount": "50", "method": "cash"}, http.StatusBadRequest, "method"},
		{"fractional cent", advertiserID.String(), cardTopUp("100.005"), http.StatusBadRequest, "amount"},
		{"below minimum", advertiserID.String(), cardTopUp("5"), http.StatusBadRequest, "amount"},
		{"bad advertiser id", "acme", cardTopUp("50"), http.StatusBadRequest, "advertiserID"},
		{"unknown advertiser", uuid.NewString(), cardTopUp("50"), http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := newBillingRepo(advertiserID)
			w := do(t, newAPIRouter(&repos{billing: billing, paymentSuccess: 1}), http.MethodPost, "/api/advertisers/"+tt.id+"/topups", tt.body)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				var res errorBody
				decodeBody(t, w, &res)
				assert.Contains(t, res.Fields, tt.field)
			}
			assert.Empty(t, billing.txs)
		})
	}
}

func TestCreateAdvertiserHandler(t *testing.T) {
	billing := newBillingRepo()
	h := newAPIRouter(&repos{billing: billing})

	w := do(t, h, http.MethodPost, "/api/advertisers", map[string]string{"name": "Acme Outdoor"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a model.Advertiser
	decodeBody(t, w, &a)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.True(t, a.Balance.IsZero())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/advertisers", map[string]string{"name": ""}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/advertisers/"+uuid.NewString()+"/balance", nil).Code)
}

// --- Budget rules ---

func TestCreateRuleHandler(t *testing.T) {
	campaigns := &MockCampaignRepo{campaigns: []*model.Campaign{{ID: 1, AdvertiserID: advertiserID, Status: model.CampaignActive}}}
	rules := &MockRuleRepo{}
	h := newAPIRouter(&repos{campaigns: campaigns, rules: rules})

	w := do(t, h, http.MethodPost, "/api/campaigns/1/rules", map[string]string{
		"rule_type": "spend_percent",
		"threshold": "80",
		"action":    "pause",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rule model.BudgetRule
	decodeBody(t, w, &rule)
	assert.Equal(t, int64(1), rule.CampaignID)
	assert.True(t, rule.Enabled)
	assert.True(t, rule.Threshold.Equal(decimal.NewFromInt(80)))

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
		field  string
	}{
		{"unknown rule type", "/api/campaigns/1/rules", map[string]string{"rule_type": "weekly", "threshold": "10", "action": "pause"}, http.StatusBadRequest, "rule_type"},
		{"percent over 100", "/api/campaigns/1/rules", map[string]string{"rule_type": "spend_percent", "threshold": "150", "action": "alert"}, http.StatusBadRequest, "threshold"},
		{"sub-cent cap", "/api/campaigns/1/rules", map[string]string{"rule_type": "daily_cap", "threshold": "0.001", "action": "alert"}, http.StatusBadRequest, "threshold"},
		{"missing campaign", "/api/campaigns/9/rules", map[string]string{"rule_type": "daily_cap", "threshold": "20", "action": "alert"}, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				var res errorBody
				decodeBody(t, w, &res)
				assert.Contains(t, res.Fields, tt.field)
			}
		})
	}
	assert.Len(t, rules.rules, 1)
}

func TestEvaluateRulesPausesCampaign(t *testing.T) {
	campaigns := &MockCampaignRepo{campaigns: []*model.Campaign{{
		ID:           1,
		AdvertiserID: advertiserID,
		Title:        "Spring Sale",
		Status:       model.CampaignActive,
		TotalBudget:  decimal.NewFromInt(10),
		SpentAmount:  decimal.NewFromInt(6),
	}}}
	rules := &MockRuleRepo{rules: []*model.BudgetRule{{
		ID: 1, CampaignID: 1, RuleType: model.RuleSpendPercent, Threshold: decimal.NewFromInt(50), Action: model.ActionPause, Enabled: true,
	}}}
	h := newAPIRouter(&repos{campaigns: campaigns, rules: rules})

	w := do(t, h, http.MethodPost, "/api/campaigns/1/rules/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Triggered []model.RuleTrigger `json:"triggered"`
	}
	decodeBody(t, w, &res)
	require.Len(t, res.Triggered, 1)
	assert.True(t, res.Triggered[0].Observed.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, model.CampaignPaused, campaigns.campaigns[0].Status)

	w = do(t, h, http.MethodPost, "/api/campaigns/1/rules/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &res)
	assert.Empty(t, res.Triggered, "a rule fires once per day")
}

func TestSetRuleEnabledHandler(t *testing.T) {
	rules := &MockRuleRepo{rules: []*model.BudgetRule{{ID: 1, CampaignID: 1, Enabled: true}}}
	h := newAPIRouter(&repos{rules: rules})

	w := do(t, h, http.MethodPatch, "/api/rules/1", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var res errorBody
	decodeBody(t, w, &res)
	assert.Contains(t, res.Fields, "enabled")

	w = do(t, h, http.MethodPatch, "/api/rules/1", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, rules.rules[0].Enabled)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/api/rules/5", map[string]any{"enabled": true}).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/rules/1", nil).Code)
	assert.Empty(t, rules.rules)
}

// --- Rewards ---

func TestRewardHandlers(t *testing.T) {
	progress := &MockProgressRepo{}
	h := newAPIRouter(&repos{progress: progress})
	base := "/api/users/" + consumerID.String()

	w := do(t, h, http.MethodPost, base+"/check-in", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkIn model.CheckInResult
	decodeBody(t, w, &checkIn)
	assert.Equal(t, 1, checkIn.Streak)
	assert.Equal(t, 10, checkIn.XPGained)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/check-in", nil).Code)

	w = do(t, h, http.MethodPost, base+"/bonus", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bonus model.BonusResult
	decodeBody(t, w, &bonus)
	assert.True(t, bonus.Amount.Equal(decimal.RequireFromString("11.43")))
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/bonus", nil).Code)

	w = do(t, h, http.MethodPost, base+"/xp", map[string]any{"amount": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, base+"/xp", map[string]any{"amount": 100, "reason": "survey"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var xp model.XPResult
	decodeBody(t, w, &xp)
	assert.True(t, xp.LeveledUp)
	assert.Equal(t, 110, xp.Progress.XP)
	assert.Equal(t, 2, xp.Progress.Level)

	w = do(t, h, http.MethodGet, base+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view model.ProgressView
	decodeBody(t, w, &view)
	assert.Equal(t, 110, view.XP)
	assert.True(t, view.Balance.Equal(decimal.RequireFromString("11.43")))
	assert.True(t, view.BonusClaimToday)
}

func TestRewardHandlersRejectNilUser(t *testing.T) {
	progress := &MockProgressRepo{}
	h := newAPIRouter(&repos{progress: progress})
	base := "/api/users/" + uuid.Nil.String()

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, base + "/progress", nil},
		{http.MethodPost, base + "/check-in", nil},
		{http.MethodPost, base + "/bonus", nil},
		{http.MethodPost, base + "/xp", map[string]any{"amount": 10}},
	} {
		w := do(t, h, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		var res errorBody
		decodeBody(t, w, &res)
		assert.Contains(t, res.Fields, "user_id", tc.path)
	}
	assert.Empty(t, progress.rows)
}

// --- Templates ---

func TestTemplateCreateAndPreview(t *testing.T) {
	templates := &MockTemplateRepo{}
	h := newAPIRouter(&repos{templates: templates})

	w := do(t, h, http.MethodPost, "/api/templates", map[string]any{
		"advertiser_id":   advertiserID.String(),
		"name":            "Seasonal",
		"title":           "Hello {name}",
		"description":     "Deals in {city} for {name}",
		"destination_url": "https://shop.example.com",
		"default_cpc":     "0.25",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/templates/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Template     model.Template `json:"template"`
		Placeholders []string       `json:"placeholders"`
	}
	decodeBody(t, w, &got)
	assert.Equal(t, []string{"name", "city"}, got.Placeholders)

	w = do(t, h, http.MethodPost, "/api/templates/1/preview", map[string]any{
		"variables": map[string]string{"name": "Ann", "city": ""},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var preview map[string]string
	decodeBody(t, w, &preview)
	assert.Equal(t, "Hello Ann", preview["title"])
	assert.Equal(t, "Deals in <unknown> for Ann", preview["description"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/templates/7/preview", map[string]any{"variables": map[string]string{}}).Code)

	w = do(t, h, http.MethodGet, "/api/advertisers/"+advertiserID.String()+"/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []model.Template `json:"data"`
	}
	decodeBody(t, w, &list)
	assert.Len(t, list.Data, 1)
}

func TestCreateTemplateRejectsSubCentCPC(t *testing.T) {
	templates := &MockTemplateRepo{}
	w := do(t, newAPIRouter(&repos{templates: templates}), http.MethodPost, "/api/templates", map[string]any{
		"advertiser_id": advertiserID.String(),
		"name":          "Seasonal",
		"title":         "Hello",
		"default_cpc":   "0.125",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var res errorBody
	decodeBody(t, w, &res)
	assert.Contains(t, res.Fields, "default_cpc")
	assert.Empty(t, templates.templates)
}

// --- Deeplinks ---

func TestGenerateDeeplinkHandler(t *testing.T) {
	campaigns := &MockCampaignRepo{campaigns: []*model.Campaign{
		{ID: 1, Status: model.CampaignActive, DestinationURL: "https://shop.example.com/p?id=4"},
		{ID: 2, Status: model.CampaignPaused, DestinationURL: "https://shop.example.com"},
	}}
	deeplinks := &MockDeeplinkRepo{}
	h := newAPIRouter(&repos{campaigns: campaigns, deeplinks: deeplinks})

	body := map[string]any{"campaign_id": 1, "user_id": consumerID.String(), "source": "newsletter"}
	w := do(t, h, http.MethodPost, "/api/deeplinks", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var link model.Deeplink
	decodeBody(t, w, &link)
	assert.Equal(t, "https://go.example.com/r/"+link.TrackingCode, link.TrackingURL)
	assert.Contains(t, link.DestinationURL, "utm_source=newsletter")
	assert.Contains(t, link.DestinationURL, "utm_campaign=campaign_1")
	assert.Contains(t, link.DestinationURL, "id=4")

	w = do(t, h, http.MethodPost, "/api/deeplinks", body)
	require.Equal(t, http.StatusOK, w.Code)
	var again model.Deeplink
	decodeBody(t, w, &again)
	assert.Equal(t, link.ID, again.ID, "one link per campaign and user")
	assert.Len(t, deeplinks.links, 1)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/deeplinks", map[string]any{"campaign_id": 2, "user_id": consumerID.String()}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/deeplinks", map[string]any{"campaign_id": 3, "user_id": consumerID.String()}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/deeplinks", map[string]any{"campaign_id": 1, "user_id": "someone"}).Code)

	w = do(t, h, http.MethodGet, "/api/users/"+consumerID.String()+"/deeplinks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []model.Deeplink `json:"data"`
	}
	decodeBody(t, w, &list)
	assert.Len(t, list.Data, 1)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/deeplinks/42", nil).Code)
}
