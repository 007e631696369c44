package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/repository"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ✅ Mock Campaign Repository
type mockCampaignRepo struct {
	campaigns map[int64]*model.Campaign
	nextID    int64

	createCalls  int
	statusCalls  [][2]string
	closedWith   string
	refund       decimal.Decimal
	activateErr  error
	updateStatus error
	stats        model.CampaignStats
}

func newMockCampaignRepo(cs ...*model.Campaign) *mockCampaignRepo {
	m := &mockCampaignRepo{campaigns: map[int64]*model.Campaign{}, nextID: 100}
	for _, c := range cs {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *mockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.createCalls++
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = fixedNow
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) List(_ context.Context, f model.CampaignFilter) ([]*model.Campaign, int, error) {
	all := []*model.Campaign{}
	for _, c := range m.campaigns {
		if f.AdvertiserID != nil && c.AdvertiserID != *f.AdvertiserID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start, end := f.Offset, f.Offset+f.Limit
	if start >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *mockCampaignRepo) ListByAdvertiser(_ context.Context, advertiserID uuid.UUID) ([]*model.Campaign, error) {
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.AdvertiserID == advertiserID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *mockCampaignRepo) Delete(_ context.Context, id int64) error {
	delete(m.campaigns, id)
	return nil
}

func (m *mockCampaignRepo) Stats(_ context.Context, id int64) (*model.CampaignStats, error) {
	s := m.stats
	return &s, nil
}

func (m *mockCampaignRepo) UpdateStatus(_ context.Context, id int64, from, to string) error {
	m.statusCalls = append(m.statusCalls, [2]string{from, to})
	if m.updateStatus != nil {
		return m.updateStatus
	}
	if c, ok := m.campaigns[id]; ok {
		c.Status = to
	}
	return nil
}

func (m *mockCampaignRepo) Activate(_ context.Context, id int64) (*model.Campaign, error) {
	if m.activateErr != nil {
		return nil, m.activateErr
	}
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	c.Status = model.CampaignActive
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) IncreaseBudget(_ context.Context, id int64, delta decimal.Decimal) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	c.TotalBudget = c.TotalBudget.Add(delta)
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) Close(_ context.Context, id int64, final string) (*model.Campaign, decimal.Decimal, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, decimal.Zero, appErrors.NewCampaignNotFound(id)
	}
	m.closedWith = final
	c.Status = final
	cp := *c
	return &cp, m.refund, nil
}

// ✅ Mock Template Repository
type mockTemplateRepo struct {
	templates map[int64]*model.Template
	created   []*model.Template
}

func (m *mockTemplateRepo) Create(_ context.Context, t *model.Template) error {
	t.ID = int64(len(m.created) + 1)
	m.created = append(m.created, t)
	return nil
}

func (m *mockTemplateRepo) GetByID(_ context.Context, id int64) (*model.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, appErrors.NewNotFound("template", id)
	}
	return t, nil
}

func (m *mockTemplateRepo) ListByAdvertiser(_ context.Context, _ uuid.UUID) ([]*model.Template, error) {
	return m.created, nil
}

func (m *mockTemplateRepo) Delete(_ context.Context, _ int64) error { return nil }

// ✅ Mock Deeplink Repository
type mockDeeplinkRepo struct {
	links     map[string]*model.Deeplink
	upserted  *model.Deeplink
	lastClick model.ClickInput
	outcome   *model.ClickOutcome
	clickErr  error
}

func (m *mockDeeplinkRepo) Upsert(_ context.Context, d *model.Deeplink) (*model.Deeplink, error) {
	if m.upserted != nil && m.upserted.CampaignID == d.CampaignID && m.upserted.UserID == d.UserID {
		return m.upserted, nil
	}
	d.ID = 1
	m.upserted = d
	return d, nil
}

func (m *mockDeeplinkRepo) GetByID(_ context.Context, id int64) (*model.Deeplink, error) {
	for _, d := range m.links {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, appErrors.NewNotFound("deeplink", id)
}

func (m *mockDeeplinkRepo) GetByCode(_ context.Context, code string) (*model.Deeplink, error) {
	d, ok := m.links[code]
	if !ok {
		return nil, appErrors.NewNotFound("deeplink", code)
	}
	return d, nil
}

func (m *mockDeeplinkRepo) ListByCampaign(_ context.Context, _ int64) ([]*model.Deeplink, error) {
	return nil, nil
}

func (m *mockDeeplinkRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]*model.Deeplink, error) {
	return nil, nil
}

func (m *mockDeeplinkRepo) RecordClick(_ context.Context, in model.ClickInput) (*model.ClickOutcome, error) {
	m.lastClick = in
	if m.clickErr != nil {
		return nil, m.clickErr
	}
	return m.outcome, nil
}

// ✅ Mock Billing Repository
type mockBillingRepo struct {
	advertisers map[uuid.UUID]*model.Advertiser
	txs         []*model.Transaction
	failed      map[int64]string
	lastFilter  model.TransactionFilter
}

func newMockBillingRepo(advs ...*model.Advertiser) *mockBillingRepo {
	m := &mockBillingRepo{advertisers: map[uuid.UUID]*model.Advertiser{}, failed: map[int64]string{}}
	for _, a := range advs {
		m.advertisers[a.ID] = a
	}
	return m
}

func (m *mockBillingRepo) CreateAdvertiser(_ context.Context, a *model.Advertiser) error {
	a.ID = uuid.New()
	m.advertisers[a.ID] = a
	return nil
}

func (m *mockBillingRepo) GetAdvertiser(ctx context.Context, id uuid.UUID) (*model.Advertiser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, ok := m.advertisers[id]
	if !ok {
		return nil, appErrors.NewNotFound("advertiser", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockBillingRepo) CreateTransaction(_ context.Context, t *model.Transaction) error {
	t.ID = int64(len(m.txs) + 1)
	m.txs = append(m.txs, t)
	return nil
}

func (m *mockBillingRepo) CompleteDeposit(ctx context.Context, txID int64, reference string) (*model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.txs[txID-1]
	t.Status = model.TxCompleted
	t.Reference = reference
	a := m.advertisers[t.AdvertiserID]
	a.Balance = a.Balance.Add(t.Amount)
	return t, nil
}

func (m *mockBillingRepo) FailTransaction(_ context.Context, txID int64, reason string) error {
	m.failed[txID] = reason
	m.txs[txID-1].Status = model.TxFailed
	return nil
}

func (m *mockBillingRepo) ListTransactions(_ context.Context, f model.TransactionFilter) ([]*model.Transaction, int, error) {
	m.lastFilter = f
	return m.txs, len(m.txs), nil
}

func (m *mockBillingRepo) Summarize(_ context.Context, advertiserID uuid.UUID, _, _ time.Time) (*model.TransactionSummary, error) {
	return &model.TransactionSummary{}, nil
}

// ✅ Mock Budget Rule Repository
type mockRuleRepo struct {
	rules     []*model.BudgetRule
	spent     decimal.Decimal
	triggered map[int64]time.Time
}

func (m *mockRuleRepo) Create(_ context.Context, r *model.BudgetRule) error {
	r.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, r)
	return nil
}

func (m *mockRuleRepo) GetByID(_ context.Context, id int64) (*model.BudgetRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, appErrors.NewNotFound("budget rule", id)
}

func (m *mockRuleRepo) ListByCampaign(_ context.Context, campaignID int64) ([]*model.BudgetRule, error) {
	out := []*model.BudgetRule{}
	for _, r := range m.rules {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	r, err := m.GetByID(context.Background(), id)
	if err != nil {
		return err
	}
	r.Enabled = enabled
	return nil
}

// MarkTriggered claims against m.triggered, not the listed rows, so a stale
// rule snapshot behaves like a concurrent evaluation.
func (m *mockRuleRepo) MarkTriggered(_ context.Context, id int64, at time.Time) (bool, error) {
	if m.triggered == nil {
		m.triggered = map[int64]time.Time{}
	}
	if prev, ok := m.triggered[id]; ok && !prev.Before(model.DayStart(at)) {
		return false, nil
	}
	m.triggered[id] = at
	for _, r := range m.rules {
		if r.ID == id {
			t := at
			r.LastTriggeredAt = &t
		}
	}
	return true, nil
}

func (m *mockRuleRepo) Delete(_ context.Context, _ int64) error { return nil }

func (m *mockRuleRepo) SpentSince(_ context.Context, _ int64, _ time.Time) (decimal.Decimal, error) {
	return m.spent, nil
}

// ✅ Mock Progress Repository
type mockProgressRepo struct {
	rows map[uuid.UUID]*model.UserProgress
}

func (m *mockProgressRepo) row(id uuid.UUID) *model.UserProgress {
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

func (m *mockProgressRepo) Get(_ context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	cp := *m.row(userID)
	return &cp, nil
}

func (m *mockProgressRepo) Mutate(_ context.Context, userID uuid.UUID, fn func(p *model.UserProgress) error) (*model.UserProgress, error) {
	cp := *m.row(userID)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	m.rows[userID] = &cp
	out := cp
	return &out, nil
}

// ✅ Mock Analytics Repository
type mockAnalyticsRepo struct {
	daily  []model.DailyStat
	billed int
	totals []model.CampaignTotals
}

func (m *mockAnalyticsRepo) DailyClicks(_ context.Context, _ int64, _, _ time.Time) ([]model.DailyStat, int, error) {
	return m.daily, m.billed, nil
}

func (m *mockAnalyticsRepo) CampaignTotals(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]model.CampaignTotals, error) {
	return m.totals, nil
}

type recordingFeed struct {
	mu     sync.Mutex
	events []model.Event
}

func (f *recordingFeed) Publish(ev model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *recordingFeed) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Kind
	}
	return out
}

type recordingQueue struct {
	published []any
	err       error
}

func (q *recordingQueue) Publish(_ string, payload any) error {
	q.published = append(q.published, payload)
	return q.err
}

func (q *recordingQueue) Subscribe(string, func(any) error) error { return nil }

var (
	_ repository.CampaignRepositoryInterface   = (*mockCampaignRepo)(nil)
	_ repository.TemplateRepositoryInterface   = (*mockTemplateRepo)(nil)
	_ repository.DeeplinkRepositoryInterface   = (*mockDeeplinkRepo)(nil)
	_ repository.BillingRepositoryInterface    = (*mockBillingRepo)(nil)
	_ repository.BudgetRuleRepositoryInterface = (*mockRuleRepo)(nil)
	_ repository.ProgressRepositoryInterface   = (*mockProgressRepo)(nil)
	_ repository.AnalyticsRepositoryInterface  = (*mockAnalyticsRepo)(nil)
)
