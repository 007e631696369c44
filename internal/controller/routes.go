package controller

import "github.com/go-chi/chi/v5"

// API groups the JSON controllers mounted under /api.
type API struct {
	Campaigns *CampaignController
	Templates *TemplateController
	Deeplinks *DeeplinkController
	Billing   *BillingController
	Budget    *BudgetController
	Analytics *AnalyticsController
	Rewards   *RewardController
}

func (a *API) Routes(r chi.Router) {
	// Advertisers
	r.Post("/advertisers", a.Billing.CreateAdvertiser)
	r.Route("/advertisers/{advertiserID}", func(r chi.Router) {
		r.Get("/balance", a.Billing.GetBalance)
		r.Post("/topups", a.Billing.TopUp)
		r.Get("/transactions", a.Billing.ListTransactions)
		r.Get("/transactions/summary", a.Billing.Summary)
		r.Get("/budget", a.Budget.Overview)
		r.Get("/analytics", a.Analytics.AdvertiserOverview)
		r.Get("/templates", a.Templates.ListTemplates)
	})

	// Campaigns
	r.Post("/campaigns", a.Campaigns.CreateCampaign)
	r.Post("/campaigns/from-template", a.Campaigns.CreateFromTemplate)
	r.Get("/campaigns", a.Campaigns.ListCampaigns)
	r.Route("/campaigns/{id}", func(r chi.Router) {
		r.Get("/", a.Campaigns.GetCampaignDetails)
		r.Patch("/", a.Campaigns.UpdateCampaign)
		r.Delete("/", a.Campaigns.DeleteCampaign)
		r.Post("/status", a.Campaigns.ChangeStatus)
		r.Post("/budget", a.Campaigns.IncreaseBudget)
		r.Get("/deeplinks", a.Deeplinks.ListByCampaign)
		r.Get("/analytics", a.Analytics.CampaignAnalytics)
		r.Get("/rules", a.Budget.ListRules)
		r.Post("/rules", a.Budget.CreateRule)
		r.Post("/rules/evaluate", a.Budget.Evaluate)
	})
	r.Patch("/rules/{ruleID}", a.Budget.SetRuleEnabled)
	r.Delete("/rules/{ruleID}", a.Budget.DeleteRule)

	// Templates
	r.Post("/templates", a.Templates.CreateTemplate)
	r.Get("/templates/{id}", a.Templates.GetTemplate)
	r.Delete("/templates/{id}", a.Templates.DeleteTemplate)
	r.Post("/templates/{id}/preview", a.Templates.Preview)

	// Deeplinks
	r.Post("/deeplinks", a.Deeplinks.Generate)
	r.Get("/deeplinks/{id}", a.Deeplinks.GetDeeplink)

	// Consumers
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/deeplinks", a.Deeplinks.ListByUser)
		r.Get("/progress", a.Rewards.GetProgress)
		r.Post("/check-in", a.Rewards.CheckIn)
		r.Post("/bonus", a.Rewards.ClaimDailyBonus)
		r.Post("/xp", a.Rewards.AddXP)
	})
}
