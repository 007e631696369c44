package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/cache"
	"github.com/unclebandit/clickreward-backend/internal/config"
	"github.com/unclebandit/clickreward-backend/internal/controller"
	"github.com/unclebandit/clickreward-backend/internal/db"
	"github.com/unclebandit/clickreward-backend/internal/feed"
	"github.com/unclebandit/clickreward-backend/internal/handler"
	"github.com/unclebandit/clickreward-backend/internal/logger"
	"github.com/unclebandit/clickreward-backend/internal/queue"
	"github.com/unclebandit/clickreward-backend/internal/repository"
	"github.com/unclebandit/clickreward-backend/internal/service"
)

const requestTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config lives in cfg, so fall back to a default logger here
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Repositories
	campaignRepo := &repository.CampaignRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}
	deeplinkRepo := &repository.DeeplinkRepository{DB: conn}
	billingRepo := &repository.BillingRepository{DB: conn}
	ruleRepo := &repository.BudgetRuleRepository{DB: conn}
	progressRepo := &repository.ProgressRepository{DB: conn}
	analyticsRepo := &repository.AnalyticsRepository{DB: conn}

	hub := feed.NewHub(cfg.Feed.Capacity)

	var deduper cache.ClickDeduper
	if cfg.Redis.Addr != "" {
		rd, err := cache.NewRedisDeduper(cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rd.Close()
		deduper = rd
		log.Info("using redis click deduper", zap.String("addr", cfg.Redis.Addr))
	} else {
		deduper = cache.NewMemoryDeduper()
		log.Info("using in-memory click deduper")
	}

	// Services
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		TemplateRepo: templateRepo,
		Feed:         hub,
		Log:          log.Named("campaigns"),
	}
	templateService := &service.TemplateService{
		TemplateRepo: templateRepo,
		Log:          log.Named("templates"),
	}
	billingService := &service.BillingService{
		BillingRepo: billingRepo,
		Processor:   service.NewMockProcessor(cfg.Payment.SuccessRate, cfg.Payment.Delay),
		Feed:        hub,
		Log:         log.Named("billing"),
		MinTopUp:    cfg.Payment.MinTopUp,
		MaxTopUp:    cfg.Payment.MaxTopUp,
	}
	budgetService := &service.BudgetService{
		RuleRepo:     ruleRepo,
		CampaignRepo: campaignRepo,
		BillingRepo:  billingRepo,
		Feed:         hub,
		Log:          log.Named("budget"),
	}
	analyticsService := &service.AnalyticsService{
		AnalyticsRepo: analyticsRepo,
		CampaignRepo:  campaignRepo,
		Log:           log.Named("analytics"),
	}
	rewardService := &service.RewardService{
		ProgressRepo: progressRepo,
		Feed:         hub,
		Log:          log.Named("rewards"),
	}

	// Click events go to RabbitMQ for cmd/worker when configured,
	// otherwise they are handled in-process.
	var q queue.Queue
	var memQueue *queue.InMemoryQueue
	if cfg.Queue.AMQPURL != "" {
		aq, err := queue.DialAMQP(cfg.Queue.AMQPURL, log)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer aq.Close()
		q = aq
		log.Info("publishing click events to rabbitmq")
	} else {
		memQueue = queue.NewInMemoryQueue(log).WithRetry(3, 500*time.Millisecond)
		if err := queue.StartClickSubscriber(memQueue, budgetService.HandleClick, log); err != nil {
			log.Fatal("failed to subscribe to click events", zap.Error(err))
		}
		q = memQueue
		log.Info("handling click events in-process")
	}

	deeplinkService := &service.DeeplinkService{
		DeeplinkRepo:  deeplinkRepo,
		CampaignRepo:  campaignRepo,
		Deduper:       deduper,
		Queue:         q,
		Feed:          hub,
		Log:           log.Named("deeplinks"),
		PublicBaseURL: cfg.App.PublicBaseURL,
		DedupeWindow:  cfg.Click.DedupeWindow,
	}

	// Controllers
	api := &controller.API{
		Campaigns: &controller.CampaignController{CampaignService: campaignService, Log: log},
		Templates: &controller.TemplateController{TemplateService: templateService, Log: log},
		Deeplinks: &controller.DeeplinkController{DeeplinkService: deeplinkService, Log: log},
		Billing:   &controller.BillingController{BillingService: billingService, Log: log},
		Budget:    &controller.BudgetController{BudgetService: budgetService, Log: log},
		Analytics: &controller.AnalyticsController{AnalyticsService: analyticsService, Log: log},
		Rewards:   &controller.RewardController{RewardService: rewardService, Log: log},
	}
	redirectHandler := &handler.RedirectHandler{Clicks: deeplinkService, Log: log.Named("redirect")}
	feedHandler := &handler.FeedHandler{Hub: hub, Log: log.Named("feed"), Heartbeat: 30 * time.Second}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The feed stream is long-lived and stays outside the request timeout.
	r.Get("/feed", feedHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/healthz", healthz(conn))
		r.Get("/feed/recent", feedHandler.Recent)
		r.Get("/r/{code}", redirectHandler.Redirect)
		r.Route("/api", api.Routes)
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		log.Info("server running", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// end open feed streams so Shutdown does not wait on them
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if memQueue != nil {
		memQueue.Wait()
	}
	log.Info("server stopped")
}

func healthz(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := conn.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
