package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/config"
	"github.com/unclebandit/clickreward-backend/internal/db"
	"github.com/unclebandit/clickreward-backend/internal/logger"
	"github.com/unclebandit/clickreward-backend/internal/model"
	"github.com/unclebandit/clickreward-backend/internal/queue"
	"github.com/unclebandit/clickreward-backend/internal/repository"
	"github.com/unclebandit/clickreward-backend/internal/service"
)

// The worker consumes click_recorded from RabbitMQ and runs budget rules for
// each click. It is only needed when the server is configured with AMQP_URL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Log).Named("worker")
	defer log.Sync()

	if cfg.Queue.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	budgetService := &service.BudgetService{
		RuleRepo:     &repository.BudgetRuleRepository{DB: conn},
		CampaignRepo: campaignRepo,
		BillingRepo:  &repository.BillingRepository{DB: conn},
		Log:          log.Named("budget"),
	}

	q, err := queue.DialAMQP(cfg.Queue.AMQPURL, log)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}

	d := newDispatcher(cfg.Queue.Workers, log)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.Workers; i++ {
		w := service.NewWorker(budgetService, d.jobs, log.With(zap.Int("worker", i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start()
		}()
	}

	if err := q.Subscribe(model.TopicClickRecorded, d.handle); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}
	log.Info("worker running, waiting for click events", zap.Int("concurrency", cfg.Queue.Workers))

	<-ctx.Done()
	log.Info("shutting down")

	// unacked deliveries go back to the broker once the connection closes
	if err := q.Close(); err != nil {
		log.Warn("failed to close rabbitmq connection", zap.Error(err))
	}
	d.close()
	wg.Wait()
	log.Info("worker stopped")
}
