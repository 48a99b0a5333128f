// cmd/worker/main.go
//
// Cron-driven trigger: each tick performs exactly one bounded unit of work,
// a single batch of the oldest non-terminal campaign. Progress lives in the
// store, so the worker can be restarted at any point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/memberhub/campaign-engine/internal/config"
	"github.com/memberhub/campaign-engine/internal/db"
	"github.com/memberhub/campaign-engine/internal/events"
	"github.com/memberhub/campaign-engine/internal/logger"
	"github.com/memberhub/campaign-engine/internal/repository"
	"github.com/memberhub/campaign-engine/internal/sender"
	"github.com/memberhub/campaign-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("could not load configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	actionLogRepo := &repository.ActionLogRepository{DB: conn}

	emailSender, err := sender.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.EmailFrom)
	if err != nil {
		log.Fatalf("email sender: %v", err)
	}
	smsSender, err := sender.NewSMSSender(cfg.SMSAPIURL, cfg.SMSFrom, cfg.SMSUsername, cfg.SMSPassword)
	if err != nil {
		log.Fatalf("sms sender: %v", err)
	}

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("event publisher: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	campaignService := service.NewCampaignService(
		campaignRepo,
		service.NewDeliveryExecutor(emailSender, smsSender),
		service.NewCooldownGuard(actionLogRepo, cfg.CooldownWindow),
		publisher,
		log,
		cfg.BatchSize,
		cfg.SendDelay,
	)

	// SkipIfStillRunning keeps at most one batch in flight; a slow batch
	// never overlaps the next tick.
	cronEngine := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = cronEngine.AddFunc(cfg.CronSpecProcess, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		summary, err := campaignService.ProcessNextBatch(ctx)
		if err != nil {
			log.WithError(err).Error("batch processing failed")
			return
		}
		if summary.Message != "" {
			log.Debug(summary.Message)
		}
	})
	if err != nil {
		log.Fatalf("could not register processing job: %v", err)
	}

	cronEngine.Start()
	log.Infof("worker running, processing on schedule %q", cfg.CronSpecProcess)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	<-cronEngine.Stop().Done()
	log.Info("worker stopped")
}
