// cmd/server/main.go
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memberhub/campaign-engine/internal/config"
	"github.com/memberhub/campaign-engine/internal/controller"
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

	// Provider credential problems surface here, not as mass recipient
	// failure mid-batch.
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

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		TriggerToken:    cfg.TriggerToken,
	}

	r := chi.NewRouter()

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Post("/campaigns/process", campaignController.ProcessNextBatch)
	r.Get("/campaigns/{id}", campaignController.GetCampaignStatus)

	log.Infof("server running on %s", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
