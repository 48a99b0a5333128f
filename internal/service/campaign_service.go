// internal/service/campaign_service.go
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/memberhub/campaign-engine/internal/errors"
	"github.com/memberhub/campaign-engine/internal/events"
	"github.com/memberhub/campaign-engine/internal/model"
	"github.com/memberhub/campaign-engine/internal/repository"
)

// CampaignService owns the campaign lifecycle and drives one batch per
// ProcessNextBatch invocation. All progress lives in the persisted campaign
// row, never in memory between invocations.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Executor     *DeliveryExecutor
	Guard        *CooldownGuard   // optional
	Events       events.Publisher // optional
	Logger       logrus.FieldLogger

	BatchSize int
	SendDelay time.Duration

	sleep func(time.Duration) // test seam, defaults to time.Sleep
}

type ServiceOption func(s *CampaignService)

func SetSleepFunc(sleep func(time.Duration)) ServiceOption {
	return func(s *CampaignService) {
		s.sleep = sleep
	}
}

func NewCampaignService(
	repo repository.CampaignRepositoryInterface,
	executor *DeliveryExecutor,
	guard *CooldownGuard,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	batchSize int,
	sendDelay time.Duration,
	options ...ServiceOption,
) *CampaignService {
	s := &CampaignService{
		CampaignRepo: repo,
		Executor:     executor,
		Guard:        guard,
		Events:       publisher,
		Logger:       logger,
		BatchSize:    batchSize,
		SendDelay:    sendDelay,
		sleep:        time.Sleep,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// ProcessSummary is the result of one "process next batch" invocation.
type ProcessSummary struct {
	CampaignID      string `json:"campaign_id,omitempty"`
	BatchSent       int    `json:"batch_sent"`
	BatchFailed     int    `json:"batch_failed"`
	TotalProcessed  int    `json:"total_processed"`
	TotalRecipients int    `json:"total_recipients"`
	IsComplete      bool   `json:"is_complete"`
	Message         string `json:"message,omitempty"`
}

// CreateCampaign validates the roster, serializes campaigns per type, and
// consults the cooldown guard before persisting a new pending campaign.
func (s *CampaignService) CreateCampaign(campaignType model.CampaignType, roster []model.Recipient, subject, messageBody string) (*model.Campaign, error) {
	if !campaignType.Valid() {
		return nil, appErrors.ErrInvalidCampaignType
	}
	if len(roster) == 0 {
		return nil, appErrors.ErrEmptyRoster
	}

	// The cooldown applies to the activation-reminder bulk path only;
	// welfare notifications are gated by per-type exclusivity alone.
	guarded := s.Guard != nil && campaignType == model.TypeActivationReminder
	if guarded {
		allowed, nextAvailableAt, err := s.Guard.CanStart(string(campaignType))
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, appErrors.NewCooldownActive(string(campaignType), nextAvailableAt)
		}
	}

	existing, err := s.CampaignRepo.FindActiveByType(campaignType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, appErrors.NewCampaignConflict(string(campaignType), existing.ID)
	}

	campaign := &model.Campaign{
		Type:        campaignType,
		Status:      model.StatusPending,
		Subject:     subject,
		MessageBody: messageBody,
		Recipients:  roster,
	}

	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, err
	}

	if guarded {
		if err := s.Guard.RecordStart(string(campaignType)); err != nil {
			s.Logger.WithError(err).Warn("failed to record action log entry")
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"type":        campaign.Type,
		"recipients":  campaign.TotalRecipients,
	}).Info("campaign created")

	return campaign, nil
}

// GetStatus returns a read-only snapshot of one campaign.
func (s *CampaignService) GetStatus(id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

// ProcessNextBatch picks the oldest non-terminal campaign and processes one
// batch of its roster. Recipient failures are captured and counted; only
// persistence errors propagate, so the trigger can retry the whole batch.
func (s *CampaignService) ProcessNextBatch(ctx context.Context) (*ProcessSummary, error) {
	campaign, err := s.CampaignRepo.FindOldestActive()
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return &ProcessSummary{Message: "No campaigns to process"}, nil
	}

	log := s.Logger.WithField("campaign_id", campaign.ID)

	if campaign.Status == model.StatusPending {
		campaign.Status = model.StatusInProgress
		if err := s.CampaignRepo.UpdateStatus(campaign.ID, model.StatusInProgress); err != nil {
			return nil, err
		}
		log.Info("campaign picked up")
	}

	batch := NextBatch(campaign.Recipients, s.BatchSize)
	if len(batch) == 0 {
		// Roster exhausted but the row was never flipped; reconcile.
		log.Warn("campaign roster already exhausted, marking completed")
		s.complete(campaign)
		return s.finishBatch(campaign, 0, 0, log)
	}

	var batchSent, batchFailed int
	for i, idx := range batch {
		recipient := campaign.Recipients[idx]
		outcome := s.Executor.Attempt(ctx, campaign, recipient)

		if outcome.Success {
			batchSent++
		} else {
			batchFailed++
			campaign.FailedDeliveries = append(campaign.FailedDeliveries, model.FailedDelivery{
				Identifier: outcome.Identifier,
				Error:      outcome.Reason,
			})
			log.WithFields(logrus.Fields{
				"recipient": outcome.Identifier,
				"reason":    outcome.Reason,
			}).Warn("recipient delivery failed")
		}

		// Fixed inter-send pacing stands in for provider rate limiting.
		if i < len(batch)-1 {
			s.sleep(s.SendDelay)
		}
	}

	// Marking and counter updates go to the store in one write so a persist
	// failure cannot resurrect attempted recipients as unsent.
	MarkProcessed(campaign.Recipients, batch)
	campaign.SentCount += batchSent
	campaign.FailedCount += batchFailed

	return s.finishBatch(campaign, batchSent, batchFailed, log)
}

// finishBatch persists the campaign, emits events and builds the summary.
// Both the normal batch path and the exhausted-roster reconciliation end here.
func (s *CampaignService) finishBatch(campaign *model.Campaign, batchSent, batchFailed int, log logrus.FieldLogger) (*ProcessSummary, error) {
	if campaign.IsComplete() {
		s.complete(campaign)
	}

	if err := s.CampaignRepo.SaveProgress(campaign); err != nil {
		return nil, err
	}

	summary := s.summarize(campaign, batchSent, batchFailed)
	s.publish(events.TopicBatchProcessed, summary)
	if summary.IsComplete {
		s.publish(events.TopicCampaignCompleted, summary)
		log.WithFields(logrus.Fields{
			"sent":   campaign.SentCount,
			"failed": campaign.FailedCount,
		}).Info("campaign completed")
	}

	log.WithFields(logrus.Fields{
		"batch_sent":   batchSent,
		"batch_failed": batchFailed,
		"processed":    campaign.Processed(),
		"total":        campaign.TotalRecipients,
	}).Info("batch processed")

	return summary, nil
}

func (s *CampaignService) complete(campaign *model.Campaign) {
	if campaign.Status == model.StatusCompleted {
		return
	}
	now := time.Now()
	campaign.Status = model.StatusCompleted
	campaign.CompletedAt = &now
}

func (s *CampaignService) summarize(campaign *model.Campaign, batchSent, batchFailed int) *ProcessSummary {
	return &ProcessSummary{
		CampaignID:      campaign.ID,
		BatchSent:       batchSent,
		BatchFailed:     batchFailed,
		TotalProcessed:  campaign.Processed(),
		TotalRecipients: campaign.TotalRecipients,
		IsComplete:      campaign.Status == model.StatusCompleted,
	}
}

func (s *CampaignService) publish(topic string, payload any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(topic, payload); err != nil {
		s.Logger.WithError(err).WithField("topic", topic).Warn("failed to publish event")
	}
}
