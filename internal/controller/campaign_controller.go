// internal/controller/campaign_controller.go
package controller

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/memberhub/campaign-engine/internal/errors"
	"github.com/memberhub/campaign-engine/internal/model"
	"github.com/memberhub/campaign-engine/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService

	// TriggerToken authorizes the process-next-batch entry point.
	TriggerToken string
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type        string            `json:"type"`
		Subject     string            `json:"subject"`
		MessageBody string            `json:"message_body"`
		Recipients  []model.Recipient `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	// Sent flags from the request are ignored; a new campaign always starts
	// with an unprocessed roster.
	for i := range body.Recipients {
		body.Recipients[i].Sent = false
	}

	campaign, err := c.CampaignService.CreateCampaign(
		model.CampaignType(body.Type), body.Recipients, body.Subject, body.MessageBody)
	if err != nil {
		var conflict *appErrors.ErrCampaignConflict
		var cooldown *appErrors.ErrCooldownActive
		switch {
		case errors.As(err, &conflict):
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		case errors.As(err, &cooldown):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":             err.Error(),
				"next_available_at": cooldown.NextAvailableAt,
			})
		case errors.Is(err, appErrors.ErrEmptyRoster), errors.Is(err, appErrors.ErrInvalidCampaignType):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, "failed to create campaign: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"campaign_id":      campaign.ID,
		"total_recipients": campaign.TotalRecipients,
	})
}

// ProcessNextBatch is the external trigger entry point. One invocation
// performs exactly one bounded unit of work.
func (c *CampaignController) ProcessNextBatch(w http.ResponseWriter, r *http.Request) {
	if !c.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := c.CampaignService.ProcessNextBatch(r.Context())
	if err != nil {
		http.Error(w, "failed to process batch: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (c *CampaignController) GetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := c.CampaignService.GetStatus(id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id":       campaign.ID,
		"type":              campaign.Type,
		"status":            campaign.Status,
		"total_recipients":  campaign.TotalRecipients,
		"sent_count":        campaign.SentCount,
		"failed_count":      campaign.FailedCount,
		"failed_deliveries": campaign.FailedDeliveries,
		"created_at":        campaign.CreatedAt,
		"completed_at":      campaign.CompletedAt,
	})
}

func (c *CampaignController) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if c.TriggerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.TriggerToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
