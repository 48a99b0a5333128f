// internal/errors/errors.go
package appErrors

import (
	"fmt"
	"time"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignConflict is returned when a non-terminal campaign of the same
// type already exists. Campaigns of one type are serialized.
type ErrCampaignConflict struct {
	Type       string
	ExistingID string
}

func (e *ErrCampaignConflict) Error() string {
	return fmt.Sprintf("campaign of type %s is already active (id %s)", e.Type, e.ExistingID)
}

func NewCampaignConflict(campaignType, existingID string) error {
	return &ErrCampaignConflict{Type: campaignType, ExistingID: existingID}
}

// ErrCooldownActive is returned when the cooldown guard rejects a new
// campaign of an action kind that ran too recently.
type ErrCooldownActive struct {
	Action          string
	NextAvailableAt time.Time
}

func (e *ErrCooldownActive) Error() string {
	return fmt.Sprintf("action %s is on cooldown until %s", e.Action, e.NextAvailableAt.Format(time.RFC3339))
}

func NewCooldownActive(action string, nextAvailableAt time.Time) error {
	return &ErrCooldownActive{Action: action, NextAvailableAt: nextAvailableAt}
}

// ErrEmptyRoster rejects campaign creation with no recipients.
var ErrEmptyRoster = fmt.Errorf("campaign roster is empty")

// ErrInvalidCampaignType rejects unknown campaign types at creation.
var ErrInvalidCampaignType = fmt.Errorf("invalid campaign type")
