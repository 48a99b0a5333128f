// internal/model/campaign.go
package model

import "time"

type CampaignType string

const (
	TypeActivationReminder  CampaignType = "activation_reminder"
	TypeWelfareNotification CampaignType = "welfare_notification"
)

// Valid reports whether t is one of the known campaign types.
func (t CampaignType) Valid() bool {
	return t == TypeActivationReminder || t == TypeWelfareNotification
}

// AllowsSMS reports whether campaigns of this type attempt the SMS channel.
// Activation reminders are email-only; welfare notifications go out on both
// channels.
func (t CampaignType) AllowsSMS() bool {
	return t == TypeWelfareNotification
}

type CampaignStatus string

const (
	StatusPending    CampaignStatus = "pending"
	StatusInProgress CampaignStatus = "in_progress"
	StatusCompleted  CampaignStatus = "completed"
)

// FailedDelivery is one entry in a campaign's append-only failure log. It
// exists for operator visibility only and is never used for retry.
type FailedDelivery struct {
	Identifier string `json:"identifier"`
	Error      string `json:"error"`
}

type Campaign struct {
	ID               string           `db:"id" json:"id"`
	Type             CampaignType     `db:"type" json:"type"`
	Status           CampaignStatus   `db:"status" json:"status"`
	Subject          string           `db:"subject" json:"subject"`
	MessageBody      string           `db:"message_body" json:"message_body"`
	Recipients       []Recipient      `db:"recipients" json:"recipients"`
	TotalRecipients  int              `db:"total_recipients" json:"total_recipients"`
	SentCount        int              `db:"sent_count" json:"sent_count"`
	FailedCount      int              `db:"failed_count" json:"failed_count"`
	FailedDeliveries []FailedDelivery `db:"failed_deliveries" json:"failed_deliveries"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// Processed returns how many recipients have reached a terminal outcome.
func (c *Campaign) Processed() int {
	return c.SentCount + c.FailedCount
}

// IsComplete reports whether every recipient in the roster has been processed.
func (c *Campaign) IsComplete() bool {
	return c.Processed() >= c.TotalRecipients
}
