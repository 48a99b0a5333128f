package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/memberhub/campaign-engine/internal/errors"
	"github.com/memberhub/campaign-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id string) (*model.Campaign, error)

	// FindActiveByType returns the non-terminal campaign of the given type,
	// or nil when none exists.
	FindActiveByType(t model.CampaignType) (*model.Campaign, error)

	// FindOldestActive returns the oldest campaign with status pending or
	// in_progress, or nil when the queue is empty.
	FindOldestActive() (*model.Campaign, error)

	UpdateStatus(id string, status model.CampaignStatus) error

	// SaveProgress writes roster, counters, failure log, status and
	// completed_at in a single UPDATE so that marking recipients and
	// persisting counters cannot diverge.
	SaveProgress(c *model.Campaign) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, type, status, subject, message_body, recipients,
       total_recipients, sent_count, failed_count, failed_deliveries, created_at, completed_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	c.CreatedAt = time.Now()
	c.TotalRecipients = len(c.Recipients)

	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return fmt.Errorf("error encoding roster: %w", err)
	}
	failures, err := json.Marshal(failureLog(c))
	if err != nil {
		return fmt.Errorf("error encoding failure log: %w", err)
	}

	query := `
        INSERT INTO campaigns (id, type, status, subject, message_body, recipients,
                               total_recipients, sent_count, failed_count, failed_deliveries, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err = r.DB.Exec(query, c.ID, c.Type, c.Status, c.Subject, c.MessageBody,
		recipients, c.TotalRecipients, c.SentCount, c.FailedCount, failures, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := r.scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) FindActiveByType(t model.CampaignType) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE type=$1 AND status IN ($2, $3)
        ORDER BY created_at ASC
        LIMIT 1`
	c, err := r.scanCampaign(r.DB.QueryRow(query, t, model.StatusPending, model.StatusInProgress))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) FindOldestActive() (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status IN ($1, $2)
        ORDER BY created_at ASC
        LIMIT 1`
	c, err := r.scanCampaign(r.DB.QueryRow(query, model.StatusPending, model.StatusInProgress))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) UpdateStatus(id string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	if err != nil {
		return fmt.Errorf("error updating campaign status: %w", err)
	}
	return nil
}

func (r *CampaignRepository) SaveProgress(c *model.Campaign) error {
	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return fmt.Errorf("error encoding roster: %w", err)
	}
	failures, err := json.Marshal(failureLog(c))
	if err != nil {
		return fmt.Errorf("error encoding failure log: %w", err)
	}

	query := `
        UPDATE campaigns
        SET recipients=$1, sent_count=$2, failed_count=$3, failed_deliveries=$4,
            status=$5, completed_at=$6
        WHERE id=$7
    `
	res, err := r.DB.Exec(query, recipients, c.SentCount, c.FailedCount, failures,
		c.Status, c.CompletedAt, c.ID)
	if err != nil {
		return fmt.Errorf("error persisting campaign progress: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CampaignRepository) scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var recipients, failures []byte
	var completedAt sql.NullTime

	err := row.Scan(&c.ID, &c.Type, &c.Status, &c.Subject, &c.MessageBody, &recipients,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &failures, &c.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
		return nil, fmt.Errorf("error decoding roster: %w", err)
	}
	if err := json.Unmarshal(failures, &c.FailedDeliveries); err != nil {
		return nil, fmt.Errorf("error decoding failure log: %w", err)
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

// failureLog keeps the serialized column a JSON array even when empty.
func failureLog(c *model.Campaign) []model.FailedDelivery {
	if c.FailedDeliveries == nil {
		return []model.FailedDelivery{}
	}
	return c.FailedDeliveries
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
