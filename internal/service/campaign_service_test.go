package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/memberhub/campaign-engine/internal/errors"
	"github.com/memberhub/campaign-engine/internal/events"
	"github.com/memberhub/campaign-engine/internal/model"
)

// --- In-memory campaign repository ---
//
// Returns copies on reads and stores copies on writes, so tests exercise the
// same read-modify-write cycle the postgres repository provides.

type memCampaignRepo struct {
	mu        sync.Mutex
	seq       int
	clock     time.Time
	campaigns map[string]*model.Campaign
	saveErr   error
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{
		clock:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		campaigns: make(map[string]*model.Campaign),
	}
}

func cloneCampaign(c *model.Campaign) *model.Campaign {
	clone := *c
	clone.Recipients = append([]model.Recipient(nil), c.Recipients...)
	clone.FailedDeliveries = append([]model.FailedDelivery(nil), c.FailedDeliveries...)
	return &clone
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	c.ID = fmt.Sprintf("campaign-%d", r.seq)
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	r.clock = r.clock.Add(time.Minute)
	c.CreatedAt = r.clock
	c.TotalRecipients = len(c.Recipients)

	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *memCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return cloneCampaign(c), nil
}

func (r *memCampaignRepo) FindActiveByType(t model.CampaignType) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *model.Campaign
	for _, c := range r.campaigns {
		if c.Type != t || c.Status == model.StatusCompleted {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, nil
	}
	return cloneCampaign(oldest), nil
}

func (r *memCampaignRepo) FindOldestActive() (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *model.Campaign
	for _, c := range r.campaigns {
		if c.Status == model.StatusCompleted {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, nil
	}
	return cloneCampaign(oldest), nil
}

func (r *memCampaignRepo) UpdateStatus(id string, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (r *memCampaignRepo) SaveProgress(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

// --- Helpers ---

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func emailRoster(n int) []model.Recipient {
	roster := make([]model.Recipient, 0, n)
	for i := 1; i <= n; i++ {
		roster = append(roster, model.Recipient{
			Email:     fmt.Sprintf("member%03d@example.org", i),
			FirstName: "Member",
		})
	}
	return roster
}

func newTestService(repo *memCampaignRepo, email *fakeEmailSender, batchSize int) *CampaignService {
	return NewCampaignService(
		repo,
		NewDeliveryExecutor(email, &fakeSMSSender{}),
		nil,
		nil,
		testLogger(),
		batchSize,
		500*time.Millisecond,
		SetSleepFunc(func(time.Duration) {}),
	)
}

// --- Tests ---

func TestResumabilityAcrossInvocations(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{}
	svc := newTestService(repo, email, 50)

	campaign, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(120), "Notice", "Hello {first_name}")
	require.NoError(t, err)
	assert.Equal(t, 120, campaign.TotalRecipients)

	ctx := context.Background()

	first, err := svc.ProcessNextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, first.BatchSent)
	assert.Equal(t, 50, first.TotalProcessed)
	assert.False(t, first.IsComplete)

	stored, _ := repo.GetByID(campaign.ID)
	assert.Equal(t, model.StatusInProgress, stored.Status)

	second, err := svc.ProcessNextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, second.TotalProcessed)
	assert.False(t, second.IsComplete)

	third, err := svc.ProcessNextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, third.BatchSent)
	assert.Equal(t, 120, third.TotalProcessed)
	assert.True(t, third.IsComplete)

	stored, _ = repo.GetByID(campaign.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	fourth, err := svc.ProcessNextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No campaigns to process", fourth.Message)
	assert.Empty(t, fourth.CampaignID)
}

func TestNoRecipientProcessedTwice(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{}
	svc := newTestService(repo, email, 50)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(120), "Notice", "Hello")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		if _, err := svc.ProcessNextBatch(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	assert.Len(t, email.sent, 120)
	seen := make(map[string]int)
	for _, to := range email.sent {
		seen[to]++
	}
	for to, n := range seen {
		assert.Equal(t, 1, n, "recipient %s processed more than once", to)
	}
}

func TestConservationWithFailures(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{failFor: map[string]string{
		"member002@example.org": "bounced",
		"member007@example.org": "bounced",
	}}
	svc := newTestService(repo, email, 4)

	campaign, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(10), "Notice", "Hello")
	require.NoError(t, err)

	for {
		summary, err := svc.ProcessNextBatch(context.Background())
		require.NoError(t, err)

		stored, _ := repo.GetByID(campaign.ID)
		assert.LessOrEqual(t, stored.SentCount+stored.FailedCount, stored.TotalRecipients)

		if summary.IsComplete {
			break
		}
	}

	stored, _ := repo.GetByID(campaign.ID)
	assert.Equal(t, 8, stored.SentCount)
	assert.Equal(t, 2, stored.FailedCount)
	assert.Equal(t, stored.TotalRecipients, stored.SentCount+stored.FailedCount)
	require.Len(t, stored.FailedDeliveries, 2)
	assert.Equal(t, "member002@example.org", stored.FailedDeliveries[0].Identifier)
	assert.Contains(t, stored.FailedDeliveries[0].Error, "bounced")
}

func TestRecipientFailureNeverAbortsBatch(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{failFor: map[string]string{"member001@example.org": "hard bounce"}}
	svc := newTestService(repo, email, 50)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(5), "Notice", "Hello")
	require.NoError(t, err)

	summary, err := svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.BatchSent)
	assert.Equal(t, 1, summary.BatchFailed)
	assert.True(t, summary.IsComplete)
	assert.Len(t, email.sent, 5)
}

func TestOldestFirstFairness(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{}
	svc := newTestService(repo, email, 2)

	a, err := svc.CreateCampaign(model.TypeActivationReminder, emailRoster(5), "A", "Hello")
	require.NoError(t, err)
	b, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "B", "Hello")
	require.NoError(t, err)

	var order []string
	for {
		summary, err := svc.ProcessNextBatch(context.Background())
		require.NoError(t, err)
		if summary.Message != "" {
			break
		}
		order = append(order, summary.CampaignID)
	}

	// A (created first) is driven to completion before B advances at all.
	assert.Equal(t, []string{a.ID, a.ID, a.ID, b.ID, b.ID}, order)
}

func TestSingleActiveCampaignPerType(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := newTestService(repo, &fakeEmailSender{}, 50)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "First", "Hello")
	require.NoError(t, err)

	_, err = svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "Second", "Hello")
	var conflict *appErrors.ErrCampaignConflict
	require.ErrorAs(t, err, &conflict)

	// A different type is unaffected.
	_, err = svc.CreateCampaign(model.TypeActivationReminder, emailRoster(3), "Other", "Hello")
	require.NoError(t, err)

	// Completing the first unblocks its type.
	_, err = svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)
	_, err = svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)

	_, err = svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "Third", "Hello")
	require.NoError(t, err)
}

func TestCreateRejectsEmptyRoster(t *testing.T) {
	svc := newTestService(newMemCampaignRepo(), &fakeEmailSender{}, 50)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, nil, "Notice", "Hello")
	assert.ErrorIs(t, err, appErrors.ErrEmptyRoster)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := newTestService(newMemCampaignRepo(), &fakeEmailSender{}, 50)

	_, err := svc.CreateCampaign("newsletter", emailRoster(1), "Notice", "Hello")
	assert.ErrorIs(t, err, appErrors.ErrInvalidCampaignType)
}

func TestCooldownGuardBlocksCreation(t *testing.T) {
	repo := newMemCampaignRepo()
	actionLog := &memActionLog{}
	svc := newTestService(repo, &fakeEmailSender{}, 50)
	svc.Guard = NewCooldownGuard(actionLog, 7*24*time.Hour)

	_, err := svc.CreateCampaign(model.TypeActivationReminder, emailRoster(2), "Activate", "Hi")
	require.NoError(t, err)
	require.Len(t, actionLog.entries, 1)

	// Drain the first campaign so the exclusivity check passes.
	_, err = svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)

	_, err = svc.CreateCampaign(model.TypeActivationReminder, emailRoster(2), "Activate", "Hi")
	var cooldown *appErrors.ErrCooldownActive
	require.ErrorAs(t, err, &cooldown)
	assert.WithinDuration(t, actionLog.entries[0].at.Add(7*24*time.Hour), cooldown.NextAvailableAt, time.Second)
}

func TestCooldownDoesNotGateWelfareCampaigns(t *testing.T) {
	repo := newMemCampaignRepo()
	actionLog := &memActionLog{}
	svc := newTestService(repo, &fakeEmailSender{}, 50)
	svc.Guard = NewCooldownGuard(actionLog, 7*24*time.Hour)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(2), "Notice", "Hello")
	require.NoError(t, err)
	assert.Empty(t, actionLog.entries, "welfare campaigns are not action-logged")

	_, err = svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)

	// A completed welfare campaign can be followed immediately by another of
	// the same type; only the activation bulk path is rate-limited.
	_, err = svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(2), "Notice", "Hello")
	require.NoError(t, err)
}

func TestReconciliationCompletesExhaustedCampaign(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := newTestService(repo, &fakeEmailSender{}, 50)

	campaign, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(2), "Notice", "Hello")
	require.NoError(t, err)

	// Simulate a row whose roster was fully marked but never flipped.
	stored, _ := repo.GetByID(campaign.ID)
	stored.Status = model.StatusInProgress
	MarkProcessed(stored.Recipients, []int{0, 1})
	stored.SentCount = 2
	require.NoError(t, repo.SaveProgress(stored))
	require.NoError(t, repo.UpdateStatus(stored.ID, model.StatusInProgress))

	summary, err := svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.IsComplete)
	assert.Equal(t, 0, summary.BatchSent)

	final, _ := repo.GetByID(campaign.ID)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)
}

func TestReconciliationPublishesCompletionEvent(t *testing.T) {
	repo := newMemCampaignRepo()
	publisher := events.NewInMemoryPublisher()

	var batches, completions int
	publisher.Subscribe(events.TopicBatchProcessed, func(payload any) error {
		batches++
		return nil
	})
	publisher.Subscribe(events.TopicCampaignCompleted, func(payload any) error {
		completions++
		return nil
	})

	svc := NewCampaignService(
		repo,
		NewDeliveryExecutor(&fakeEmailSender{}, &fakeSMSSender{}),
		nil,
		publisher,
		testLogger(),
		50,
		0,
		SetSleepFunc(func(time.Duration) {}),
	)

	campaign, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(2), "Notice", "Hello")
	require.NoError(t, err)

	stored, _ := repo.GetByID(campaign.ID)
	stored.Status = model.StatusInProgress
	MarkProcessed(stored.Recipients, []int{0, 1})
	stored.SentCount = 2
	require.NoError(t, repo.SaveProgress(stored))
	require.NoError(t, repo.UpdateStatus(stored.ID, model.StatusInProgress))

	summary, err := svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)
	require.True(t, summary.IsComplete)

	// Reconciling an exhausted roster announces completion like any other flip.
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, completions)
}

func TestPersistenceFailurePropagates(t *testing.T) {
	repo := newMemCampaignRepo()
	email := &fakeEmailSender{}
	svc := newTestService(repo, email, 50)

	campaign, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "Notice", "Hello")
	require.NoError(t, err)

	repo.saveErr = fmt.Errorf("connection reset")
	_, err = svc.ProcessNextBatch(context.Background())
	require.Error(t, err)

	// Nothing was persisted, so the next invocation retries the whole batch.
	repo.saveErr = nil
	stored, _ := repo.GetByID(campaign.ID)
	assert.Equal(t, 0, stored.Processed())
	assert.Len(t, Unsent(stored.Recipients), 3)

	summary, err := svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.BatchSent)
	assert.True(t, summary.IsComplete)
}

func TestInterSendPacing(t *testing.T) {
	repo := newMemCampaignRepo()
	var sleeps int
	svc := NewCampaignService(
		repo,
		NewDeliveryExecutor(&fakeEmailSender{}, &fakeSMSSender{}),
		nil,
		nil,
		testLogger(),
		50,
		500*time.Millisecond,
		SetSleepFunc(func(d time.Duration) {
			assert.Equal(t, 500*time.Millisecond, d)
			sleeps++
		}),
	)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(10), "Notice", "Hello")
	require.NoError(t, err)

	_, err = svc.ProcessNextBatch(context.Background())
	require.NoError(t, err)

	// Delay sits between sends, not after the last one.
	assert.Equal(t, 9, sleeps)
}

func TestBatchEventsPublished(t *testing.T) {
	repo := newMemCampaignRepo()
	publisher := events.NewInMemoryPublisher()

	var batches, completions int
	publisher.Subscribe(events.TopicBatchProcessed, func(payload any) error {
		batches++
		return nil
	})
	publisher.Subscribe(events.TopicCampaignCompleted, func(payload any) error {
		completions++
		return nil
	})

	svc := NewCampaignService(
		repo,
		NewDeliveryExecutor(&fakeEmailSender{}, &fakeSMSSender{}),
		nil,
		publisher,
		testLogger(),
		2,
		0,
		SetSleepFunc(func(time.Duration) {}),
	)

	_, err := svc.CreateCampaign(model.TypeWelfareNotification, emailRoster(3), "Notice", "Hello")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.ProcessNextBatch(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, batches)
	assert.Equal(t, 1, completions)
}

// --- In-memory action log ---

type memActionLogEntry struct {
	kind string
	at   time.Time
}

type memActionLog struct {
	entries []memActionLogEntry
}

func (m *memActionLog) Record(kind string, at time.Time) error {
	m.entries = append(m.entries, memActionLogEntry{kind: kind, at: at})
	return nil
}

func (m *memActionLog) LastRun(kind string) (*time.Time, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == kind {
			at := m.entries[i].at
			return &at, nil
		}
	}
	return nil, nil
}
