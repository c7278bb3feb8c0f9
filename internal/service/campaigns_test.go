package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/queue"
)

func (h *harness) draft(t *testing.T) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "audience"})
	require.NoError(t, err)
	c, err := h.campaigns.Create(ctx, h.company, uuid.New(), CampaignInput{
		ListID:  l.ID,
		Name:    "launch",
		Content: models.Content{Subject: "Hello {{name}}"},
	})
	require.NoError(t, err)
	return c
}

func TestCampaignCreate_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.campaigns.Create(ctx, h.company, uuid.New(), CampaignInput{Name: "x", Content: models.Content{Subject: "s"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.campaigns.Create(ctx, h.company, uuid.New(), CampaignInput{ListID: uuid.New(), Name: "x", Content: models.Content{Subject: "s"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendNow_QueuesOnceAndGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.draft(t)

	sent, err := h.campaigns.Send(ctx, h.company, c.ID, "now")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignSending, sent.Status)

	job, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.ID, job.CampaignID)
	assert.Equal(t, h.company, job.CompanyID)

	_, err = h.campaigns.Send(ctx, h.company, c.ID, "now")
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestSend_Schedule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h.campaigns.now = func() time.Time { return now }

	c := h.draft(t)

	_, err := h.campaigns.Send(ctx, h.company, c.ID, now.Format(time.RFC3339))
	assert.ErrorIs(t, err, ErrValidation, "time equal to now is not in the future")

	_, err = h.campaigns.Send(ctx, h.company, c.ID, "tomorrow")
	assert.ErrorIs(t, err, ErrValidation)

	at := now.Add(time.Hour)
	got, err := h.campaigns.Send(ctx, h.company, c.ID, at.Format(time.RFC3339))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignScheduled, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(at))

	// A scheduled campaign may still be sent right away.
	got, err = h.campaigns.Send(ctx, h.company, c.ID, SendNow)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignSending, got.Status)
}

func TestUpdateAndDelete_OnlyDrafts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.draft(t)

	updated, err := h.campaigns.Update(ctx, h.company, c.ID, CampaignInput{Name: "renamed", Content: models.Content{Subject: "New"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	_, err = h.campaigns.Send(ctx, h.company, c.ID, SendNow)
	require.NoError(t, err)

	_, err = h.campaigns.Update(ctx, h.company, c.ID, CampaignInput{Name: "late", Content: models.Content{Subject: "Late"}})
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.ErrorIs(t, h.campaigns.Delete(ctx, h.company, c.ID), ErrStateConflict)

	got, err := h.campaigns.Get(ctx, h.company, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "New", got.Content.Subject)
	assert.Zero(t, got.Stats)

	d := h.draft(t)
	require.NoError(t, h.campaigns.Delete(ctx, h.company, d.ID))
	_, err = h.campaigns.Get(ctx, h.company, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.draft(t)

	_, err := h.campaigns.Pause(ctx, h.company, c.ID)
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = h.campaigns.Send(ctx, h.company, c.ID, SendNow)
	require.NoError(t, err)

	got, err := h.campaigns.Pause(ctx, h.company, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignPaused, got.Status)

	stats, err := h.campaigns.Stats(ctx, h.company, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignPaused, stats.Status)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job queue.Job) error {
	return m.Called(ctx, job).Error(0)
}

func TestSendNow_EnqueueFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := &mockEnqueuer{}
	q.On("Enqueue", mock.Anything, mock.AnythingOfType("queue.Job")).Return(errors.New("redis down"))
	h.campaigns = NewCampaignService(h.db.Campaigns(), h.db.Lists(), q, zap.NewNop())

	c := h.draft(t)
	_, err := h.campaigns.Send(ctx, h.company, c.ID, SendNow)
	require.Error(t, err)
	q.AssertExpectations(t)

	got, err := h.campaigns.Get(ctx, h.company, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignFailed, got.Status)
	assert.Contains(t, got.LastError, "redis down")
}
