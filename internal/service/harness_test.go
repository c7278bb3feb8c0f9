package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository/memory"
	"github.com/lalith-99/cdpcore/internal/rules"
)

type harness struct {
	db        *memory.DB
	company   uuid.UUID
	queue     *queue.InlineQueue
	identity  *IdentityService
	tags      *TagService
	lists     *ListService
	campaigns *CampaignService
	rules     *RuleService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := memory.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	db.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	log := zap.NewNop()
	refresher := NewRefresher(db.Tags(), db.ProfileTags(), db.Lists(), log)
	ruleSvc := NewRuleService(db.Rules(), db.Tags(), db.ProfileTags(), rules.NewEngine(), refresher, log)
	q := queue.NewInlineQueue(16)

	return &harness{
		db:      db,
		company: uuid.New(),
		queue:   q,
		identity: NewIdentityService(db.Profiles(), db.Events(), db.Lists(), db.ProfileTags(),
			NewBinder(db.Events(), log), ruleSvc, refresher, log),
		tags:      NewTagService(db.Tags(), db.ProfileTags(), db.Lists(), db.Rules(), db.Profiles(), refresher, log),
		lists:     NewListService(db.Lists(), db.Tags(), db.ProfileTags(), db.Profiles(), refresher, log),
		campaigns: NewCampaignService(db.Campaigns(), db.Lists(), q, log),
		rules:     ruleSvc,
	}
}

func (h *harness) profile(t *testing.T, email string) *models.Profile {
	t.Helper()
	res, err := h.identity.Identify(context.Background(), IdentifyInput{
		CompanyID: h.company,
		SessionID: "sess-" + email,
		Email:     email,
		Name:      "Test " + email,
	})
	require.NoError(t, err)
	return res.Profile
}

func (h *harness) tag(t *testing.T, name string) *models.Tag {
	t.Helper()
	tag, err := h.tags.Create(context.Background(), h.company, TagInput{Name: name})
	require.NoError(t, err)
	return tag
}

func (h *harness) addTag(t *testing.T, p *models.Profile, tag *models.Tag) {
	t.Helper()
	_, _, err := h.tags.AddTag(context.Background(), h.company, p.ID, tag.ID, models.AddedByManual, nil)
	require.NoError(t, err)
}
