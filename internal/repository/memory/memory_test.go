package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// steppingClock advances one second per call so recency order is stable.
func steppingClock(db *DB) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	db.SetClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})
}

func TestProfileUpsert_UpdatesExisting(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()

	first, created, err := db.Profiles().Upsert(ctx, &models.Profile{
		CompanyID: company, Email: "a@example.com", Name: "Ann", ListIDs: []string{"L1"},
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := db.Profiles().Upsert(ctx, &models.Profile{
		CompanyID: company, Email: "a@example.com", Phone: "555", ListIDs: []string{"L1", "L2"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ann", second.Name)
	assert.Equal(t, "555", second.Phone)
	assert.Equal(t, []string{"L1", "L2"}, second.ListIDs)
}

func TestBindSession_LeavesBoundRecordsAlone(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	events := db.Events()

	_, err := events.Append(ctx, &models.SessionEvents{CompanyID: company, SessionID: "s1"})
	require.NoError(t, err)

	first, second := uuid.New(), uuid.New()
	n, err := events.BindSession(ctx, company, "s1", first)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = events.BindSession(ctx, company, "s1", second)
	require.NoError(t, err)
	assert.Zero(t, n)

	bound, err := events.BoundProfile(ctx, company, "s1")
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, first, *bound)
}

func TestBindSession_ClaimsEmptySession(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	events := db.Events()
	owner := uuid.New()

	n, err := events.BindSession(ctx, company, "fresh", owner)
	require.NoError(t, err)
	assert.Zero(t, n)

	bound, err := events.BoundProfile(ctx, company, "fresh")
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, owner, *bound)

	other, err := events.BoundProfile(ctx, uuid.New(), "fresh")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestProfileTagAdd_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	pt := models.ProfileTag{ProfileID: uuid.New(), TagID: uuid.New(), CompanyID: company, AddedBy: models.AddedByManual}

	_, created, err := db.ProfileTags().Add(ctx, pt)
	require.NoError(t, err)
	assert.True(t, created)

	pt.AddedBy = models.AddedByAPI
	got, created, err := db.ProfileTags().Add(ctx, pt)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.AddedByManual, got.AddedBy)

	n, err := db.ProfileTags().CountWithTag(ctx, company, pt.TagID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMatchProfiles_OrdersByRecency(t *testing.T) {
	ctx := context.Background()
	db := New()
	steppingClock(db)
	company := uuid.New()

	tag, err := db.Tags().Create(ctx, &models.Tag{CompanyID: company, Name: "vip"})
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		p, _, err := db.Profiles().Upsert(ctx, &models.Profile{CompanyID: company, Email: email})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	n, err := db.ProfileTags().BulkAdd(ctx, company, ids, []uuid.UUID{tag.ID}, models.AddedByAPI)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := db.ProfileTags().MatchProfiles(ctx, company, []uuid.UUID{tag.ID}, models.TagLogicAny, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
}

func TestBulkAdd_SkipsForeignRows(t *testing.T) {
	ctx := context.Background()
	db := New()
	mine, theirs := uuid.New(), uuid.New()

	tag, err := db.Tags().Create(ctx, &models.Tag{CompanyID: mine, Name: "t"})
	require.NoError(t, err)
	foreign, _, err := db.Profiles().Upsert(ctx, &models.Profile{CompanyID: theirs, Email: "x@y.z"})
	require.NoError(t, err)

	n, err := db.ProfileTags().BulkAdd(ctx, mine, []uuid.UUID{foreign.ID}, []uuid.UUID{tag.ID}, models.AddedByAPI)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTagCreate_DuplicateName(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()

	_, err := db.Tags().Create(ctx, &models.Tag{CompanyID: company, Name: "vip"})
	require.NoError(t, err)
	_, err = db.Tags().Create(ctx, &models.Tag{CompanyID: company, Name: "vip"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// Same name in another company is fine.
	_, err = db.Tags().Create(ctx, &models.Tag{CompanyID: uuid.New(), Name: "vip"})
	assert.NoError(t, err)
}

func TestRemoveTagReference(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	tagA, tagB := uuid.New(), uuid.New()

	l, err := db.Lists().Create(ctx, &models.List{
		CompanyID: company, ListID: "abc", Name: "l", TagIDs: []uuid.UUID{tagA, tagB}, TagLogic: models.TagLogicAll,
	})
	require.NoError(t, err)

	changed, err := db.Lists().RemoveTagReference(ctx, company, tagA)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{l.ID}, changed)

	got, err := db.Lists().GetByID(ctx, company, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tagB}, got.TagIDs)
}

func TestCampaignTransition_IsConditional(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	store := db.Campaigns()

	c, err := store.Create(ctx, &models.Campaign{CompanyID: company, Name: "launch"})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignDraft, c.Status)

	from := []models.CampaignStatus{models.CampaignDraft}
	ok, err := store.Transition(ctx, company, c.ID, from, models.CampaignSending, repository.TransitionPatch{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Transition(ctx, company, c.ID, from, models.CampaignSending, repository.TransitionPatch{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.UpdateContent(ctx, &models.Campaign{ID: c.ID, CompanyID: company, Name: "late edit"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignListDue(t *testing.T) {
	ctx := context.Background()
	db := New()
	company := uuid.New()
	store := db.Campaigns()
	now := time.Now()

	due, err := store.Create(ctx, &models.Campaign{CompanyID: company, Name: "due"})
	require.NoError(t, err)
	later, err := store.Create(ctx, &models.Campaign{CompanyID: company, Name: "later"})
	require.NoError(t, err)

	past, future := now.Add(-time.Minute), now.Add(time.Hour)
	draft := []models.CampaignStatus{models.CampaignDraft}
	_, err = store.Transition(ctx, company, due.ID, draft, models.CampaignScheduled, repository.TransitionPatch{ScheduledAt: &past})
	require.NoError(t, err)
	_, err = store.Transition(ctx, company, later.ID, draft, models.CampaignScheduled, repository.TransitionPatch{ScheduledAt: &future})
	require.NoError(t, err)

	got, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}
