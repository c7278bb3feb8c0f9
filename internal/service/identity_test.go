package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/cdpcore/internal/models"
)

func TestIdentify_BindsAnonymousHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.identity.Track(ctx, TrackInput{
		CompanyID: h.company,
		SessionID: "s1",
		Events:    []models.Event{{EventType: "page_view"}, {EventType: "add_to_cart"}},
	})
	require.NoError(t, err)
	_, err = h.identity.Track(ctx, TrackInput{
		CompanyID: h.company,
		SessionID: "s1",
		Events:    []models.Event{{EventType: "checkout"}},
	})
	require.NoError(t, err)

	res, err := h.identity.Identify(ctx, IdentifyInput{
		CompanyID: h.company, SessionID: "s1", Email: "Ana@Example.com", Name: "Ana",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.EqualValues(t, 2, res.Bound)
	assert.Equal(t, "ana@example.com", res.Profile.Email)

	detail, err := h.identity.GetProfile(ctx, h.company, res.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Events, 2)
}

func TestIdentify_NoHistoryIsNotAnError(t *testing.T) {
	h := newHarness(t)

	res, err := h.identity.Identify(context.Background(), IdentifyInput{
		CompanyID: h.company, SessionID: "fresh", Email: "new@example.com",
	})
	require.NoError(t, err)
	assert.Zero(t, res.Bound)
}

func TestIdentify_BinderLeavesOtherOwnersAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.identity.Track(ctx, TrackInput{CompanyID: h.company, SessionID: "shared", Events: []models.Event{{EventType: "view"}}})
	require.NoError(t, err)
	x, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "shared", Email: "x@example.com"})
	require.NoError(t, err)

	// Append an unbound record directly, as if it arrived before X's binding
	// took effect on this document.
	_, err = h.db.Events().Append(ctx, &models.SessionEvents{CompanyID: h.company, SessionID: "shared"})
	require.NoError(t, err)

	y, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "shared", Email: "y@example.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, y.Bound)

	recs, err := h.db.Events().ListBySession(ctx, h.company, "shared")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, x.Profile.ID, *recs[0].UserID)
	assert.Equal(t, y.Profile.ID, *recs[1].UserID)
}

func TestIdentify_DuplicateEmailUpdatesProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "a", Email: "dup@example.com", Name: "Old"})
	require.NoError(t, err)
	second, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "b", Email: "dup@example.com", Name: "New", Phone: "123"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Profile.ID, second.Profile.ID)
	assert.Equal(t, "New", second.Profile.Name)
	assert.Equal(t, "123", second.Profile.Phone)
}

func TestIdentify_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "s", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "s", Email: "Ana <ana@example.com>"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, Email: "a@b.co"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.identity.Track(ctx, TrackInput{CompanyID: h.company, SessionID: "s"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.identity.Track(ctx, TrackInput{SessionID: "s", Events: []models.Event{{EventType: "x"}}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTrack_BoundSessionBindsAndTouches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "s", Email: "t@example.com"})
	require.NoError(t, err)
	before := res.Profile.LastActive

	rec, err := h.identity.Track(ctx, TrackInput{CompanyID: h.company, SessionID: "s", Events: []models.Event{{EventType: "view"}}})
	require.NoError(t, err)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, res.Profile.ID, *rec.UserID)

	p, err := h.db.Profiles().GetByID(ctx, h.company, res.Profile.ID)
	require.NoError(t, err)
	assert.True(t, p.LastActive.After(before))
}

func TestIdentify_ListMarkerAppliesListTags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	vip := h.tag(t, "vip")
	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "VIPs", TagIDs: []uuid.UUID{vip.ID}})
	require.NoError(t, err)

	res, err := h.identity.Identify(ctx, IdentifyInput{CompanyID: h.company, SessionID: "s", Email: "m@example.com", ListID: l.ListID})
	require.NoError(t, err)
	assert.Equal(t, []string{l.ListID}, res.Profile.ListIDs)

	tags, err := h.tags.TagsForProfile(ctx, h.company, res.Profile.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, models.AddedByEvent, tags[0].AddedBy)

	refreshed, err := h.lists.Get(ctx, h.company, l.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refreshed.ProfileCount)
}

func TestGetProfile_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.identity.GetProfile(context.Background(), h.company, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
