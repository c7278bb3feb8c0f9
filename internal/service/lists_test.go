package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/cdpcore/internal/models"
)

func TestListMembership_AnyVersusAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.tag(t, "a"), h.tag(t, "b")
	p1, p2, p3 := h.profile(t, "p1@example.com"), h.profile(t, "p2@example.com"), h.profile(t, "p3@example.com")
	h.addTag(t, p1, a)
	h.addTag(t, p2, a)
	h.addTag(t, p2, b)
	h.addTag(t, p3, b)

	anyList, err := h.lists.Create(ctx, h.company, ListInput{Name: "any", TagIDs: []uuid.UUID{a.ID, b.ID}, TagLogic: models.TagLogicAny})
	require.NoError(t, err)
	allList, err := h.lists.Create(ctx, h.company, ListInput{Name: "all", TagIDs: []uuid.UUID{a.ID, b.ID}, TagLogic: models.TagLogicAll})
	require.NoError(t, err)

	assert.EqualValues(t, 3, anyList.ProfileCount)
	assert.EqualValues(t, 1, allList.ProfileCount)

	members, err := h.lists.AllMembers(ctx, h.company, anyList.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	members, err = h.lists.AllMembers(ctx, h.company, allList.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, p2.ID, members[0].ID)
}

func TestList_EmptyTagSetIsVacuous(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.profile(t, "p@example.com")
	h.addTag(t, p, h.tag(t, "a"))

	for _, logic := range []models.TagLogic{models.TagLogicAny, models.TagLogicAll} {
		l, err := h.lists.Create(ctx, h.company, ListInput{Name: "empty-" + string(logic), TagLogic: logic})
		require.NoError(t, err)
		assert.Zero(t, l.ProfileCount)

		members, err := h.lists.AllMembers(ctx, h.company, l.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
	}
}

func TestListCreate_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.lists.Create(ctx, h.company, ListInput{Name: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.lists.Create(ctx, h.company, ListInput{Name: "x", TagLogic: "some"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.lists.Create(ctx, h.company, ListInput{Name: "x", TagIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListCreate_RetriesShortIDCollision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	ids := []string{"taken00000", "taken00000", "fresh00000"}
	h.lists.genID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	first, err := h.lists.Create(ctx, h.company, ListInput{Name: "one"})
	require.NoError(t, err)
	second, err := h.lists.Create(ctx, h.company, ListInput{Name: "two"})
	require.NoError(t, err)

	assert.Equal(t, "taken00000", first.ListID)
	assert.Equal(t, "fresh00000", second.ListID)
}

func TestListCreate_GeneratorError(t *testing.T) {
	h := newHarness(t)
	h.lists.genID = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := h.lists.Create(context.Background(), h.company, ListInput{Name: "x"})
	assert.Error(t, err)
}

func TestListUpdate_TagChangeRefreshesCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.tag(t, "a"), h.tag(t, "b")
	p := h.profile(t, "p@example.com")
	h.addTag(t, p, b)

	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "l", TagIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)
	assert.Zero(t, l.ProfileCount)

	updated, err := h.lists.Update(ctx, h.company, l.ID, ListPatch{SetTags: true, TagIDs: []uuid.UUID{a.ID, b.ID, b.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, updated.TagIDs)
	assert.EqualValues(t, 1, updated.ProfileCount)

	all := models.TagLogicAll
	updated, err = h.lists.Update(ctx, h.company, l.ID, ListPatch{TagLogic: &all})
	require.NoError(t, err)
	assert.Zero(t, updated.ProfileCount)

	archived, err := h.lists.Archive(ctx, h.company, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListStatusArchived, archived.Status)
}

func TestAssociationChangeRefreshesReferencingLists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.tag(t, "a")
	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "l", TagIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)

	h.addTag(t, h.profile(t, "p@example.com"), a)

	got, err := h.lists.Get(ctx, h.company, l.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ProfileCount)
}

func TestGetMembers_Paginates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.tag(t, "a")
	var profiles []*models.Profile
	for _, e := range []string{"1@x.io", "2@x.io", "3@x.io"} {
		p := h.profile(t, e)
		h.addTag(t, p, a)
		profiles = append(profiles, p)
	}
	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "l", TagIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)

	page, err := h.lists.GetMembers(ctx, h.company, l.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, profiles[1].ID, page[0].ID)
	assert.Equal(t, profiles[0].ID, page[1].ID)
}

func TestSyncListTags_RepairsMarkedProfiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.tag(t, "a"), h.tag(t, "b")

	l, err := h.lists.Create(ctx, h.company, ListInput{Name: "l", TagIDs: []uuid.UUID{a.ID, b.ID}, TagLogic: models.TagLogicAll})
	require.NoError(t, err)

	// Profiles that arrived with the marker before the list had any tags
	// wiring, simulated by writing the marker directly.
	for _, e := range []string{"m1@x.io", "m2@x.io"} {
		_, _, err := h.db.Profiles().Upsert(ctx, &models.Profile{CompanyID: h.company, Email: e, ListIDs: []string{l.ListID}})
		require.NoError(t, err)
	}
	h.profile(t, "unmarked@x.io")

	res, err := h.lists.SyncListTags(ctx, h.company, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profiles)
	assert.EqualValues(t, 4, res.Added)
	assert.EqualValues(t, 2, res.ProfileCount)

	tag, err := h.tags.Get(ctx, h.company, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tag.ProfileCount)

	// Running it again changes nothing.
	res, err = h.lists.SyncListTags(ctx, h.company, l.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
}
