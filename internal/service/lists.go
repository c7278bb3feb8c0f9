package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
)

const (
	listIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	listIDSize     = 10
	listIDAttempts = 3
)

func newListID() (string, error) {
	return gonanoid.Generate(listIDAlphabet, listIDSize)
}

// ListService manages list definitions and evaluates their membership.
type ListService struct {
	lists     repository.ListRepository
	tags      repository.TagRepository
	assocs    repository.ProfileTagRepository
	profiles  repository.ProfileRepository
	refresher *Refresher
	genID     func() (string, error)
	logger    *zap.Logger
}

func NewListService(
	lists repository.ListRepository,
	tags repository.TagRepository,
	assocs repository.ProfileTagRepository,
	profiles repository.ProfileRepository,
	refresher *Refresher,
	logger *zap.Logger,
) *ListService {
	return &ListService{
		lists:     lists,
		tags:      tags,
		assocs:    assocs,
		profiles:  profiles,
		refresher: refresher,
		genID:     newListID,
		logger:    logger,
	}
}

type ListInput struct {
	Name        string
	Description string
	TagIDs      []uuid.UUID
	TagLogic    models.TagLogic
}

// ListPatch carries optional changes; nil fields are left alone.
type ListPatch struct {
	Name        *string
	Description *string
	TagIDs      []uuid.UUID
	SetTags     bool
	TagLogic    *models.TagLogic
	Status      *models.ListStatus
}

func (s *ListService) checkTags(ctx context.Context, op string, companyID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		t, err := s.tags.GetByID(ctx, companyID, id)
		if err != nil {
			return fmt.Errorf("get tag: %w", err)
		}
		if t == nil {
			return invalid(op, "tag %s does not exist", id)
		}
	}
	return nil
}

func (s *ListService) Create(ctx context.Context, companyID uuid.UUID, in ListInput) (*models.List, error) {
	const op = "lists.create"

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid(op, "name is required")
	}
	if in.TagLogic == "" {
		in.TagLogic = models.TagLogicAny
	}
	if !in.TagLogic.Valid() {
		return nil, invalid(op, "tag_logic must be any or all")
	}
	tagIDs := dedupIDs(in.TagIDs)
	if err := s.checkTags(ctx, op, companyID, tagIDs); err != nil {
		return nil, err
	}

	var (
		l   *models.List
		err error
	)
	for attempt := 0; attempt < listIDAttempts; attempt++ {
		var short string
		short, err = s.genID()
		if err != nil {
			return nil, fmt.Errorf("generate list id: %w", err)
		}
		l, err = s.lists.Create(ctx, &models.List{
			ListID:      short,
			CompanyID:   companyID,
			Name:        in.Name,
			Description: strings.TrimSpace(in.Description),
			TagIDs:      tagIDs,
			TagLogic:    in.TagLogic,
			Status:      models.ListStatusActive,
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}

	if _, err := s.refresher.RefreshList(ctx, l); err != nil {
		s.logger.Warn("refresh new list", zap.String("list_id", l.ListID), zap.Error(err))
	}
	return l, nil
}

func (s *ListService) Get(ctx context.Context, companyID, id uuid.UUID) (*models.List, error) {
	l, err := s.lists.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	if l == nil {
		return nil, notFound("lists.get", "list")
	}
	return l, nil
}

func (s *ListService) List(ctx context.Context, companyID uuid.UUID) ([]models.List, error) {
	return s.lists.ListByCompany(ctx, companyID)
}

// Update applies patch. Any change to tags or tag logic refreshes the
// cached count before returning.
func (s *ListService) Update(ctx context.Context, companyID, id uuid.UUID, patch ListPatch) (*models.List, error) {
	const op = "lists.update"

	l, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid(op, "name must not be empty")
		}
		l.Name = name
	}
	if patch.Description != nil {
		l.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.TagLogic != nil {
		if !patch.TagLogic.Valid() {
			return nil, invalid(op, "tag_logic must be any or all")
		}
		l.TagLogic = *patch.TagLogic
	}
	if patch.Status != nil {
		if *patch.Status != models.ListStatusActive && *patch.Status != models.ListStatusArchived {
			return nil, invalid(op, "status must be active or archived")
		}
		l.Status = *patch.Status
	}
	if patch.SetTags {
		tagIDs := dedupIDs(patch.TagIDs)
		if err := s.checkTags(ctx, op, companyID, tagIDs); err != nil {
			return nil, err
		}
		l.TagIDs = tagIDs
	}

	updated, err := s.lists.Update(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	if updated == nil {
		return nil, notFound(op, "list")
	}
	if patch.SetTags || patch.TagLogic != nil {
		if _, err := s.refresher.RefreshList(ctx, updated); err != nil {
			s.logger.Warn("refresh updated list", zap.String("list_id", updated.ListID), zap.Error(err))
		}
	}
	return updated, nil
}

func (s *ListService) Archive(ctx context.Context, companyID, id uuid.UUID) (*models.List, error) {
	archived := models.ListStatusArchived
	return s.Update(ctx, companyID, id, ListPatch{Status: &archived})
}

func (s *ListService) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	ok, err := s.lists.Delete(ctx, companyID, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if !ok {
		return notFound("lists.delete", "list")
	}
	return nil
}

// RefreshCount recomputes the list's membership size and stores it.
func (s *ListService) RefreshCount(ctx context.Context, companyID, id uuid.UUID) (int64, error) {
	l, err := s.Get(ctx, companyID, id)
	if err != nil {
		return 0, err
	}
	return s.refresher.RefreshList(ctx, l)
}

// GetMembers returns one page of current membership, most recently active
// first.
func (s *ListService) GetMembers(ctx context.Context, companyID, id uuid.UUID, limit, skip int) ([]models.Profile, error) {
	l, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return s.assocs.MatchProfiles(ctx, companyID, l.TagIDs, l.TagLogic, clampLimit(limit), max(skip, 0))
}

// AllMembers materializes the whole membership with no page cap. It is the
// campaign recipient source.
func (s *ListService) AllMembers(ctx context.Context, companyID, id uuid.UUID) ([]models.Profile, error) {
	l, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return s.assocs.MatchProfiles(ctx, companyID, l.TagIDs, l.TagLogic, 0, 0)
}

type SyncResult struct {
	Profiles     int   `json:"profiles"`
	Added        int64 `json:"associations_added"`
	ProfileCount int64 `json:"profile_count"`
}

// SyncListTags repairs profiles that carry the list's legacy short id
// marker but never received the list's tags.
func (s *ListService) SyncListTags(ctx context.Context, companyID, id uuid.UUID) (*SyncResult, error) {
	l, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	ids, err := s.profiles.IDsWithListMarker(ctx, companyID, l.ListID)
	if err != nil {
		return nil, fmt.Errorf("profiles with marker: %w", err)
	}
	res := &SyncResult{Profiles: len(ids)}

	if len(ids) > 0 && len(l.TagIDs) > 0 {
		res.Added, err = s.assocs.BulkAdd(ctx, companyID, ids, l.TagIDs, models.AddedByEvent)
		if err != nil {
			return nil, fmt.Errorf("bulk add list tags: %w", err)
		}
	}
	if err := s.refresher.RefreshTags(ctx, companyID, l.TagIDs); err != nil {
		return nil, err
	}
	res.ProfileCount, err = s.refresher.RefreshList(ctx, l)
	if err != nil {
		return nil, err
	}

	s.logger.Info("list tags synced",
		zap.String("list_id", l.ListID),
		zap.Int("profiles", res.Profiles),
		zap.Int64("added", res.Added),
	)
	return res, nil
}
