package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// TagService manages tags and profile-tag associations.
type TagService struct {
	tags      repository.TagRepository
	assocs    repository.ProfileTagRepository
	lists     repository.ListRepository
	rules     repository.RuleRepository
	profiles  repository.ProfileRepository
	refresher *Refresher
	logger    *zap.Logger
}

func NewTagService(
	tags repository.TagRepository,
	assocs repository.ProfileTagRepository,
	lists repository.ListRepository,
	rules repository.RuleRepository,
	profiles repository.ProfileRepository,
	refresher *Refresher,
	logger *zap.Logger,
) *TagService {
	return &TagService{
		tags:      tags,
		assocs:    assocs,
		lists:     lists,
		rules:     rules,
		profiles:  profiles,
		refresher: refresher,
		logger:    logger,
	}
}

type TagInput struct {
	Name        string
	Color       string
	Description string
}

func (in *TagInput) normalize(op string) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return invalid(op, "name is required")
	}
	return nil
}

func (s *TagService) Create(ctx context.Context, companyID uuid.UUID, in TagInput) (*models.Tag, error) {
	const op = "tags.create"
	if err := in.normalize(op); err != nil {
		return nil, err
	}
	t, err := s.tags.Create(ctx, &models.Tag{
		CompanyID:   companyID,
		Name:        in.Name,
		Color:       in.Color,
		Description: in.Description,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict(op, "tag %q already exists", in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}

func (s *TagService) Get(ctx context.Context, companyID, tagID uuid.UUID) (*models.Tag, error) {
	t, err := s.tags.GetByID(ctx, companyID, tagID)
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if t == nil {
		return nil, notFound("tags.get", "tag")
	}
	return t, nil
}

func (s *TagService) List(ctx context.Context, companyID uuid.UUID) ([]models.Tag, error) {
	return s.tags.ListByCompany(ctx, companyID)
}

func (s *TagService) Update(ctx context.Context, companyID, tagID uuid.UUID, in TagInput) (*models.Tag, error) {
	const op = "tags.update"
	if err := in.normalize(op); err != nil {
		return nil, err
	}
	t, err := s.tags.Update(ctx, &models.Tag{
		ID:          tagID,
		CompanyID:   companyID,
		Name:        in.Name,
		Color:       in.Color,
		Description: in.Description,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict(op, "tag %q already exists", in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	if t == nil {
		return nil, notFound(op, "tag")
	}
	return t, nil
}

// Delete removes a tag together with everything that points at it: its
// associations, its automation rules and its place in list definitions.
// Lists that lost the tag get their counts refreshed.
func (s *TagService) Delete(ctx context.Context, companyID, tagID uuid.UUID) error {
	const op = "tags.delete"

	t, err := s.tags.GetByID(ctx, companyID, tagID)
	if err != nil {
		return fmt.Errorf("get tag: %w", err)
	}
	if t == nil {
		return notFound(op, "tag")
	}

	removed, err := s.assocs.DeleteByTag(ctx, companyID, tagID)
	if err != nil {
		return fmt.Errorf("delete tag associations: %w", err)
	}
	if _, err := s.rules.DeleteByTag(ctx, companyID, tagID); err != nil {
		return fmt.Errorf("delete tag rules: %w", err)
	}
	changed, err := s.lists.RemoveTagReference(ctx, companyID, tagID)
	if err != nil {
		return fmt.Errorf("remove tag from lists: %w", err)
	}
	if _, err := s.tags.Delete(ctx, companyID, tagID); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	for _, id := range changed {
		l, err := s.lists.GetByID(ctx, companyID, id)
		if err != nil || l == nil {
			continue
		}
		if _, err := s.refresher.RefreshList(ctx, l); err != nil {
			s.logger.Warn("refresh list after tag delete", zap.String("list_id", id.String()), zap.Error(err))
		}
	}

	s.logger.Info("tag deleted",
		zap.String("tag_id", tagID.String()),
		zap.Int64("associations", removed),
		zap.Int("lists", len(changed)),
	)
	return nil
}

// AddTag associates a tag with a profile. Adding a pair that already exists
// returns the original association with created=false.
func (s *TagService) AddTag(ctx context.Context, companyID, profileID, tagID uuid.UUID, addedBy models.AddedBy, metadata map[string]any) (*models.ProfileTag, bool, error) {
	const op = "tags.add"

	if addedBy == "" {
		addedBy = models.AddedByManual
	}
	if !addedBy.Valid() {
		return nil, false, invalid(op, "added_by %q is not one of manual, automation, api, event", addedBy)
	}
	if err := s.requireProfileAndTag(ctx, op, companyID, profileID, tagID); err != nil {
		return nil, false, err
	}

	pt, created, err := s.assocs.Add(ctx, models.ProfileTag{
		ProfileID: profileID,
		TagID:     tagID,
		CompanyID: companyID,
		AddedBy:   addedBy,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, false, fmt.Errorf("add tag: %w", err)
	}
	if created {
		s.refresher.refreshQuietly(ctx, companyID, []uuid.UUID{tagID})
	}
	return pt, created, nil
}

func (s *TagService) RemoveTag(ctx context.Context, companyID, profileID, tagID uuid.UUID) error {
	pt, err := s.assocs.Remove(ctx, companyID, profileID, tagID)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if pt == nil {
		return notFound("tags.remove", "tag association")
	}
	s.refresher.refreshQuietly(ctx, companyID, []uuid.UUID{tagID})
	return nil
}

// BulkAdd tags every profile with every tag. Existing pairs are skipped
// without failing the batch. Returns the number of new associations.
func (s *TagService) BulkAdd(ctx context.Context, companyID uuid.UUID, profileIDs, tagIDs []uuid.UUID, addedBy models.AddedBy) (int64, error) {
	const op = "tags.bulk_add"

	if len(profileIDs) == 0 || len(tagIDs) == 0 {
		return 0, invalid(op, "profile_ids and tag_ids must both be non-empty")
	}
	if addedBy == "" {
		addedBy = models.AddedByAPI
	}
	if !addedBy.Valid() {
		return 0, invalid(op, "added_by %q is not one of manual, automation, api, event", addedBy)
	}

	n, err := s.assocs.BulkAdd(ctx, companyID, dedupIDs(profileIDs), dedupIDs(tagIDs), addedBy)
	if err != nil {
		return 0, fmt.Errorf("bulk add: %w", err)
	}
	if n > 0 {
		s.refresher.refreshQuietly(ctx, companyID, dedupIDs(tagIDs))
	}
	return n, nil
}

func (s *TagService) CountWithTag(ctx context.Context, companyID, tagID uuid.UUID) (int64, error) {
	return s.assocs.CountWithTag(ctx, companyID, tagID)
}

func (s *TagService) TagsForProfile(ctx context.Context, companyID, profileID uuid.UUID) ([]models.ProfileTag, error) {
	p, err := s.profiles.GetByID(ctx, companyID, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, notFound("tags.for_profile", "profile")
	}
	return s.assocs.ListByProfile(ctx, companyID, profileID)
}

func (s *TagService) ProfilesWithTag(ctx context.Context, companyID, tagID uuid.UUID, limit, skip int) ([]models.Profile, error) {
	if _, err := s.Get(ctx, companyID, tagID); err != nil {
		return nil, err
	}
	return s.assocs.MatchProfiles(ctx, companyID, []uuid.UUID{tagID}, models.TagLogicAny, clampLimit(limit), max(skip, 0))
}

func (s *TagService) requireProfileAndTag(ctx context.Context, op string, companyID, profileID, tagID uuid.UUID) error {
	p, err := s.profiles.GetByID(ctx, companyID, profileID)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return notFound(op, "profile")
	}
	t, err := s.tags.GetByID(ctx, companyID, tagID)
	if err != nil {
		return fmt.Errorf("get tag: %w", err)
	}
	if t == nil {
		return notFound(op, "tag")
	}
	return nil
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
