package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/observ"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// Refresher recomputes the cached profile_count on tags and lists. Nothing
// invalidates those caches automatically: every operation that changes
// associations or a list definition calls in here afterwards.
type Refresher struct {
	tags   repository.TagRepository
	assocs repository.ProfileTagRepository
	lists  repository.ListRepository
	logger *zap.Logger
}

func NewRefresher(
	tags repository.TagRepository,
	assocs repository.ProfileTagRepository,
	lists repository.ListRepository,
	logger *zap.Logger,
) *Refresher {
	return &Refresher{tags: tags, assocs: assocs, lists: lists, logger: logger}
}

func (r *Refresher) RefreshTag(ctx context.Context, companyID, tagID uuid.UUID) (int64, error) {
	n, err := r.assocs.CountWithTag(ctx, companyID, tagID)
	if err != nil {
		return 0, fmt.Errorf("count tag %s: %w", tagID, err)
	}
	if err := r.tags.SetProfileCount(ctx, companyID, tagID, n); err != nil {
		return 0, fmt.Errorf("store tag count %s: %w", tagID, err)
	}
	observ.ObserveCountRefresh("tag")
	return n, nil
}

func (r *Refresher) RefreshList(ctx context.Context, l *models.List) (int64, error) {
	n, err := r.assocs.CountMatching(ctx, l.CompanyID, l.TagIDs, l.TagLogic)
	if err != nil {
		return 0, fmt.Errorf("count list %s: %w", l.ID, err)
	}
	if err := r.lists.SetProfileCount(ctx, l.CompanyID, l.ID, n); err != nil {
		return 0, fmt.Errorf("store list count %s: %w", l.ID, err)
	}
	l.ProfileCount = n
	observ.ObserveCountRefresh("list")
	return n, nil
}

// RefreshTags refreshes each tag and then every list whose definition
// references any of them.
func (r *Refresher) RefreshTags(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	for _, id := range tagIDs {
		if _, err := r.RefreshTag(ctx, companyID, id); err != nil {
			return err
		}
	}
	lists, err := r.lists.ListReferencingTags(ctx, companyID, tagIDs)
	if err != nil {
		return fmt.Errorf("lists referencing tags: %w", err)
	}
	for i := range lists {
		if _, err := r.RefreshList(ctx, &lists[i]); err != nil {
			return err
		}
	}
	return nil
}

// refreshQuietly is for paths where the mutation already succeeded and a
// stale count must not turn the response into an error.
func (r *Refresher) refreshQuietly(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID) {
	if err := r.RefreshTags(ctx, companyID, tagIDs); err != nil {
		r.logger.Warn("count refresh failed",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	}
}
