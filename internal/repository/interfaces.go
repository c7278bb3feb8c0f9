package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
)

// Conventions shared by every store:
//   - ctx first, companyID second. Every read and write is filtered by
//     company so an ID from another tenant behaves exactly like a missing one.
//   - Lookups return nil, nil when nothing matches. Callers decide whether
//     that is a 404 or a no-op.
//   - Slices come back empty, never nil, so JSON renders [].

// ErrDuplicate is returned when an insert collides with a uniqueness
// constraint the caller is expected to handle (tag name, list short id,
// operator email).
var ErrDuplicate = errors.New("duplicate key")

type CompanyRepository interface {
	Create(ctx context.Context, name string) (*models.Company, error)
}

type OperatorRepository interface {
	Create(ctx context.Context, companyID uuid.UUID, email, displayName, passwordHash string) (*models.Operator, error)
	GetByID(ctx context.Context, companyID uuid.UUID, operatorID uuid.UUID) (*models.Operator, error)

	// GetByEmail is global, not company-scoped: it backs login.
	GetByEmail(ctx context.Context, email string) (*models.Operator, error)
}

type ProfileRepository interface {
	// Upsert creates the profile or, when (company, email) already exists,
	// refreshes name/phone (when non-empty), appends any new list markers
	// and bumps last_active. created reports which branch ran.
	Upsert(ctx context.Context, p *models.Profile) (profile *models.Profile, created bool, err error)

	GetByID(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID) (*models.Profile, error)

	// List returns profiles most recently active first.
	List(ctx context.Context, companyID uuid.UUID, limit, skip int) ([]models.Profile, error)

	// IDsWithListMarker returns profiles carrying the legacy short list id.
	IDsWithListMarker(ctx context.Context, companyID uuid.UUID, listID string) ([]uuid.UUID, error)

	// Touch moves last_active forward. It never moves it backwards.
	Touch(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID, at time.Time) error
}

type EventRepository interface {
	Append(ctx context.Context, rec *models.SessionEvents) (*models.SessionEvents, error)

	// BindSession sets user_id on every record of the session whose user_id
	// is still null. Records already bound are left alone. Returns how many
	// records were updated; zero matches is not an error. It also claims the
	// session for the profile when no profile owns it yet, even if no
	// records matched.
	BindSession(ctx context.Context, companyID uuid.UUID, sessionID string, profileID uuid.UUID) (int64, error)

	// BoundProfile returns the profile that owns the session, or nil if the
	// session is still anonymous.
	BoundProfile(ctx context.Context, companyID uuid.UUID, sessionID string) (*uuid.UUID, error)

	ListBySession(ctx context.Context, companyID uuid.UUID, sessionID string) ([]models.SessionEvents, error)
	ListByProfile(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID, limit int) ([]models.SessionEvents, error)
}

type TagRepository interface {
	// Create returns ErrDuplicate if the name is taken within the company.
	Create(ctx context.Context, t *models.Tag) (*models.Tag, error)
	GetByID(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (*models.Tag, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Tag, error)

	// Update writes name, color and description. Returns nil, nil if absent
	// and ErrDuplicate on a name clash.
	Update(ctx context.Context, t *models.Tag) (*models.Tag, error)

	// Delete removes the tag row only; callers clear associations first.
	Delete(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (bool, error)

	SetProfileCount(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID, count int64) error
}

// ProfileTagRepository owns the profile_tags join table and the set queries
// lists are evaluated with.
type ProfileTagRepository interface {
	// Add inserts the association or returns the existing one untouched.
	// created is false on the idempotent path.
	Add(ctx context.Context, pt models.ProfileTag) (assoc *models.ProfileTag, created bool, err error)

	// Remove deletes and returns the association, or nil, nil if none existed.
	Remove(ctx context.Context, companyID, profileID, tagID uuid.UUID) (*models.ProfileTag, error)

	// BulkAdd inserts the cross product of profileIDs x tagIDs, skipping
	// pairs that already exist. Returns how many rows were new.
	BulkAdd(ctx context.Context, companyID uuid.UUID, profileIDs, tagIDs []uuid.UUID, addedBy models.AddedBy) (int64, error)

	ListByProfile(ctx context.Context, companyID uuid.UUID, profileID uuid.UUID) ([]models.ProfileTag, error)

	// DeleteByTag removes every association of a tag.
	DeleteByTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error)

	// CountWithTag is the authoritative count behind Tag.ProfileCount.
	CountWithTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error)

	// MatchProfiles returns the profiles satisfying logic over tagIDs,
	// most recently active first. limit <= 0 means no cap. An empty tagIDs
	// matches nobody.
	MatchProfiles(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic, limit, skip int) ([]models.Profile, error)

	// CountMatching is len(MatchProfiles) without materializing profiles.
	CountMatching(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic) (int64, error)
}

type ListRepository interface {
	// Create returns ErrDuplicate if the short list id is already taken.
	Create(ctx context.Context, l *models.List) (*models.List, error)
	GetByID(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*models.List, error)
	GetByListID(ctx context.Context, companyID uuid.UUID, listID string) (*models.List, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.List, error)

	// Update writes name, description, tags, tag logic and status.
	Update(ctx context.Context, l *models.List) (*models.List, error)
	Delete(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error)

	SetProfileCount(ctx context.Context, companyID uuid.UUID, id uuid.UUID, count int64) error

	// ListReferencingTags returns lists whose tags intersect tagIDs.
	ListReferencingTags(ctx context.Context, companyID uuid.UUID, tagIDs []uuid.UUID) ([]models.List, error)

	// RemoveTagReference strips tagID from every list and returns the ids
	// of the lists that changed.
	RemoveTagReference(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) ([]uuid.UUID, error)
}

// TransitionPatch carries the columns a status transition may set.
type TransitionPatch struct {
	ScheduledAt *time.Time
	SentAt      *time.Time
	LastError   *string
}

type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error)
	GetByID(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*models.Campaign, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Campaign, error)

	// UpdateContent rewrites name and content only while the campaign is a
	// draft. ok is false if it is missing or no longer a draft.
	UpdateContent(ctx context.Context, c *models.Campaign) (ok bool, err error)

	// DeleteDraft removes the campaign only while it is a draft.
	DeleteDraft(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error)

	// Transition moves the campaign to `to` only if its current status is
	// one of from. The check and the write are a single atomic step, which
	// is what keeps two send pipelines from starting for one campaign.
	Transition(ctx context.Context, companyID uuid.UUID, id uuid.UUID, from []models.CampaignStatus, to models.CampaignStatus, patch TransitionPatch) (bool, error)

	SetTotalRecipients(ctx context.Context, companyID uuid.UUID, id uuid.UUID, total int64) error

	// IncrementStats adds delta to the counters atomically (x = x + n), so
	// readers polling mid-send never observe a torn update.
	IncrementStats(ctx context.Context, companyID uuid.UUID, id uuid.UUID, delta models.CampaignStats) error

	// ListDue returns scheduled campaigns across all companies whose
	// scheduled time is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error)
}

type RuleRepository interface {
	Create(ctx context.Context, r *models.TagRule) (*models.TagRule, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.TagRule, error)
	ListEnabled(ctx context.Context, companyID uuid.UUID) ([]models.TagRule, error)
	Delete(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error)
	DeleteByTag(ctx context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error)
}
