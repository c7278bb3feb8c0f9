package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/observ"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// validate applies the same email rule gin's binding uses at the edge.
var validate = validator.New()

// Binder attaches a session's anonymous event records to a profile.
type Binder struct {
	events repository.EventRepository
	logger *zap.Logger
}

func NewBinder(events repository.EventRepository, logger *zap.Logger) *Binder {
	return &Binder{events: events, logger: logger}
}

// Bind sets the profile on every record of sessionID that is still
// anonymous. Records already bound to someone else keep their owner. No
// matching records is a successful no-op.
func (b *Binder) Bind(ctx context.Context, companyID uuid.UUID, sessionID string, profileID uuid.UUID) (int64, error) {
	n, err := b.events.BindSession(ctx, companyID, sessionID, profileID)
	if err != nil {
		return 0, fmt.Errorf("bind session %q: %w", sessionID, err)
	}
	observ.ObserveBind(n)
	if n > 0 {
		b.logger.Debug("session bound",
			zap.String("session_id", sessionID),
			zap.String("profile_id", profileID.String()),
			zap.Int64("records", n),
		)
	}
	return n, nil
}

// IdentityService owns event ingestion, identification and the profile
// read side.
type IdentityService struct {
	profiles  repository.ProfileRepository
	events    repository.EventRepository
	lists     repository.ListRepository
	assocs    repository.ProfileTagRepository
	binder    *Binder
	automator *RuleService
	refresher *Refresher
	now       func() time.Time
	logger    *zap.Logger
}

func NewIdentityService(
	profiles repository.ProfileRepository,
	events repository.EventRepository,
	lists repository.ListRepository,
	assocs repository.ProfileTagRepository,
	binder *Binder,
	automator *RuleService,
	refresher *Refresher,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		profiles:  profiles,
		events:    events,
		lists:     lists,
		assocs:    assocs,
		binder:    binder,
		automator: automator,
		refresher: refresher,
		now:       time.Now,
		logger:    logger,
	}
}

type TrackInput struct {
	CompanyID uuid.UUID
	SessionID string
	ListID    string
	Events    []models.Event
}

// Track appends a batch of events for a session. When the session already
// belongs to a profile the new record is bound straight away, the
// profile's last_active moves forward and automation rules run.
func (s *IdentityService) Track(ctx context.Context, in TrackInput) (*models.SessionEvents, error) {
	const op = "identity.track"

	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.CompanyID == uuid.Nil {
		return nil, invalid(op, "company_id is required")
	}
	if in.SessionID == "" {
		return nil, invalid(op, "sessionId is required")
	}
	if len(in.Events) == 0 {
		return nil, invalid(op, "at least one event is required")
	}

	now := s.now().UTC()
	latest := time.Time{}
	for i := range in.Events {
		if strings.TrimSpace(in.Events[i].EventType) == "" {
			return nil, invalid(op, "events[%d].eventType is required", i)
		}
		if in.Events[i].Timestamp.IsZero() {
			in.Events[i].Timestamp = now
		}
		if in.Events[i].Timestamp.After(latest) {
			latest = in.Events[i].Timestamp
		}
	}

	rec, err := s.events.Append(ctx, &models.SessionEvents{
		CompanyID: in.CompanyID,
		SessionID: in.SessionID,
		ListID:    strings.TrimSpace(in.ListID),
		Events:    in.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("append events: %w", err)
	}

	owner, err := s.events.BoundProfile(ctx, in.CompanyID, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("bound profile: %w", err)
	}
	if owner == nil {
		return rec, nil
	}

	log := s.logger.With(
		zap.String("session_id", in.SessionID),
		zap.String("profile_id", owner.String()),
	)
	if _, err := s.binder.Bind(ctx, in.CompanyID, in.SessionID, *owner); err != nil {
		log.Warn("bind on track failed", zap.Error(err))
	} else {
		rec.UserID = owner
	}
	if err := s.profiles.Touch(ctx, in.CompanyID, *owner, latest); err != nil {
		log.Warn("touch last_active failed", zap.Error(err))
	}
	if rec.ListID != "" {
		s.markList(ctx, in.CompanyID, *owner, rec.ListID)
	}
	if _, err := s.automator.Apply(ctx, in.CompanyID, *owner, in.SessionID, in.Events); err != nil {
		log.Warn("automation rules failed", zap.Error(err))
	}
	return rec, nil
}

type IdentifyInput struct {
	CompanyID uuid.UUID
	SessionID string
	Name      string
	Email     string
	Phone     string
	Source    string
	ListID    string
}

type IdentifyResult struct {
	Profile *models.Profile `json:"profile"`
	Created bool            `json:"created"`
	// Bound is how many anonymous session records were attached.
	Bound int64 `json:"bound"`
}

// Identify creates the profile for (company, email), or updates it when it
// already exists, then binds the session's anonymous history to it. A
// binder failure is logged and does not undo the profile write.
func (s *IdentityService) Identify(ctx context.Context, in IdentifyInput) (*IdentifyResult, error) {
	const op = "identity.identify"

	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ListID = strings.TrimSpace(in.ListID)
	if in.CompanyID == uuid.Nil {
		return nil, invalid(op, "company_id is required")
	}
	if in.SessionID == "" {
		return nil, invalid(op, "sessionId is required")
	}
	if in.Email == "" {
		return nil, invalid(op, "email is required")
	}
	if err := validate.Var(in.Email, "email"); err != nil {
		return nil, invalid(op, "email %q is not valid", in.Email)
	}

	candidate := &models.Profile{
		CompanyID: in.CompanyID,
		Name:      strings.TrimSpace(in.Name),
		Email:     in.Email,
		Phone:     strings.TrimSpace(in.Phone),
		Source:    strings.TrimSpace(in.Source),
	}
	if in.ListID != "" {
		candidate.ListIDs = []string{in.ListID}
	}

	profile, created, err := s.profiles.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	res := &IdentifyResult{Profile: profile, Created: created}

	log := s.logger.With(
		zap.String("session_id", in.SessionID),
		zap.String("profile_id", profile.ID.String()),
	)

	n, err := s.binder.Bind(ctx, in.CompanyID, in.SessionID, profile.ID)
	if err != nil {
		log.Error("binder failed, profile kept without history", zap.Error(err))
	}
	res.Bound = n

	if in.ListID != "" {
		s.markList(ctx, in.CompanyID, profile.ID, in.ListID)
	}
	if n > 0 {
		s.applyBacklog(ctx, in.CompanyID, profile.ID, in.SessionID)
	}

	log.Info("profile identified", zap.Bool("created", created), zap.Int64("bound", n))
	return res, nil
}

// markList gives the profile every tag of the list named by a tracking
// payload's short list id. An unknown list id is kept only as a marker.
func (s *IdentityService) markList(ctx context.Context, companyID, profileID uuid.UUID, listID string) {
	log := s.logger.With(zap.String("list_id", listID), zap.String("profile_id", profileID.String()))

	l, err := s.lists.GetByListID(ctx, companyID, listID)
	if err != nil {
		log.Warn("lookup list marker failed", zap.Error(err))
		return
	}
	if l == nil || len(l.TagIDs) == 0 {
		return
	}
	n, err := s.assocs.BulkAdd(ctx, companyID, []uuid.UUID{profileID}, l.TagIDs, models.AddedByEvent)
	if err != nil {
		log.Warn("apply list tags failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.refresher.refreshQuietly(ctx, companyID, l.TagIDs)
	}
}

// applyBacklog runs automation over the events just attached by the binder.
func (s *IdentityService) applyBacklog(ctx context.Context, companyID, profileID uuid.UUID, sessionID string) {
	recs, err := s.events.ListBySession(ctx, companyID, sessionID)
	if err != nil {
		s.logger.Warn("load session backlog failed", zap.Error(err))
		return
	}
	var events []models.Event
	for _, r := range recs {
		if r.UserID != nil && *r.UserID == profileID {
			events = append(events, r.Events...)
		}
	}
	if _, err := s.automator.Apply(ctx, companyID, profileID, sessionID, events); err != nil {
		s.logger.Warn("automation rules failed", zap.Error(err))
	}
}

func (s *IdentityService) ListProfiles(ctx context.Context, companyID uuid.UUID, limit, skip int) ([]models.Profile, error) {
	return s.profiles.List(ctx, companyID, clampLimit(limit), max(skip, 0))
}

// ProfileDetail is a profile with its tags and bound session history
// attached by explicit queries.
type ProfileDetail struct {
	models.Profile
	Tags   []models.ProfileTag    `json:"tags"`
	Events []models.SessionEvents `json:"sessions"`
}

// recentSessions caps how much history GetProfile attaches.
const recentSessions = 50

func (s *IdentityService) GetProfile(ctx context.Context, companyID, profileID uuid.UUID) (*ProfileDetail, error) {
	p, err := s.profiles.GetByID(ctx, companyID, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, notFound("identity.get_profile", "profile")
	}
	tags, err := s.assocs.ListByProfile(ctx, companyID, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile tags: %w", err)
	}
	events, err := s.events.ListByProfile(ctx, companyID, profileID, recentSessions)
	if err != nil {
		return nil, fmt.Errorf("profile events: %w", err)
	}
	return &ProfileDetail{Profile: *p, Tags: tags, Events: events}, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}
