// Package memory implements the repository interfaces over in-process
// maps. It backs STORAGE=memory for local runs and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
)

type assocKey struct {
	profileID uuid.UUID
	tagID     uuid.UUID
	companyID uuid.UUID
}

type sessionKey struct {
	companyID uuid.UUID
	sessionID string
}

// DB is the shared state behind every memory store. One mutex guards all
// of it, which is what makes conditional updates atomic here.
type DB struct {
	mu sync.RWMutex

	now func() time.Time

	companies map[uuid.UUID]models.Company
	operators map[uuid.UUID]models.Operator
	profiles  map[uuid.UUID]models.Profile
	events    []models.SessionEvents
	owners    map[sessionKey]uuid.UUID
	tags      map[uuid.UUID]models.Tag
	assocs    map[assocKey]models.ProfileTag
	// assocOrder keeps insertion order so evaluation is deterministic.
	assocOrder []assocKey
	lists      map[uuid.UUID]models.List
	campaigns  map[uuid.UUID]models.Campaign
	rules      map[uuid.UUID]models.TagRule
}

func New() *DB {
	return &DB{
		now:       time.Now,
		companies: make(map[uuid.UUID]models.Company),
		operators: make(map[uuid.UUID]models.Operator),
		profiles:  make(map[uuid.UUID]models.Profile),
		owners:    make(map[sessionKey]uuid.UUID),
		tags:      make(map[uuid.UUID]models.Tag),
		assocs:    make(map[assocKey]models.ProfileTag),
		lists:     make(map[uuid.UUID]models.List),
		campaigns: make(map[uuid.UUID]models.Campaign),
		rules:     make(map[uuid.UUID]models.TagRule),
	}
}

// SetClock replaces the time source. Tests use it to order profiles by
// recency deterministically.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) Companies() *CompanyStore { return &CompanyStore{db: db} }
func (db *DB) Operators() *OperatorStore { return &OperatorStore{db: db} }
func (db *DB) Profiles() *ProfileStore { return &ProfileStore{db: db} }
func (db *DB) Events() *EventStore { return &EventStore{db: db} }
func (db *DB) Tags() *TagStore { return &TagStore{db: db} }
func (db *DB) ProfileTags() *ProfileTagStore { return &ProfileTagStore{db: db} }
func (db *DB) Lists() *ListStore { return &ListStore{db: db} }
func (db *DB) Campaigns() *CampaignStore { return &CampaignStore{db: db} }
func (db *DB) Rules() *RuleStore { return &RuleStore{db: db} }

func cloneProfile(p models.Profile) models.Profile {
	p.ListIDs = append([]string{}, p.ListIDs...)
	return p
}

func cloneList(l models.List) models.List {
	l.TagIDs = append([]uuid.UUID{}, l.TagIDs...)
	return l
}

func cloneSessionEvents(rec models.SessionEvents) models.SessionEvents {
	if rec.UserID != nil {
		id := *rec.UserID
		rec.UserID = &id
	}
	rec.Events = append([]models.Event{}, rec.Events...)
	return rec
}

func cloneCampaign(c models.Campaign) models.Campaign {
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		c.ScheduledAt = &t
	}
	if c.SentAt != nil {
		t := *c.SentAt
		c.SentAt = &t
	}
	return c
}
