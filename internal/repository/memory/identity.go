package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
	"github.com/lalith-99/cdpcore/internal/segment"
)

type CompanyStore struct{ db *DB }

func (s *CompanyStore) Create(_ context.Context, name string) (*models.Company, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c := models.Company{ID: uuid.New(), Name: name, CreatedAt: s.db.now()}
	s.db.companies[c.ID] = c
	return &c, nil
}

type OperatorStore struct{ db *DB }

func (s *OperatorStore) Create(_ context.Context, companyID uuid.UUID, email, displayName, passwordHash string) (*models.Operator, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, o := range s.db.operators {
		if o.Email == email {
			return nil, repository.ErrDuplicate
		}
	}
	o := models.Operator{
		ID:           uuid.New(),
		CompanyID:    companyID,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    s.db.now(),
	}
	s.db.operators[o.ID] = o
	return &o, nil
}

func (s *OperatorStore) GetByID(_ context.Context, companyID uuid.UUID, operatorID uuid.UUID) (*models.Operator, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	o, ok := s.db.operators[operatorID]
	if !ok || o.CompanyID != companyID {
		return nil, nil
	}
	return &o, nil
}

func (s *OperatorStore) GetByEmail(_ context.Context, email string) (*models.Operator, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, o := range s.db.operators {
		if o.Email == email {
			return &o, nil
		}
	}
	return nil, nil
}

type ProfileStore struct{ db *DB }

func (s *ProfileStore) Upsert(_ context.Context, in *models.Profile) (*models.Profile, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := s.db.now()
	for id, p := range s.db.profiles {
		if p.CompanyID != in.CompanyID || p.Email != in.Email {
			continue
		}
		if in.Name != "" {
			p.Name = in.Name
		}
		if in.Phone != "" {
			p.Phone = in.Phone
		}
		p.ListIDs = mergeMarkers(p.ListIDs, in.ListIDs)
		if now.After(p.LastActive) {
			p.LastActive = now
		}
		s.db.profiles[id] = p
		out := cloneProfile(p)
		return &out, false, nil
	}

	p := models.Profile{
		ID:         uuid.New(),
		CompanyID:  in.CompanyID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Source:     in.Source,
		ListIDs:    mergeMarkers(nil, in.ListIDs),
		LastActive: now,
		CreatedAt:  now,
	}
	s.db.profiles[p.ID] = p
	out := cloneProfile(p)
	return &out, true, nil
}

func mergeMarkers(have, add []string) []string {
	out := append([]string{}, have...)
	for _, m := range add {
		found := false
		for _, h := range out {
			if h == m {
				found = true
				break
			}
		}
		if !found {
			out = append(out, m)
		}
	}
	return out
}

func (s *ProfileStore) GetByID(_ context.Context, companyID uuid.UUID, profileID uuid.UUID) (*models.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.profiles[profileID]
	if !ok || p.CompanyID != companyID {
		return nil, nil
	}
	out := cloneProfile(p)
	return &out, nil
}

// byRecency orders profiles most recently active first, id as tiebreaker.
func byRecency(profiles []models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if !profiles[i].LastActive.Equal(profiles[j].LastActive) {
			return profiles[i].LastActive.After(profiles[j].LastActive)
		}
		return profiles[i].ID.String() < profiles[j].ID.String()
	})
}

func (s *ProfileStore) List(_ context.Context, companyID uuid.UUID, limit, skip int) ([]models.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Profile, 0)
	for _, p := range s.db.profiles {
		if p.CompanyID == companyID {
			out = append(out, cloneProfile(p))
		}
	}
	byRecency(out)
	return segment.Page(out, limit, skip), nil
}

func (s *ProfileStore) IDsWithListMarker(_ context.Context, companyID uuid.UUID, listID string) ([]uuid.UUID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for _, p := range s.db.profiles {
		if p.CompanyID != companyID {
			continue
		}
		for _, m := range p.ListIDs {
			if m == listID {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids, nil
}

func (s *ProfileStore) Touch(_ context.Context, companyID uuid.UUID, profileID uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.profiles[profileID]
	if !ok || p.CompanyID != companyID {
		return nil
	}
	if at.After(p.LastActive) {
		p.LastActive = at
		s.db.profiles[profileID] = p
	}
	return nil
}

type EventStore struct{ db *DB }

func (s *EventStore) Append(_ context.Context, in *models.SessionEvents) (*models.SessionEvents, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec := models.SessionEvents{
		ID:        uuid.New(),
		CompanyID: in.CompanyID,
		SessionID: in.SessionID,
		ListID:    in.ListID,
		Events:    append([]models.Event{}, in.Events...),
		CreatedAt: s.db.now(),
	}
	s.db.events = append(s.db.events, rec)
	out := cloneSessionEvents(rec)
	return &out, nil
}

func (s *EventStore) BindSession(_ context.Context, companyID uuid.UUID, sessionID string, profileID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := sessionKey{companyID: companyID, sessionID: sessionID}
	if _, ok := s.db.owners[key]; !ok {
		s.db.owners[key] = profileID
	}

	var n int64
	for i := range s.db.events {
		rec := &s.db.events[i]
		if rec.CompanyID != companyID || rec.SessionID != sessionID || rec.UserID != nil {
			continue
		}
		id := profileID
		rec.UserID = &id
		n++
	}
	return n, nil
}

func (s *EventStore) BoundProfile(_ context.Context, companyID uuid.UUID, sessionID string) (*uuid.UUID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, ok := s.db.owners[sessionKey{companyID: companyID, sessionID: sessionID}]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *EventStore) ListBySession(_ context.Context, companyID uuid.UUID, sessionID string) ([]models.SessionEvents, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.SessionEvents, 0)
	for _, rec := range s.db.events {
		if rec.CompanyID == companyID && rec.SessionID == sessionID {
			out = append(out, cloneSessionEvents(rec))
		}
	}
	return out, nil
}

func (s *EventStore) ListByProfile(_ context.Context, companyID uuid.UUID, profileID uuid.UUID, limit int) ([]models.SessionEvents, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.SessionEvents, 0)
	for i := len(s.db.events) - 1; i >= 0; i-- {
		rec := s.db.events[i]
		if rec.CompanyID == companyID && rec.UserID != nil && *rec.UserID == profileID {
			out = append(out, cloneSessionEvents(rec))
		}
	}
	return segment.Page(out, limit, 0), nil
}
