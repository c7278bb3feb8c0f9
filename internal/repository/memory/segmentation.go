package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
	"github.com/lalith-99/cdpcore/internal/segment"
)

type TagStore struct{ db *DB }

func (s *TagStore) nameTaken(companyID uuid.UUID, name string, except uuid.UUID) bool {
	for _, t := range s.db.tags {
		if t.CompanyID == companyID && t.Name == name && t.ID != except {
			return true
		}
	}
	return false
}

func (s *TagStore) Create(_ context.Context, in *models.Tag) (*models.Tag, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.nameTaken(in.CompanyID, in.Name, uuid.Nil) {
		return nil, repository.ErrDuplicate
	}
	t := models.Tag{
		ID:          uuid.New(),
		CompanyID:   in.CompanyID,
		Name:        in.Name,
		Color:       in.Color,
		Description: in.Description,
		CreatedAt:   s.db.now(),
	}
	s.db.tags[t.ID] = t
	return &t, nil
}

func (s *TagStore) GetByID(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) (*models.Tag, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, ok := s.db.tags[tagID]
	if !ok || t.CompanyID != companyID {
		return nil, nil
	}
	return &t, nil
}

func (s *TagStore) ListByCompany(_ context.Context, companyID uuid.UUID) ([]models.Tag, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Tag, 0)
	for _, t := range s.db.tags {
		if t.CompanyID == companyID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *TagStore) Update(_ context.Context, in *models.Tag) (*models.Tag, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	t, ok := s.db.tags[in.ID]
	if !ok || t.CompanyID != in.CompanyID {
		return nil, nil
	}
	if s.nameTaken(in.CompanyID, in.Name, in.ID) {
		return nil, repository.ErrDuplicate
	}
	t.Name = in.Name
	t.Color = in.Color
	t.Description = in.Description
	s.db.tags[t.ID] = t
	return &t, nil
}

func (s *TagStore) Delete(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	t, ok := s.db.tags[tagID]
	if !ok || t.CompanyID != companyID {
		return false, nil
	}
	delete(s.db.tags, tagID)
	return true, nil
}

func (s *TagStore) SetProfileCount(_ context.Context, companyID uuid.UUID, tagID uuid.UUID, count int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	t, ok := s.db.tags[tagID]
	if ok && t.CompanyID == companyID {
		t.ProfileCount = count
		s.db.tags[tagID] = t
	}
	return nil
}

type ProfileTagStore struct{ db *DB }

// insert assumes the write lock is held.
func (s *ProfileTagStore) insert(pt models.ProfileTag) (models.ProfileTag, bool) {
	key := assocKey{profileID: pt.ProfileID, tagID: pt.TagID, companyID: pt.CompanyID}
	if existing, ok := s.db.assocs[key]; ok {
		return existing, false
	}
	if pt.Metadata == nil {
		pt.Metadata = map[string]any{}
	}
	pt.CreatedAt = s.db.now()
	s.db.assocs[key] = pt
	s.db.assocOrder = append(s.db.assocOrder, key)
	return pt, true
}

func (s *ProfileTagStore) Add(_ context.Context, in models.ProfileTag) (*models.ProfileTag, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	pt, created := s.insert(in)
	return &pt, created, nil
}

// remove assumes the write lock is held.
func (s *ProfileTagStore) remove(key assocKey) {
	delete(s.db.assocs, key)
	for i, k := range s.db.assocOrder {
		if k == key {
			s.db.assocOrder = append(s.db.assocOrder[:i], s.db.assocOrder[i+1:]...)
			return
		}
	}
}

func (s *ProfileTagStore) Remove(_ context.Context, companyID, profileID, tagID uuid.UUID) (*models.ProfileTag, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := assocKey{profileID: profileID, tagID: tagID, companyID: companyID}
	pt, ok := s.db.assocs[key]
	if !ok {
		return nil, nil
	}
	s.remove(key)
	return &pt, nil
}

func (s *ProfileTagStore) BulkAdd(_ context.Context, companyID uuid.UUID, profileIDs, tagIDs []uuid.UUID, addedBy models.AddedBy) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for _, pid := range profileIDs {
		if p, ok := s.db.profiles[pid]; !ok || p.CompanyID != companyID {
			continue
		}
		for _, tid := range tagIDs {
			if t, ok := s.db.tags[tid]; !ok || t.CompanyID != companyID {
				continue
			}
			if _, created := s.insert(models.ProfileTag{
				ProfileID: pid,
				TagID:     tid,
				CompanyID: companyID,
				AddedBy:   addedBy,
			}); created {
				n++
			}
		}
	}
	return n, nil
}

func (s *ProfileTagStore) ListByProfile(_ context.Context, companyID uuid.UUID, profileID uuid.UUID) ([]models.ProfileTag, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.ProfileTag, 0)
	for _, key := range s.db.assocOrder {
		if key.companyID == companyID && key.profileID == profileID {
			out = append(out, s.db.assocs[key])
		}
	}
	return out, nil
}

func (s *ProfileTagStore) DeleteByTag(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	kept := s.db.assocOrder[:0]
	for _, key := range s.db.assocOrder {
		if key.companyID == companyID && key.tagID == tagID {
			delete(s.db.assocs, key)
			n++
			continue
		}
		kept = append(kept, key)
	}
	s.db.assocOrder = kept
	return n, nil
}

func (s *ProfileTagStore) CountWithTag(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var n int64
	for key := range s.db.assocs {
		if key.companyID == companyID && key.tagID == tagID {
			n++
		}
	}
	return n, nil
}

// companyAssocs assumes at least the read lock is held.
func (s *ProfileTagStore) companyAssocs(companyID uuid.UUID) []models.ProfileTag {
	out := make([]models.ProfileTag, 0)
	for _, key := range s.db.assocOrder {
		if key.companyID == companyID {
			out = append(out, s.db.assocs[key])
		}
	}
	return out
}

// matching assumes at least the read lock is held.
func (s *ProfileTagStore) matching(companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic) []models.Profile {
	ids := segment.Match(s.companyAssocs(companyID), tagIDs, logic)
	out := make([]models.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.db.profiles[id]; ok && p.CompanyID == companyID {
			out = append(out, cloneProfile(p))
		}
	}
	return out
}

func (s *ProfileTagStore) MatchProfiles(_ context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic, limit, skip int) ([]models.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := s.matching(companyID, tagIDs, logic)
	byRecency(out)
	return segment.Page(out, limit, skip), nil
}

func (s *ProfileTagStore) CountMatching(_ context.Context, companyID uuid.UUID, tagIDs []uuid.UUID, logic models.TagLogic) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	return int64(len(s.matching(companyID, tagIDs, logic))), nil
}

type ListStore struct{ db *DB }

func (s *ListStore) Create(_ context.Context, in *models.List) (*models.List, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, l := range s.db.lists {
		if l.ListID == in.ListID {
			return nil, repository.ErrDuplicate
		}
	}
	now := s.db.now()
	l := cloneList(*in)
	l.ID = uuid.New()
	l.ProfileCount = 0
	l.CreatedAt = now
	l.UpdatedAt = now
	s.db.lists[l.ID] = l
	out := cloneList(l)
	return &out, nil
}

func (s *ListStore) GetByID(_ context.Context, companyID uuid.UUID, id uuid.UUID) (*models.List, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	l, ok := s.db.lists[id]
	if !ok || l.CompanyID != companyID {
		return nil, nil
	}
	out := cloneList(l)
	return &out, nil
}

func (s *ListStore) GetByListID(_ context.Context, companyID uuid.UUID, listID string) (*models.List, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, l := range s.db.lists {
		if l.CompanyID == companyID && l.ListID == listID {
			out := cloneList(l)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *ListStore) ListByCompany(_ context.Context, companyID uuid.UUID) ([]models.List, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.List, 0)
	for _, l := range s.db.lists {
		if l.CompanyID == companyID {
			out = append(out, cloneList(l))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ListStore) Update(_ context.Context, in *models.List) (*models.List, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	l, ok := s.db.lists[in.ID]
	if !ok || l.CompanyID != in.CompanyID {
		return nil, nil
	}
	l.Name = in.Name
	l.Description = in.Description
	l.TagIDs = append([]uuid.UUID{}, in.TagIDs...)
	l.TagLogic = in.TagLogic
	l.Status = in.Status
	l.UpdatedAt = s.db.now()
	s.db.lists[l.ID] = l
	out := cloneList(l)
	return &out, nil
}

func (s *ListStore) Delete(_ context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	l, ok := s.db.lists[id]
	if !ok || l.CompanyID != companyID {
		return false, nil
	}
	delete(s.db.lists, id)
	return true, nil
}

func (s *ListStore) SetProfileCount(_ context.Context, companyID uuid.UUID, id uuid.UUID, count int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	l, ok := s.db.lists[id]
	if ok && l.CompanyID == companyID {
		l.ProfileCount = count
		s.db.lists[id] = l
	}
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (s *ListStore) ListReferencingTags(_ context.Context, companyID uuid.UUID, tagIDs []uuid.UUID) ([]models.List, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.List, 0)
	for _, l := range s.db.lists {
		if l.CompanyID != companyID {
			continue
		}
		for _, id := range tagIDs {
			if containsID(l.TagIDs, id) {
				out = append(out, cloneList(l))
				break
			}
		}
	}
	return out, nil
}

func (s *ListStore) RemoveTagReference(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) ([]uuid.UUID, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	changed := make([]uuid.UUID, 0)
	for id, l := range s.db.lists {
		if l.CompanyID != companyID || !containsID(l.TagIDs, tagID) {
			continue
		}
		kept := make([]uuid.UUID, 0, len(l.TagIDs))
		for _, t := range l.TagIDs {
			if t != tagID {
				kept = append(kept, t)
			}
		}
		l.TagIDs = kept
		l.UpdatedAt = s.db.now()
		s.db.lists[id] = l
		changed = append(changed, id)
	}
	return changed, nil
}
