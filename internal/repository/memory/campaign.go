package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/repository"
)

type CampaignStore struct{ db *DB }

func (s *CampaignStore) Create(_ context.Context, in *models.Campaign) (*models.Campaign, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := s.db.now()
	c := models.Campaign{
		ID:        uuid.New(),
		CompanyID: in.CompanyID,
		ListID:    in.ListID,
		Name:      in.Name,
		Content:   in.Content,
		Status:    models.CampaignDraft,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.db.campaigns[c.ID] = c
	out := cloneCampaign(c)
	return &out, nil
}

func (s *CampaignStore) GetByID(_ context.Context, companyID uuid.UUID, id uuid.UUID) (*models.Campaign, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	c, ok := s.db.campaigns[id]
	if !ok || c.CompanyID != companyID {
		return nil, nil
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (s *CampaignStore) ListByCompany(_ context.Context, companyID uuid.UUID) ([]models.Campaign, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Campaign, 0)
	for _, c := range s.db.campaigns {
		if c.CompanyID == companyID {
			out = append(out, cloneCampaign(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *CampaignStore) UpdateContent(_ context.Context, in *models.Campaign) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.campaigns[in.ID]
	if !ok || c.CompanyID != in.CompanyID || c.Status != models.CampaignDraft {
		return false, nil
	}
	c.Name = in.Name
	c.Content = in.Content
	c.UpdatedAt = s.db.now()
	s.db.campaigns[c.ID] = c
	return true, nil
}

func (s *CampaignStore) DeleteDraft(_ context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.campaigns[id]
	if !ok || c.CompanyID != companyID || c.Status != models.CampaignDraft {
		return false, nil
	}
	delete(s.db.campaigns, id)
	return true, nil
}

func (s *CampaignStore) Transition(_ context.Context, companyID uuid.UUID, id uuid.UUID, from []models.CampaignStatus, to models.CampaignStatus, patch repository.TransitionPatch) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.campaigns[id]
	if !ok || c.CompanyID != companyID {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if c.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	c.Status = to
	if patch.ScheduledAt != nil {
		t := *patch.ScheduledAt
		c.ScheduledAt = &t
	}
	if patch.SentAt != nil {
		t := *patch.SentAt
		c.SentAt = &t
	}
	if patch.LastError != nil {
		c.LastError = *patch.LastError
	}
	c.UpdatedAt = s.db.now()
	s.db.campaigns[id] = c
	return true, nil
}

func (s *CampaignStore) SetTotalRecipients(_ context.Context, companyID uuid.UUID, id uuid.UUID, total int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.campaigns[id]
	if ok && c.CompanyID == companyID {
		c.Stats.TotalRecipients = total
		c.UpdatedAt = s.db.now()
		s.db.campaigns[id] = c
	}
	return nil
}

func (s *CampaignStore) IncrementStats(_ context.Context, companyID uuid.UUID, id uuid.UUID, d models.CampaignStats) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.campaigns[id]
	if !ok || c.CompanyID != companyID {
		return nil
	}
	c.Stats.TotalRecipients += d.TotalRecipients
	c.Stats.Sent += d.Sent
	c.Stats.Delivered += d.Delivered
	c.Stats.Opened += d.Opened
	c.Stats.Clicked += d.Clicked
	c.Stats.Bounced += d.Bounced
	c.Stats.Failed += d.Failed
	c.UpdatedAt = s.db.now()
	s.db.campaigns[id] = c
	return nil
}

func (s *CampaignStore) ListDue(_ context.Context, now time.Time) ([]models.Campaign, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Campaign, 0)
	for _, c := range s.db.campaigns {
		if c.Status == models.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, cloneCampaign(c))
		}
	}
	return out, nil
}

type RuleStore struct{ db *DB }

func (s *RuleStore) Create(_ context.Context, in *models.TagRule) (*models.TagRule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r := *in
	r.ID = uuid.New()
	r.CreatedAt = s.db.now()
	s.db.rules[r.ID] = r
	return &r, nil
}

func (s *RuleStore) list(companyID uuid.UUID, enabledOnly bool) []models.TagRule {
	out := make([]models.TagRule, 0)
	for _, r := range s.db.rules {
		if r.CompanyID != companyID || (enabledOnly && !r.Enabled) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *RuleStore) ListByCompany(_ context.Context, companyID uuid.UUID) ([]models.TagRule, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(companyID, false), nil
}

func (s *RuleStore) ListEnabled(_ context.Context, companyID uuid.UUID) ([]models.TagRule, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(companyID, true), nil
}

func (s *RuleStore) Delete(_ context.Context, companyID uuid.UUID, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r, ok := s.db.rules[id]
	if !ok || r.CompanyID != companyID {
		return false, nil
	}
	delete(s.db.rules, id)
	return true, nil
}

func (s *RuleStore) DeleteByTag(_ context.Context, companyID uuid.UUID, tagID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for id, r := range s.db.rules {
		if r.CompanyID == companyID && r.TagID == tagID {
			delete(s.db.rules, id)
			n++
		}
	}
	return n, nil
}
