package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// SendNow is the send-trigger value that starts the pipeline immediately.
const SendNow = "now"

// Enqueuer hands a send job to the background pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// CampaignService is the operator-facing side of the campaign lifecycle.
// The pipeline itself lives in internal/campaign.
type CampaignService struct {
	campaigns repository.CampaignRepository
	lists     repository.ListRepository
	queue     Enqueuer
	now       func() time.Time
	logger    *zap.Logger
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	lists repository.ListRepository,
	q Enqueuer,
	logger *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		lists:     lists,
		queue:     q,
		now:       time.Now,
		logger:    logger,
	}
}

type CampaignInput struct {
	ListID  uuid.UUID
	Name    string
	Content models.Content
}

func (s *CampaignService) Create(ctx context.Context, companyID, operatorID uuid.UUID, in CampaignInput) (*models.Campaign, error) {
	const op = "campaigns.create"

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid(op, "name is required")
	}
	if strings.TrimSpace(in.Content.Subject) == "" {
		return nil, invalid(op, "subject is required")
	}
	if in.ListID == uuid.Nil {
		return nil, invalid(op, "list_id is required")
	}
	l, err := s.lists.GetByID(ctx, companyID, in.ListID)
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	if l == nil {
		return nil, notFound(op, "list")
	}

	return s.campaigns.Create(ctx, &models.Campaign{
		CompanyID: companyID,
		ListID:    in.ListID,
		Name:      in.Name,
		Content:   in.Content,
		CreatedBy: operatorID,
	})
}

func (s *CampaignService) Get(ctx context.Context, companyID, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c == nil {
		return nil, notFound("campaigns.get", "campaign")
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, companyID uuid.UUID) ([]models.Campaign, error) {
	return s.campaigns.ListByCompany(ctx, companyID)
}

// Update rewrites name and content. Only drafts can be edited.
func (s *CampaignService) Update(ctx context.Context, companyID, id uuid.UUID, in CampaignInput) (*models.Campaign, error) {
	const op = "campaigns.update"

	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignDraft {
		return nil, conflict(op, "only draft campaigns can be updated (status is %s)", c.Status)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
	}
	c.Content = in.Content
	if strings.TrimSpace(c.Content.Subject) == "" {
		return nil, invalid(op, "subject is required")
	}

	ok, err := s.campaigns.UpdateContent(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	if !ok {
		return nil, conflict(op, "campaign left draft while being updated")
	}
	return s.Get(ctx, companyID, id)
}

// Delete removes a draft campaign.
func (s *CampaignService) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	const op = "campaigns.delete"

	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	if c.Status != models.CampaignDraft {
		return conflict(op, "only draft campaigns can be deleted (status is %s)", c.Status)
	}
	ok, err := s.campaigns.DeleteDraft(ctx, companyID, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if !ok {
		return conflict(op, "campaign left draft while being deleted")
	}
	return nil
}

// Send either starts the pipeline now or schedules it. when is "now" or an
// RFC 3339 timestamp strictly in the future. Starting moves the campaign to
// sending in one conditional write, so a second call cannot start a second
// pipeline. The call returns once the job is queued.
func (s *CampaignService) Send(ctx context.Context, companyID, id uuid.UUID, when string) (*models.Campaign, error) {
	const op = "campaigns.send"

	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	when = strings.TrimSpace(when)
	if when == "" || strings.EqualFold(when, SendNow) {
		return s.startNow(ctx, c)
	}

	at, err := time.Parse(time.RFC3339, when)
	if err != nil {
		return nil, invalid(op, "scheduled time must be %q or an RFC 3339 timestamp", SendNow)
	}
	if !at.After(s.now()) {
		return nil, invalid(op, "scheduled time must be in the future")
	}
	at = at.UTC()

	ok, err := s.campaigns.Transition(ctx, companyID, id,
		[]models.CampaignStatus{models.CampaignDraft}, models.CampaignScheduled,
		repository.TransitionPatch{ScheduledAt: &at})
	if err != nil {
		return nil, fmt.Errorf("schedule campaign: %w", err)
	}
	if !ok {
		return nil, conflict(op, "only draft campaigns can be scheduled (status is %s)", c.Status)
	}
	s.logger.Info("campaign scheduled", zap.String("campaign_id", id.String()), zap.Time("at", at))
	return s.Get(ctx, companyID, id)
}

func (s *CampaignService) startNow(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	const op = "campaigns.send"

	from := []models.CampaignStatus{models.CampaignDraft, models.CampaignScheduled}
	ok, err := s.campaigns.Transition(ctx, c.CompanyID, c.ID, from, models.CampaignSending, repository.TransitionPatch{})
	if err != nil {
		return nil, fmt.Errorf("start campaign: %w", err)
	}
	if !ok {
		return nil, conflict(op, "only draft or scheduled campaigns can be sent (status is %s)", c.Status)
	}

	if err := s.queue.Enqueue(ctx, queue.NewJob(c.CompanyID, c.ID)); err != nil {
		reason := "enqueue send job: " + err.Error()
		if _, terr := s.campaigns.Transition(ctx, c.CompanyID, c.ID,
			[]models.CampaignStatus{models.CampaignSending}, models.CampaignFailed,
			repository.TransitionPatch{LastError: &reason}); terr != nil {
			s.logger.Error("mark campaign failed", zap.Error(terr))
		}
		return nil, fmt.Errorf("enqueue campaign %s: %w", c.ID, err)
	}

	s.logger.Info("campaign send queued", zap.String("campaign_id", c.ID.String()))
	return s.Get(ctx, c.CompanyID, c.ID)
}

// Pause stops a sending campaign at the next batch boundary. There is no
// resume.
func (s *CampaignService) Pause(ctx context.Context, companyID, id uuid.UUID) (*models.Campaign, error) {
	const op = "campaigns.pause"

	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.campaigns.Transition(ctx, companyID, id,
		[]models.CampaignStatus{models.CampaignSending}, models.CampaignPaused, repository.TransitionPatch{})
	if err != nil {
		return nil, fmt.Errorf("pause campaign: %w", err)
	}
	if !ok {
		return nil, conflict(op, "only sending campaigns can be paused (status is %s)", c.Status)
	}
	return s.Get(ctx, companyID, id)
}

// StatsView is what pollers read while a send is in flight.
type StatsView struct {
	CampaignID uuid.UUID             `json:"campaign_id"`
	Status     models.CampaignStatus `json:"status"`
	LastError  string                `json:"last_error,omitempty"`
	SentAt     *time.Time            `json:"sent_at,omitempty"`
	models.CampaignStats
}

func (s *CampaignService) Stats(ctx context.Context, companyID, id uuid.UUID) (*StatsView, error) {
	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return &StatsView{
		CampaignID:    c.ID,
		Status:        c.Status,
		LastError:     c.LastError,
		SentAt:        c.SentAt,
		CampaignStats: c.Stats,
	}, nil
}
