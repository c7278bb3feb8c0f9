// Package campaign runs the send pipeline: resolve the list, fan out each
// batch of recipients concurrently, and fold results into the campaign's
// counters.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/mailer"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/observ"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository"
)

// NoRecipients is recorded as last_error when the list is empty at send time.
const NoRecipients = "No recipients found in the list"

const DefaultBatchSize = 100

var tracer = otel.Tracer("github.com/lalith-99/cdpcore/internal/campaign")

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotSending       = errors.New("campaign is not in sending status")
)

// MemberSource resolves a list's full current membership.
type MemberSource interface {
	AllMembers(ctx context.Context, companyID, listID uuid.UUID) ([]models.Profile, error)
}

type Processor struct {
	campaigns repository.CampaignRepository
	members   MemberSource
	sender    mailer.Sender
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

func NewProcessor(
	campaigns repository.CampaignRepository,
	members MemberSource,
	sender mailer.Sender,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		campaigns: campaigns,
		members:   members,
		sender:    sender,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Handle adapts Run to the dispatcher's job handler.
func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	return p.Run(ctx, job.CompanyID, job.CampaignID)
}

// Run executes the pipeline for a campaign already moved to sending.
// Individual send failures are counted and never stop the run. Any storage
// error that ends the run early leaves the campaign failed with last_error.
func (p *Processor) Run(ctx context.Context, companyID, campaignID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "campaign.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("company_id", companyID.String()),
		attribute.String("campaign_id", campaignID.String()),
	)

	log := p.logger.With(
		zap.String("company_id", companyID.String()),
		zap.String("campaign_id", campaignID.String()),
	)

	c, err := p.campaigns.GetByID(ctx, companyID, campaignID)
	if err != nil {
		p.fail(ctx, log, companyID, campaignID, "load campaign: "+err.Error())
		return fmt.Errorf("load campaign: %w", err)
	}
	if c == nil {
		return ErrCampaignNotFound
	}
	if c.Status != models.CampaignSending {
		log.Warn("skipping run", zap.String("status", string(c.Status)))
		return ErrNotSending
	}

	recipients, err := p.members.AllMembers(ctx, companyID, c.ListID)
	if err != nil {
		p.fail(ctx, log, companyID, campaignID, "load list: "+err.Error())
		return fmt.Errorf("load list members: %w", err)
	}
	if len(recipients) == 0 {
		p.fail(ctx, log, companyID, campaignID, NoRecipients)
		return nil
	}

	total := int64(len(recipients))
	span.SetAttributes(attribute.Int64("recipients", total))
	if err := p.campaigns.SetTotalRecipients(ctx, companyID, campaignID, total); err != nil {
		p.fail(ctx, log, companyID, campaignID, "set total recipients: "+err.Error())
		return fmt.Errorf("set total recipients: %w", err)
	}
	log.Info("campaign send started", zap.Int64("recipients", total), zap.Int("batch_size", p.batchSize))

	for start := 0; start < len(recipients); start += p.batchSize {
		if start > 0 {
			paused, err := p.paused(ctx, companyID, campaignID)
			if err != nil {
				log.Warn("status check failed", zap.Error(err))
			}
			if paused {
				log.Info("campaign paused", zap.Int("processed", start))
				observ.ObserveCampaignRun(string(models.CampaignPaused))
				return nil
			}
		}

		end := min(start+p.batchSize, len(recipients))
		began := time.Now()
		sent, failed := p.sendBatch(ctx, log, c, recipients[start:end])
		observ.ObserveBatch(sent, failed, time.Since(began))

		delta := models.CampaignStats{Sent: int64(sent), Delivered: int64(sent), Failed: int64(failed)}
		if err := p.campaigns.IncrementStats(ctx, companyID, campaignID, delta); err != nil {
			log.Error("increment stats", zap.Error(err))
		}
		log.Debug("batch done", zap.Int("from", start), zap.Int("sent", sent), zap.Int("failed", failed))
	}

	sentAt := p.now().UTC()
	ok, err := p.campaigns.Transition(ctx, companyID, campaignID,
		[]models.CampaignStatus{models.CampaignSending}, models.CampaignSent,
		repository.TransitionPatch{SentAt: &sentAt})
	if err != nil {
		p.fail(ctx, log, companyID, campaignID, "mark sent: "+err.Error())
		return fmt.Errorf("mark sent: %w", err)
	}
	if !ok {
		log.Info("campaign left sending before completion")
		return nil
	}
	observ.ObserveCampaignRun(string(models.CampaignSent))
	log.Info("campaign sent")
	return nil
}

// sendBatch attempts every recipient concurrently and waits for all of them.
func (p *Processor) sendBatch(ctx context.Context, log *zap.Logger, c *models.Campaign, batch []models.Profile) (sent, failed int) {
	results := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, recipient := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := Personalize(c.Content, recipient)
			results[i] = p.sender.Send(ctx, mailer.Message{
				CampaignID: c.ID,
				ProfileID:  recipient.ID,
				To:         recipient.Email,
				FromName:   content.FromName,
				FromEmail:  content.FromEmail,
				ReplyTo:    content.ReplyTo,
				Subject:    content.Subject,
				HTMLBody:   content.HTMLBody,
				TextBody:   content.TextBody,
			})
		}()
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			failed++
			log.Debug("send failed", zap.String("profile_id", batch[i].ID.String()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, failed
}

func (p *Processor) paused(ctx context.Context, companyID, campaignID uuid.UUID) (bool, error) {
	cur, err := p.campaigns.GetByID(ctx, companyID, campaignID)
	if err != nil {
		return false, err
	}
	return cur != nil && cur.Status == models.CampaignPaused, nil
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, companyID, campaignID uuid.UUID, reason string) {
	ok, err := p.campaigns.Transition(ctx, companyID, campaignID,
		[]models.CampaignStatus{models.CampaignSending}, models.CampaignFailed,
		repository.TransitionPatch{LastError: &reason})
	if err != nil {
		log.Error("mark campaign failed", zap.Error(err))
		return
	}
	if ok {
		observ.ObserveCampaignRun(string(models.CampaignFailed))
		log.Warn("campaign failed", zap.String("reason", reason))
	}
}
