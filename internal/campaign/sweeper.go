package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Sweeper starts scheduled campaigns whose time has come. Each due
// campaign is claimed and queued on its own; one failing does not hold up
// the rest.
type Sweeper struct {
	campaigns repository.CampaignRepository
	queue     Enqueuer
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewSweeper(campaigns repository.CampaignRepository, q Enqueuer, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		campaigns: campaigns,
		queue:     q,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

// Start runs SweepOnce on every tick until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("campaign sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("campaign sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce queues every due scheduled campaign and returns how many it
// started.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	due, err := s.campaigns.ListDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}

	started := 0
	for _, c := range due {
		log := s.logger.With(zap.String("campaign_id", c.ID.String()))

		ok, err := s.campaigns.Transition(ctx, c.CompanyID, c.ID,
			[]models.CampaignStatus{models.CampaignScheduled}, models.CampaignSending,
			repository.TransitionPatch{})
		if err != nil {
			log.Error("claim scheduled campaign", zap.Error(err))
			continue
		}
		if !ok {
			// Claimed by another sweeper or sent manually.
			continue
		}

		if err := s.queue.Enqueue(ctx, queue.NewJob(c.CompanyID, c.ID)); err != nil {
			reason := "enqueue send job: " + err.Error()
			if _, terr := s.campaigns.Transition(ctx, c.CompanyID, c.ID,
				[]models.CampaignStatus{models.CampaignSending}, models.CampaignFailed,
				repository.TransitionPatch{LastError: &reason}); terr != nil {
				log.Error("mark campaign failed", zap.Error(terr))
			}
			log.Error("enqueue scheduled campaign", zap.Error(err))
			continue
		}
		started++
	}

	if started > 0 {
		s.logger.Info("scheduled campaigns started", zap.Int("count", started))
	}
	return started, nil
}
