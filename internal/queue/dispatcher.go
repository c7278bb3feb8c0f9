package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler runs one job to completion.
type Handler func(ctx context.Context, job Job) error

// Dispatcher drains a Queue and runs every job in a supervised goroutine.
type Dispatcher struct {
	queue   Queue
	locker  Locker
	handler Handler
	lockTTL time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(q Queue, locker Locker, handler Handler, lockTTL time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		locker:  locker,
		handler: handler,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Run consumes jobs until ctx is cancelled, then waits for in-flight jobs.
// Running pipelines are detached from ctx so shutdown lets them finish
// instead of leaving a campaign half sent.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started")
	defer d.logger.Info("dispatcher stopped")

	for {
		job, err := d.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrNoJob) {
			continue
		}
		if err != nil {
			d.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
			}
			break
		}

		d.wg.Add(1)
		go d.handle(context.WithoutCancel(ctx), job)
	}

	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, job Job) {
	defer d.wg.Done()

	log := d.logger.With(
		zap.String("company_id", job.CompanyID.String()),
		zap.String("campaign_id", job.CampaignID.String()),
	)

	key := lockKey(job.CampaignID)
	token, ok, err := d.locker.Acquire(ctx, key, d.lockTTL)
	if err != nil {
		log.Error("acquire run lock", zap.Error(err))
		return
	}
	if !ok {
		log.Warn("campaign pipeline already running, dropping duplicate job")
		return
	}
	defer func() {
		if err := d.locker.Release(ctx, key, token); err != nil {
			log.Warn("release run lock", zap.Error(err))
		}
	}()

	start := time.Now()
	if err := d.handler(ctx, job); err != nil {
		log.Error("campaign job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("campaign job finished", zap.Duration("elapsed", time.Since(start)))
}
