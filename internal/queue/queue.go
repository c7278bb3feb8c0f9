// Package queue hands campaign send jobs from the HTTP path to background
// pipelines. Enqueue returns as soon as the job is accepted; a Dispatcher
// drains the queue and runs each job in its own goroutine.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoJob means Dequeue waited its poll window without receiving a job.
var ErrNoJob = errors.New("no job available")

// Job asks for the send pipeline of one campaign to run.
type Job struct {
	CompanyID  uuid.UUID `json:"company_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewJob(companyID, campaignID uuid.UUID) Job {
	return Job{CompanyID: companyID, CampaignID: campaignID, EnqueuedAt: time.Now().UTC()}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job arrives, the poll window passes (ErrNoJob)
	// or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}

// Locker guards a campaign against two pipelines running at once.
type Locker interface {
	// Acquire returns a holder token when the lock was taken, or ok=false
	// when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the lock only if token still holds it.
	Release(ctx context.Context, key, token string) error
}

func lockKey(campaignID uuid.UUID) string {
	return "cdpcore:campaign-run:" + campaignID.String()
}
