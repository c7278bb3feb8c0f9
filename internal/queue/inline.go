package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InlineQueue is the single-process queue behind QUEUE=inline.
type InlineQueue struct {
	jobs chan Job
}

func NewInlineQueue(buffer int) *InlineQueue {
	return &InlineQueue{jobs: make(chan Job, buffer)}
}

func (q *InlineQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports how many jobs are waiting.
func (q *InlineQueue) Len() int {
	return len(q.jobs)
}

func (q *InlineQueue) Dequeue(ctx context.Context) (Job, error) {
	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		return job, nil
	case <-timer.C:
		return Job{}, ErrNoJob
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// LocalLocker is a process-local Locker with the same TTL and token
// semantics as RedisLocker.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLease
	clock func() time.Time
}

type localLease struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), clock: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if lease, ok := l.held[key]; ok && now.Before(lease.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lease, ok := l.held[key]; ok && lease.token == token {
		delete(l.held, key)
	}
	return nil
}
