package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// RetryPolicy bounds how often a failed adapter call is repeated. The delay
// doubles after each failure up to MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

type retryAdapter struct {
	next   Adapter
	policy RetryPolicy
}

type retryRemote struct {
	retryAdapter
	remote Remote
}

// WithRetry wraps adapter so that transient failures are retried. Not-found
// results and cancelled contexts are returned immediately. When adapter is a
// Remote the returned value is one too.
func WithRetry(adapter Adapter, policy RetryPolicy) Adapter {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	base := retryAdapter{next: adapter, policy: policy}
	if remote, ok := adapter.(Remote); ok {
		return &retryRemote{retryAdapter: base, remote: remote}
	}
	return &base
}

func (r *retryAdapter) Get(ctx context.Context, projectID string) (project.Project, error) {
	var out project.Project
	err := r.do(ctx, "get "+projectID, func(ctx context.Context) error {
		var err error
		out, err = r.next.Get(ctx, projectID)
		return err
	})
	return out, err
}

func (r *retryAdapter) GetAll(ctx context.Context) ([]project.Project, error) {
	var out []project.Project
	err := r.do(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetAll(ctx)
		return err
	})
	return out, err
}

func (r *retryAdapter) Upsert(ctx context.Context, p project.Project) error {
	return r.do(ctx, "upsert "+p.ID, func(ctx context.Context) error {
		return r.next.Upsert(ctx, p)
	})
}

func (r *retryAdapter) Delete(ctx context.Context, projectID string) error {
	return r.do(ctx, "delete "+projectID, func(ctx context.Context) error {
		return r.next.Delete(ctx, projectID)
	})
}

func (r *retryRemote) Subscribe(ctx context.Context, projectID string, onChange func(project.Project)) (func(), error) {
	var unsubscribe func()
	err := r.do(ctx, "subscribe "+projectID, func(ctx context.Context) error {
		var err error
		unsubscribe, err = r.remote.Subscribe(ctx, projectID, onChange)
		return err
	})
	return unsubscribe, err
}

func (r *retryAdapter) do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := r.policy.BaseDelay
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) || attempt == r.policy.Attempts {
			return err
		}
		log.Printf("store: %s failed (attempt %d/%d), retrying in %s: %v", op, attempt, r.policy.Attempts, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
	return err
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
