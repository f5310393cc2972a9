// Package localsync moves projects created without an identity into the
// remote store once the user signs in.
package localsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

type Decision string

const (
	DecisionMigrate Decision = "migrate"
	DecisionDiscard Decision = "discard"
)

var ErrUnknownDecision = errors.New("unknown sync decision")

func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionMigrate, DecisionDiscard:
		return Decision(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDecision, raw)
}

// Prompter asks the user what to do with local projects. It is called at most
// once per owner.
type Prompter interface {
	Decide(ctx context.Context, pending []project.Project) (Decision, error)
}

type PrompterFunc func(ctx context.Context, pending []project.Project) (Decision, error)

func (f PrompterFunc) Decide(ctx context.Context, pending []project.Project) (Decision, error) {
	return f(ctx, pending)
}

// Report lists what a run did, even when it stopped early.
type Report struct {
	Decision Decision `json:"decision"`
	// Migrated were written to the remote store.
	Migrated []string `json:"migrated"`
	// Skipped had a remote copy at least as recent as the local one.
	Skipped []string `json:"skipped"`
	// Removed were deleted from the local store.
	Removed []string `json:"removed"`
}

type Coordinator struct {
	local  store.Adapter
	remote store.Adapter

	mu        sync.Mutex
	triggered map[string]bool
}

func NewCoordinator(local, remote store.Adapter) *Coordinator {
	return &Coordinator{local: local, remote: remote, triggered: map[string]bool{}}
}

// Pending returns the local projects, most recently updated first.
func (c *Coordinator) Pending(ctx context.Context) ([]project.Project, error) {
	items, err := store.ListRecent(ctx, c.local)
	if err != nil {
		return nil, fmt.Errorf("list local projects: %w", err)
	}
	return items, nil
}

// Run applies decision to every local project. A failure aborts the rest of
// the batch; the returned report covers what completed. Running again picks
// up where the failed run stopped.
func (c *Coordinator) Run(ctx context.Context, ownerID string, decision Decision) (Report, error) {
	report := Report{Decision: decision, Migrated: []string{}, Skipped: []string{}, Removed: []string{}}

	pending, err := c.Pending(ctx)
	if err != nil {
		return report, err
	}

	switch decision {
	case DecisionDiscard:
		for _, item := range pending {
			if err := c.local.Delete(ctx, item.ID); err != nil {
				return report, fmt.Errorf("discard local project %s: %w", item.ID, err)
			}
			report.Removed = append(report.Removed, item.ID)
		}
	case DecisionMigrate:
		if ownerID == "" {
			return report, errors.New("migrate local projects: owner is required")
		}
		for _, item := range pending {
			migrated, err := c.migrate(ctx, ownerID, item)
			if err != nil {
				return report, err
			}
			if migrated {
				report.Migrated = append(report.Migrated, item.ID)
			} else {
				report.Skipped = append(report.Skipped, item.ID)
			}
			if err := c.local.Delete(ctx, item.ID); err != nil {
				return report, fmt.Errorf("delete migrated project %s: %w", item.ID, err)
			}
			report.Removed = append(report.Removed, item.ID)
		}
	default:
		return report, fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
	}

	log.Printf("localsync: %s for %s: migrated=%d skipped=%d removed=%d",
		decision, ownerID, len(report.Migrated), len(report.Skipped), len(report.Removed))
	return report, nil
}

func (c *Coordinator) migrate(ctx context.Context, ownerID string, local project.Project) (bool, error) {
	existing, err := c.remote.Get(ctx, local.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("look up remote project %s: %w", local.ID, err)
	case !local.UpdatedAt.After(existing.UpdatedAt):
		return false, nil
	}

	claimed := project.EnsureProjectDefaults(local.Clone())
	claimed.OwnerID = ownerID
	if err := c.remote.Upsert(ctx, claimed); err != nil {
		return false, fmt.Errorf("migrate project %s: %w", local.ID, err)
	}
	return true, nil
}

// Trigger prompts and runs once per owner, and only when local projects
// exist. It reports false when nothing ran.
func (c *Coordinator) Trigger(ctx context.Context, ownerID string, prompter Prompter) (Report, bool, error) {
	if ownerID == "" {
		return Report{}, false, nil
	}
	c.mu.Lock()
	if c.triggered[ownerID] {
		c.mu.Unlock()
		return Report{}, false, nil
	}
	c.triggered[ownerID] = true
	c.mu.Unlock()

	pending, err := c.Pending(ctx)
	if err != nil {
		return Report{}, false, err
	}
	if len(pending) == 0 {
		return Report{}, false, nil
	}

	decision, err := prompter.Decide(ctx, pending)
	if err != nil {
		return Report{}, false, fmt.Errorf("prompt for sync decision: %w", err)
	}
	report, err := c.Run(ctx, ownerID, decision)
	return report, true, err
}
