package store

import (
	"context"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// Hooks run after a successful write. They must not block for long; search
// indexing and history recording use them.
type Hooks struct {
	AfterUpsert []func(ctx context.Context, p project.Project)
	AfterDelete []func(ctx context.Context, projectID string)
}

type hookedAdapter struct {
	Adapter
	hooks Hooks
}

type hookedRemote struct {
	hookedAdapter
	remote Remote
}

// WithHooks wraps adapter so hooks observe its writes. When adapter is a
// Remote the returned value is one too.
func WithHooks(adapter Adapter, hooks Hooks) Adapter {
	base := hookedAdapter{Adapter: adapter, hooks: hooks}
	if remote, ok := adapter.(Remote); ok {
		return &hookedRemote{hookedAdapter: base, remote: remote}
	}
	return &base
}

func (h *hookedAdapter) Upsert(ctx context.Context, p project.Project) error {
	if err := h.Adapter.Upsert(ctx, p); err != nil {
		return err
	}
	for _, fn := range h.hooks.AfterUpsert {
		fn(ctx, p)
	}
	return nil
}

func (h *hookedAdapter) Delete(ctx context.Context, projectID string) error {
	if err := h.Adapter.Delete(ctx, projectID); err != nil {
		return err
	}
	for _, fn := range h.hooks.AfterDelete {
		fn(ctx, projectID)
	}
	return nil
}

func (h *hookedRemote) Subscribe(ctx context.Context, projectID string, onChange func(project.Project)) (func(), error) {
	return h.remote.Subscribe(ctx, projectID, onChange)
}
