// Package store defines the persistence contract shared by the local and
// remote project stores, plus the PostgreSQL-backed remote implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

var ErrNotFound = errors.New("project not found")

// Adapter is implemented by every project store.
type Adapter interface {
	Get(ctx context.Context, projectID string) (project.Project, error)
	GetAll(ctx context.Context) ([]project.Project, error)
	// Upsert merges p into the stored document: top-level fields missing
	// from p's encoding keep their stored value.
	Upsert(ctx context.Context, p project.Project) error
	Delete(ctx context.Context, projectID string) error
}

// Remote is an Adapter that can also stream revisions of one project. Every
// server-observed revision is delivered, including the subscriber's own
// writes.
type Remote interface {
	Adapter
	Subscribe(ctx context.Context, projectID string, onChange func(project.Project)) (func(), error)
}

// ChangeFeed carries encoded project revisions between clients.
type ChangeFeed interface {
	Publish(ctx context.Context, projectID string, payload []byte) error
	Subscribe(ctx context.Context, projectID string, onMessage func([]byte)) (func(), error)
}

// SortByRecency orders projects by updatedAt, newest first.
func SortByRecency(items []project.Project) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}

// ListRecent returns the adapter's projects newest first regardless of how
// the adapter orders them.
func ListRecent(ctx context.Context, adapter Adapter) ([]project.Project, error) {
	items, err := adapter.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	SortByRecency(items)
	return items, nil
}

// MergeDocument overlays the top-level keys of incoming onto existing.
func MergeDocument(existing, incoming []byte) ([]byte, error) {
	if len(existing) == 0 {
		return incoming, nil
	}
	base := map[string]json.RawMessage{}
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return nil, fmt.Errorf("decode incoming document: %w", err)
	}
	for key, value := range overlay {
		base[key] = value
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode merged document: %w", err)
	}
	return merged, nil
}
