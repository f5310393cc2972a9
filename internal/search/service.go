package search

import (
	"context"
	"log"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

// Service is the facade that tries Meilisearch first. Without a healthy
// index it falls back to Postgres full-text search for owners backed by the
// remote store, and to an in-process scan of the local store otherwise.
type Service struct {
	meili  *Meili
	remote Searcher
	local  *Scan
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured; remote may be nil when no database is configured.
func NewService(meili *Meili, remote Searcher, local *Scan) *Service {
	return &Service{meili: meili, remote: remote, local: local}
}

// Search tries Meilisearch if healthy, otherwise falls back to the backend
// that holds the owner's projects.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	fallback, name := s.fallbackFor(q.OwnerID)
	if fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := fallback.Search(q)
	if err != nil {
		log.Printf("search: %s error: %v", name, err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func (s *Service) fallbackFor(ownerID string) (Searcher, string) {
	if ownerID != "" && s.remote != nil && s.remote.Healthy() {
		return s.remote, "pgfts"
	}
	if s.local == nil {
		return nil, ""
	}
	return s.local, "scan"
}

// IndexProject indexes a project (fire-and-forget to Meilisearch).
func (s *Service) IndexProject(p project.Project) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFor(p)
	go func() {
		if err := s.meili.IndexProject(record); err != nil {
			log.Printf("search: index project %s: %v", record.ID, err)
		}
	}()
}

// DeleteProject removes a project from the search index (fire-and-forget).
func (s *Service) DeleteProject(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteProject(id); err != nil {
			log.Printf("search: delete project %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes every project the adapter lists to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context, adapter store.Adapter) {
	if s.meili == nil || !s.meili.Healthy() || adapter == nil {
		return
	}
	items, err := adapter.GetAll(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	records := make([]ProjectRecord, 0, len(items))
	for _, item := range items {
		records = append(records, RecordFor(item))
	}
	if err := s.meili.IndexProjects(records); err != nil {
		log.Printf("search: reindex projects: %v", err)
	}
}

// Hooks keeps the index current with store writes.
func (s *Service) Hooks() store.Hooks {
	return store.Hooks{
		AfterUpsert: []func(context.Context, project.Project){
			func(_ context.Context, p project.Project) { s.IndexProject(p) },
		},
		AfterDelete: []func(context.Context, string){
			func(_ context.Context, id string) { s.DeleteProject(id) },
		},
	}
}
