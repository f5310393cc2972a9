package store

import (
	"context"
	"fmt"
	"log"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// RemoteStore is the cloud-backed adapter: PostgreSQL holds the documents
// and a ChangeFeed fans every committed revision out to subscribers.
type RemoteStore struct {
	db   *PostgresStore
	feed ChangeFeed
}

func NewRemoteStore(db *PostgresStore, feed ChangeFeed) *RemoteStore {
	return &RemoteStore{db: db, feed: feed}
}

// ForOwner returns a RemoteStore whose listing is scoped to ownerID.
func (s *RemoteStore) ForOwner(ownerID string) *RemoteStore {
	return &RemoteStore{db: s.db.ForOwner(ownerID), feed: s.feed}
}

func (s *RemoteStore) Get(ctx context.Context, projectID string) (project.Project, error) {
	return s.db.Get(ctx, projectID)
}

func (s *RemoteStore) GetAll(ctx context.Context) ([]project.Project, error) {
	return s.db.GetAll(ctx)
}

// Upsert writes p and publishes the merged revision as the server sees it.
// A failed publish is logged but does not fail the write.
func (s *RemoteStore) Upsert(ctx context.Context, p project.Project) error {
	if err := s.db.Upsert(ctx, p); err != nil {
		return err
	}
	if s.feed == nil {
		return nil
	}
	stored, err := s.db.Get(ctx, p.ID)
	if err != nil {
		log.Printf("store: reload %s for publish: %v", p.ID, err)
		return nil
	}
	payload, err := project.Encode(stored)
	if err != nil {
		log.Printf("store: encode %s for publish: %v", p.ID, err)
		return nil
	}
	if err := s.feed.Publish(ctx, p.ID, payload); err != nil {
		log.Printf("store: publish %s: %v", p.ID, err)
	}
	return nil
}

func (s *RemoteStore) Delete(ctx context.Context, projectID string) error {
	return s.db.Delete(ctx, projectID)
}

func (s *RemoteStore) Subscribe(ctx context.Context, projectID string, onChange func(project.Project)) (func(), error) {
	if s.feed == nil {
		return nil, fmt.Errorf("subscribe %s: no change feed configured", projectID)
	}
	return s.feed.Subscribe(ctx, projectID, func(payload []byte) {
		item, err := project.Decode(payload)
		if err != nil {
			log.Printf("store: drop undecodable revision of %s: %v", projectID, err)
			return
		}
		onChange(item)
	})
}

func (s *RemoteStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
