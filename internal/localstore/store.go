// Package localstore keeps projects on this device in an embedded BadgerDB
// database. It backs anonymous sessions and holds work that has not been
// migrated to the remote store yet.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

const keyPrefix = "project:"

type Store struct {
	db *badger.DB
}

// Open opens the database under dir. An empty dir keeps everything in
// memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Store{db: db}, nil
}

func key(projectID string) []byte {
	return []byte(keyPrefix + projectID)
}

func (s *Store) Get(_ context.Context, projectID string) (project.Project, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(projectID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return project.Project{}, store.ErrNotFound
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("get local project %s: %w", projectID, err)
	}
	return project.Decode(payload)
}

// GetAll returns every local project in key order, which carries no recency
// meaning. Callers sort with store.SortByRecency.
func (s *Store) GetAll(_ context.Context) ([]project.Project, error) {
	items := make([]project.Project, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			p, err := project.Decode(payload)
			if err != nil {
				return fmt.Errorf("%s: %w", strings.TrimPrefix(string(item.Key()), keyPrefix), err)
			}
			items = append(items, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list local projects: %w", err)
	}
	return items, nil
}

func (s *Store) Upsert(_ context.Context, p project.Project) error {
	incoming, err := project.Encode(p)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		var existing []byte
		item, err := txn.Get(key(p.ID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if existing, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		merged, err := store.MergeDocument(existing, incoming)
		if err != nil {
			return err
		}
		return txn.Set(key(p.ID), merged)
	})
	if err != nil {
		return fmt.Errorf("upsert local project %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, projectID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(projectID))
	})
	if err != nil {
		return fmt.Errorf("delete local project %s: %w", projectID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
