package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// PostgresStore keeps one row per project. The full project document lives
// in a JSONB column; id, owner, name and timestamps are mirrored into columns
// for ownership checks and recency listings.
type PostgresStore struct {
	db      *sql.DB
	ownerID string
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// ForOwner scopes GetAll to the projects owned by ownerID.
func (s *PostgresStore) ForOwner(ownerID string) *PostgresStore {
	return &PostgresStore{db: s.db, ownerID: ownerID}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, projectID string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(owner_id, ''), name, doc, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID)
	item, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, ErrNotFound
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return item, nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]project.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if s.ownerID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, COALESCE(owner_id, ''), name, doc, created_at, updated_at
			FROM projects
			ORDER BY updated_at DESC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, COALESCE(owner_id, ''), name, doc, created_at, updated_at
			FROM projects
			WHERE owner_id=$1
			ORDER BY updated_at DESC
		`, s.ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]project.Project, 0)
	for rows.Next() {
		item, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p project.Project) error {
	doc, err := project.Encode(p)
	if err != nil {
		return err
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = p.UpdatedAt
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, doc, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4::jsonb, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = COALESCE(EXCLUDED.owner_id, projects.owner_id),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), projects.name),
			doc = projects.doc || EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.OwnerID, p.Name, string(doc), createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID); err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (project.Project, error) {
	var (
		id, ownerID, name    string
		doc                  []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &name, &doc, &createdAt, &updatedAt); err != nil {
		return project.Project{}, err
	}
	item, err := project.Decode(doc)
	if err != nil {
		return project.Project{}, err
	}
	// columns are authoritative for the mirrored fields
	item.ID = id
	item.OwnerID = ownerID
	item.Name = name
	item.CreatedAt = createdAt.UTC()
	item.UpdatedAt = updatedAt.UTC()
	return item, nil
}
