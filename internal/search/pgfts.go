package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// projectText is the searchable text of a projects row: the project name
// plus every node name and textContent in the JSONB document, markup stripped.
const projectText = `coalesce(p.name, '') || ' ' || regexp_replace(
	jsonb_path_query_array(p.doc, 'strict $.**.name')::text || ' ' ||
	jsonb_path_query_array(p.doc, 'strict $.**.textContent')::text,
	'<[^>]*>|[\[\]",]', ' ', 'g')`

// PgFTS implements Searcher using PostgreSQL full-text search over the
// projects table. It serves owners whose projects live in the remote store.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy reports whether a database is attached. If Postgres is down the
// remote store is down with it.
func (p *PgFTS) Healthy() bool {
	return p != nil && p.db != nil
}

// Search matches the query against the owner's projects with plainto_tsquery,
// ranked by ts_rank with ts_headline snippets. Hits resolve to whole projects.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	countSQL, dataSQL, args := pgftsQueries(q)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ProjectID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Snippet = PlainText(r.Snippet)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func pgftsQueries(q Query) (countSQL, dataSQL string, args []any) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	vector := "to_tsvector('simple', " + projectText + ")"
	where := fmt.Sprintf("%s @@ %s AND coalesce(p.owner_id, '') = $2", vector, tsQuery)
	args = []any{q.Text, q.OwnerID}

	countSQL = "SELECT count(*) FROM projects p WHERE " + where
	dataSQL = fmt.Sprintf(`SELECT p.id, p.name,
			ts_headline('simple', %s, %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM projects p
		WHERE %s
		ORDER BY ts_rank(%s, %s) DESC, p.updated_at DESC
		LIMIT %d OFFSET %d`,
		projectText, tsQuery, where, vector, tsQuery, limit, offset)
	return countSQL, dataSQL, args
}
