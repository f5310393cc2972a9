package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// Lister returns the projects visible to ownerID.
type Lister func(ctx context.Context, ownerID string) ([]project.Project, error)

// Scan implements Searcher by matching the query against every project the
// lister returns. It needs no index and serves the device-local store when
// Meilisearch is not configured or unhealthy.
type Scan struct {
	list Lister
}

func NewScan(list Lister) *Scan {
	return &Scan{list: list}
}

func (s *Scan) Healthy() bool {
	return true
}

func (s *Scan) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	items, err := s.list(context.Background(), q.OwnerID)
	if err != nil {
		return nil, 0, fmt.Errorf("scan list: %w", err)
	}

	var all []Result
	for _, p := range items {
		if p.OwnerID != q.OwnerID {
			continue
		}
		all = append(all, matchProject(p, needle)...)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func matchProject(p project.Project, needle string) []Result {
	var results []Result
	if snippet, ok := match(needle, p.Name, PlainText(p.TextContent)); ok {
		results = append(results, Result{ProjectID: p.ID, Title: p.Name, Snippet: snippet})
	}
	var walk func(nodes []project.FileSystemNode)
	walk = func(nodes []project.FileSystemNode) {
		for _, node := range nodes {
			if snippet, ok := match(needle, node.Name, PlainText(node.TextContent)); ok {
				results = append(results, Result{ProjectID: p.ID, NodeID: node.ID, Title: node.Name, Snippet: snippet})
			}
			walk(node.Children)
		}
	}
	walk(p.FileSystemRoots)
	return results
}

// match reports whether needle occurs in title or body and returns a short
// excerpt of the body around the first occurrence.
func match(needle, title, body string) (string, bool) {
	lowerBody := strings.ToLower(body)
	if i := strings.Index(lowerBody, needle); i >= 0 && len(lowerBody) == len(body) {
		return excerpt(body, i, len(needle)), true
	}
	if strings.Contains(lowerBody, needle) {
		return truncate(body, 120), true
	}
	if strings.Contains(strings.ToLower(title), needle) {
		return truncate(body, 120), true
	}
	return "", false
}

func excerpt(body string, at, length int) string {
	const radius = 40
	start := at - radius
	if start < 0 {
		start = 0
	}
	end := at + length + radius
	if end > len(body) {
		end = len(body)
	}
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}
	out := body[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(body) {
		out += "…"
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
