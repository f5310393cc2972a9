// Package search finds projects by name and by the text of their documents.
package search

import (
	"html"
	"regexp"
	"strings"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// Result is a single search hit. NodeID is empty when the hit is the
// project root or when the backend only resolves whole projects.
type Result struct {
	ProjectID string `json:"projectId"`
	NodeID    string `json:"nodeId,omitempty"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request. OwnerID scopes results to one user's
// projects; empty means unclaimed projects only.
type Query struct {
	Text    string
	OwnerID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProjectRecord is the data indexed for one project.
type ProjectRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
	Body    string `json:"body"`
}

// RecordFor flattens a project into its search record: the root text,
// followed by every node's name and text in tree order.
func RecordFor(p project.Project) ProjectRecord {
	parts := []string{PlainText(p.TextContent)}
	var walk func(nodes []project.FileSystemNode)
	walk = func(nodes []project.FileSystemNode) {
		for _, node := range nodes {
			parts = append(parts, node.Name, PlainText(node.TextContent))
			walk(node.Children)
		}
	}
	walk(p.FileSystemRoots)

	body := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			body = append(body, part)
		}
	}
	return ProjectRecord{ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Body: strings.Join(body, "\n")}
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`[\s\x{00a0}]+`)
)

// PlainText strips markup from editor HTML and collapses whitespace.
func PlainText(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
