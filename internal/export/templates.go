package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("project.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.UTC().Format(layout)
	},
	"indent": func(depth int) string {
		if depth <= 1 {
			return "0"
		}
		return fmt.Sprintf("%.1f", float64(depth-1)*1.5)
	},
}).ParseFS(templateFS, "templates/project.html"))

// BuildDocument lays out p for rendering: the root document first, then
// every node depth-first with its slash-separated path.
func BuildDocument(p project.Project, version string) Document {
	doc := Document{
		ID:        p.ID,
		Title:     p.Name,
		Owner:     p.OwnerID,
		UpdatedAt: p.UpdatedAt,
		Version:   version,
	}
	doc.Sections = append(doc.Sections, Section{
		ID:       "root",
		Title:    p.Name,
		Body:     body(p.TextContent),
		Elements: elementCount(p.WhiteboardContent),
	})

	var walk func(nodes []project.FileSystemNode, parents []string)
	walk = func(nodes []project.FileSystemNode, parents []string) {
		for _, node := range nodes {
			path := append(append([]string{}, parents...), node.Name)
			doc.Sections = append(doc.Sections, Section{
				ID:       node.ID,
				Title:    node.Name,
				Path:     strings.Join(path, "/"),
				Depth:    len(path),
				Folder:   node.IsFolder(),
				Body:     body(node.TextContent),
				Elements: elementCount(node.WhiteboardContent),
			})
			walk(node.Children, path)
		}
	}
	walk(p.FileSystemRoots, nil)
	return doc
}

// body marks editor HTML as trusted markup. Empty documents render nothing.
func body(text string) template.HTML {
	if strings.TrimSpace(text) == "" || text == project.DefaultTextContent {
		return ""
	}
	return template.HTML(text)
}

func elementCount(w *project.WhiteboardData) int {
	if w == nil {
		return 0
	}
	return len(w.Elements)
}

// RenderHTML renders doc as a standalone page.
func RenderHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
