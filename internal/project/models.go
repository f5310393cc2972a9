// Package project holds the project document model and the pure operations
// over its file tree.
package project

import (
	"encoding/json"
	"time"
)

type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// DefaultTextContent is the editor's representation of an empty document.
const DefaultTextContent = "<p></p>"

// Project is the unit of persistence and sharing.
type Project struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	OwnerID           string           `json:"ownerId,omitempty"`
	TextContent       string           `json:"textContent"`
	WhiteboardContent *WhiteboardData  `json:"whiteboardContent"`
	FileSystemRoots   []FileSystemNode `json:"fileSystemRoots"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// FileSystemNode is a file or folder entry. Folders carry their own content
// just like files do.
type FileSystemNode struct {
	ID                string
	Name              string
	Type              NodeType
	Children          []FileSystemNode
	TextContent       string
	WhiteboardContent *WhiteboardData
}

type nodeJSON struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Type              NodeType          `json:"type"`
	Children          *[]FileSystemNode `json:"children,omitempty"`
	TextContent       string            `json:"textContent"`
	WhiteboardContent *WhiteboardData   `json:"whiteboardContent"`
}

// MarshalJSON writes children for folders only; an empty folder serializes
// as "children": [].
func (n FileSystemNode) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		ID:                n.ID,
		Name:              n.Name,
		Type:              n.Type,
		TextContent:       n.TextContent,
		WhiteboardContent: n.WhiteboardContent,
	}
	if n.Type == NodeFolder {
		children := n.Children
		if children == nil {
			children = []FileSystemNode{}
		}
		out.Children = &children
	}
	return json.Marshal(out)
}

func (n *FileSystemNode) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = FileSystemNode{
		ID:                in.ID,
		Name:              in.Name,
		Type:              in.Type,
		TextContent:       in.TextContent,
		WhiteboardContent: in.WhiteboardContent,
	}
	if in.Children != nil {
		n.Children = *in.Children
		if n.Children == nil {
			n.Children = []FileSystemNode{}
		}
	}
	return nil
}

func (n FileSystemNode) IsFolder() bool {
	return n.Type == NodeFolder
}

// New returns a normalized, empty project.
func New(id, name, ownerID string, now time.Time) Project {
	now = now.UTC()
	return EnsureProjectDefaults(Project{
		ID:              id,
		Name:            name,
		OwnerID:         ownerID,
		FileSystemRoots: []FileSystemNode{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// NewNode returns a node with a fresh identity and default content.
func NewNode(id, name string, kind NodeType) FileSystemNode {
	node := FileSystemNode{
		ID:                id,
		Name:              name,
		Type:              kind,
		TextContent:       DefaultTextContent,
		WhiteboardContent: DefaultWhiteboard(),
	}
	if kind == NodeFolder {
		node.Children = []FileSystemNode{}
	}
	return node
}

// Clone returns a deep copy of the tree structure. Whiteboard payloads are
// shared; they are replaced wholesale on edit and never mutated in place.
func (p Project) Clone() Project {
	out := p
	out.FileSystemRoots = CloneTree(p.FileSystemRoots)
	return out
}

func CloneTree(nodes []FileSystemNode) []FileSystemNode {
	if nodes == nil {
		return nil
	}
	out := make([]FileSystemNode, len(nodes))
	for i, node := range nodes {
		out[i] = node
		if node.Children != nil {
			out[i].Children = CloneTree(node.Children)
		}
	}
	return out
}
