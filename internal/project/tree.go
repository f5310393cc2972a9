package project

import (
	"errors"
	"strings"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrNotFolder    = errors.New("target is not a folder")
	ErrSelfMove     = errors.New("cannot move a node into itself")
	ErrCycle        = errors.New("cannot move a folder into its own subtree")
	ErrEmptyName    = errors.New("name must not be empty")
)

// ContentUpdate carries the content fields to replace; nil fields are kept.
type ContentUpdate struct {
	Text       *string
	Whiteboard *WhiteboardData
}

// Every operation below is copy-on-write: the slices on the path from the
// root to the touched node are rebuilt, untouched subtrees are shared, and
// the caller's tree is never modified.

// Find returns the first node with id in depth-first order.
func Find(nodes []FileSystemNode, id string) (FileSystemNode, bool) {
	for _, node := range nodes {
		if node.ID == id {
			return node, true
		}
		if found, ok := Find(node.Children, id); ok {
			return found, true
		}
	}
	return FileSystemNode{}, false
}

// Insert appends node to the folder parentID, or to the root when parentID
// is empty. It reports false, with the tree unchanged, when parentID does not
// resolve to a folder.
func Insert(nodes []FileSystemNode, parentID string, node FileSystemNode) ([]FileSystemNode, bool) {
	if parentID == "" {
		out := make([]FileSystemNode, 0, len(nodes)+1)
		out = append(out, nodes...)
		return append(out, node), true
	}
	return updateNode(nodes, parentID, func(parent FileSystemNode) (FileSystemNode, bool) {
		if !parent.IsFolder() {
			return parent, false
		}
		children := make([]FileSystemNode, 0, len(parent.Children)+1)
		children = append(children, parent.Children...)
		parent.Children = append(children, node)
		return parent, true
	})
}

func UpdateContent(nodes []FileSystemNode, id string, update ContentUpdate) ([]FileSystemNode, bool) {
	return updateNode(nodes, id, func(node FileSystemNode) (FileSystemNode, bool) {
		if update.Text != nil {
			node.TextContent = *update.Text
		}
		if update.Whiteboard != nil {
			node.WhiteboardContent = update.Whiteboard
		}
		return node, true
	})
}

func Rename(nodes []FileSystemNode, id, name string) ([]FileSystemNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nodes, ErrEmptyName
	}
	out, ok := updateNode(nodes, id, func(node FileSystemNode) (FileSystemNode, bool) {
		node.Name = name
		return node, true
	})
	if !ok {
		return nodes, ErrNodeNotFound
	}
	return out, nil
}

// Remove detaches id and its whole subtree from wherever it is nested.
func Remove(nodes []FileSystemNode, id string) (FileSystemNode, bool, []FileSystemNode) {
	for i, node := range nodes {
		if node.ID == id {
			out := make([]FileSystemNode, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			out = append(out, nodes[i+1:]...)
			return node, true, out
		}
	}
	for i, node := range nodes {
		if len(node.Children) == 0 {
			continue
		}
		removed, ok, children := Remove(node.Children, id)
		if !ok {
			continue
		}
		out := make([]FileSystemNode, len(nodes))
		copy(out, nodes)
		node.Children = children
		out[i] = node
		return removed, true, out
	}
	return FileSystemNode{}, false, nodes
}

// Move re-parents nodeID under targetFolderID (the root when empty). All
// preconditions are checked before anything is detached.
func Move(nodes []FileSystemNode, nodeID, targetFolderID string) ([]FileSystemNode, error) {
	if nodeID == targetFolderID {
		return nodes, ErrSelfMove
	}
	if _, ok := Find(nodes, nodeID); !ok {
		return nodes, ErrNodeNotFound
	}
	if targetFolderID != "" {
		target, ok := Find(nodes, targetFolderID)
		if !ok {
			return nodes, ErrNodeNotFound
		}
		if !target.IsFolder() {
			return nodes, ErrNotFolder
		}
		ancestors, _ := Ancestors(nodes, targetFolderID)
		for _, ancestorID := range ancestors {
			if ancestorID == nodeID {
				return nodes, ErrCycle
			}
		}
	}

	moved, _, detached := Remove(nodes, nodeID)
	out, ok := Insert(detached, targetFolderID, moved)
	if !ok {
		return nodes, ErrNotFolder
	}
	return out, nil
}

// Ancestors returns the ids of the folders enclosing id, nearest first.
func Ancestors(nodes []FileSystemNode, id string) ([]string, bool) {
	var path []string
	if !ancestorPath(nodes, id, &path) {
		return nil, false
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

func ancestorPath(nodes []FileSystemNode, id string, path *[]string) bool {
	for _, node := range nodes {
		if node.ID == id {
			return true
		}
		*path = append(*path, node.ID)
		if ancestorPath(node.Children, id, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

// Contains reports whether id is ancestorID itself or nested below it.
func Contains(nodes []FileSystemNode, ancestorID, id string) bool {
	if ancestorID == id {
		_, ok := Find(nodes, id)
		return ok
	}
	ancestors, ok := Ancestors(nodes, id)
	if !ok {
		return false
	}
	for _, a := range ancestors {
		if a == ancestorID {
			return true
		}
	}
	return false
}

func Count(nodes []FileSystemNode) int {
	total := 0
	for _, node := range nodes {
		total += 1 + Count(node.Children)
	}
	return total
}

// Walk visits every node depth-first and lets fn modify it in place. Only
// use it on trees the caller owns (for example a Clone).
func Walk(nodes []FileSystemNode, fn func(node *FileSystemNode)) {
	for i := range nodes {
		fn(&nodes[i])
		Walk(nodes[i].Children, fn)
	}
}

func updateNode(nodes []FileSystemNode, id string, fn func(FileSystemNode) (FileSystemNode, bool)) ([]FileSystemNode, bool) {
	out, found, ok := rewrite(nodes, id, fn)
	if !found || !ok {
		return nodes, false
	}
	return out, true
}

// rewrite rebuilds the path to the first node with id. found reports whether
// id exists at all; ok whether fn accepted the change.
func rewrite(nodes []FileSystemNode, id string, fn func(FileSystemNode) (FileSystemNode, bool)) ([]FileSystemNode, bool, bool) {
	for i, node := range nodes {
		var (
			updated   FileSystemNode
			found, ok bool
		)
		if node.ID == id {
			updated, ok = fn(node)
			found = true
		} else if len(node.Children) > 0 {
			var children []FileSystemNode
			children, found, ok = rewrite(node.Children, id, fn)
			node.Children = children
			updated = node
		}
		if !found {
			continue
		}
		if !ok {
			return nodes, true, false
		}
		out := make([]FileSystemNode, len(nodes))
		copy(out, nodes)
		out[i] = updated
		return out, true, true
	}
	return nodes, false, false
}
