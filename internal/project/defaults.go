package project

// EnsureContentDefaults returns a copy of the tree in which every node has
// text and whiteboard content and every folder has a children slice. It is
// applied on every load path so the rest of the engine never checks for
// missing content.
func EnsureContentDefaults(nodes []FileSystemNode) []FileSystemNode {
	out := make([]FileSystemNode, len(nodes))
	for i, node := range nodes {
		if node.TextContent == "" {
			node.TextContent = DefaultTextContent
		}
		node.WhiteboardContent = ensureWhiteboard(node.WhiteboardContent)
		if node.Type == "" {
			node.Type = NodeFile
			if node.Children != nil {
				node.Type = NodeFolder
			}
		}
		switch {
		case node.IsFolder():
			node.Children = EnsureContentDefaults(node.Children)
		default:
			node.Children = nil
		}
		out[i] = node
	}
	return out
}

func EnsureProjectDefaults(p Project) Project {
	if p.TextContent == "" {
		p.TextContent = DefaultTextContent
	}
	p.WhiteboardContent = ensureWhiteboard(p.WhiteboardContent)
	p.FileSystemRoots = EnsureContentDefaults(p.FileSystemRoots)
	return p
}

func ensureWhiteboard(w *WhiteboardData) *WhiteboardData {
	if w == nil {
		return DefaultWhiteboard()
	}
	if w.Elements != nil && w.AppState != nil && w.Files != nil {
		return w
	}
	out := *w
	if out.Elements == nil {
		out.Elements = []any{}
	}
	if out.AppState == nil {
		out.AppState = DefaultWhiteboard().AppState
	}
	if out.Files == nil {
		out.Files = map[string]any{}
	}
	return &out
}
