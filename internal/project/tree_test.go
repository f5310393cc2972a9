package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree:
//
//	docs/          (folder)
//	  specs/       (folder)
//	    api.md
//	  notes.md
//	readme.md
func sampleTree() []FileSystemNode {
	api := NewNode("api", "api.md", NodeFile)
	specs := NewNode("specs", "specs", NodeFolder)
	specs.Children = []FileSystemNode{api}
	notes := NewNode("notes", "notes.md", NodeFile)
	docs := NewNode("docs", "docs", NodeFolder)
	docs.Children = []FileSystemNode{specs, notes}
	readme := NewNode("readme", "readme.md", NodeFile)
	return []FileSystemNode{docs, readme}
}

func TestFindNested(t *testing.T) {
	tree := sampleTree()

	node, ok := Find(tree, "api")
	require.True(t, ok)
	assert.Equal(t, "api.md", node.Name)

	_, ok = Find(tree, "missing")
	assert.False(t, ok)
}

func TestInsertAtRootAndIntoFolder(t *testing.T) {
	tree := sampleTree()

	out, ok := Insert(tree, "", NewNode("todo", "todo.md", NodeFile))
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, "todo", out[2].ID)
	assert.Len(t, tree, 2, "input tree must not change")

	out, ok = Insert(tree, "specs", NewNode("db", "db.md", NodeFile))
	require.True(t, ok)
	specs, _ := Find(out, "specs")
	require.Len(t, specs.Children, 2)
	assert.Equal(t, "db", specs.Children[1].ID)

	original, _ := Find(tree, "specs")
	assert.Len(t, original.Children, 1, "input tree must not change")
}

func TestInsertIntoFileIsNoop(t *testing.T) {
	tree := sampleTree()

	out, ok := Insert(tree, "readme", NewNode("x", "x", NodeFile))
	assert.False(t, ok)
	assert.Equal(t, tree, out)

	out, ok = Insert(tree, "missing", NewNode("x", "x", NodeFile))
	assert.False(t, ok)
	assert.Equal(t, tree, out)
}

func TestUpdateContentTouchesOnlyTarget(t *testing.T) {
	tree := sampleTree()
	text := "<p>hello</p>"

	out, ok := UpdateContent(tree, "notes", ContentUpdate{Text: &text})
	require.True(t, ok)

	notes, _ := Find(out, "notes")
	assert.Equal(t, text, notes.TextContent)
	api, _ := Find(out, "api")
	assert.Equal(t, DefaultTextContent, api.TextContent)

	before, _ := Find(tree, "notes")
	assert.Equal(t, DefaultTextContent, before.TextContent)
}

func TestRemoveCascades(t *testing.T) {
	tree := sampleTree()
	total := Count(tree)

	removed, ok, out := Remove(tree, "docs")
	require.True(t, ok)
	assert.Equal(t, "docs", removed.ID)
	// docs has three descendants: specs, api, notes
	assert.Equal(t, total-4, Count(out))
	for _, id := range []string{"docs", "specs", "api", "notes"} {
		_, found := Find(out, id)
		assert.False(t, found, id)
	}
	assert.Equal(t, total, Count(tree))

	_, ok, same := Remove(tree, "missing")
	assert.False(t, ok)
	assert.Equal(t, tree, same)
}

func TestMoveIntoFolder(t *testing.T) {
	tree := sampleTree()

	out, err := Move(tree, "readme", "specs")
	require.NoError(t, err)

	ancestors, ok := Ancestors(out, "readme")
	require.True(t, ok)
	assert.Equal(t, []string{"specs", "docs"}, ancestors)
	assert.Equal(t, Count(tree), Count(out))
}

func TestMoveToRoot(t *testing.T) {
	out, err := Move(sampleTree(), "api", "")
	require.NoError(t, err)
	assert.Equal(t, "api", out[len(out)-1].ID)
}

func TestMoveRejectsSelfMove(t *testing.T) {
	tree := sampleTree()
	for _, id := range []string{"docs", "specs", "api", "readme"} {
		out, err := Move(tree, id, id)
		assert.ErrorIs(t, err, ErrSelfMove)
		assert.Equal(t, tree, out)
	}
}

func TestMoveRejectsCycle(t *testing.T) {
	tree := sampleTree()

	out, err := Move(tree, "docs", "specs")
	assert.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, tree, out)

	docs, _ := Find(tree, "docs")
	out, err = Move(tree, "docs", docs.Children[0].ID)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, tree, out)
}

func TestMoveRejectsFileTarget(t *testing.T) {
	tree := sampleTree()
	_, err := Move(tree, "notes", "readme")
	assert.ErrorIs(t, err, ErrNotFolder)

	_, err = Move(tree, "ghost", "docs")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRename(t *testing.T) {
	tree := sampleTree()

	out, err := Rename(tree, "notes", "  journal.md ")
	require.NoError(t, err)
	notes, _ := Find(out, "notes")
	assert.Equal(t, "journal.md", notes.Name)

	_, err = Rename(tree, "notes", "   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = Rename(tree, "ghost", "x")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestEnsureContentDefaultsIsIdempotent(t *testing.T) {
	raw := []FileSystemNode{
		{ID: "a", Name: "a", Type: NodeFolder, Children: []FileSystemNode{
			{ID: "b", Name: "b", Type: NodeFile},
			{ID: "c", Name: "c", Type: NodeFolder},
		}},
		{ID: "d", Name: "d", Type: NodeFile, TextContent: "<p>kept</p>",
			WhiteboardContent: &WhiteboardData{Elements: []any{map[string]any{"id": "e1"}}}},
	}

	once := EnsureContentDefaults(raw)
	twice := EnsureContentDefaults(once)
	assert.Equal(t, once, twice)

	Walk(CloneTree(once), func(node *FileSystemNode) {
		assert.NotEmpty(t, node.TextContent, node.ID)
		require.NotNil(t, node.WhiteboardContent, node.ID)
		assert.NotNil(t, node.WhiteboardContent.AppState, node.ID)
	})

	c, _ := Find(once, "c")
	assert.NotNil(t, c.Children)
	assert.Empty(t, c.Children)

	d, _ := Find(once, "d")
	assert.Equal(t, "<p>kept</p>", d.TextContent)
	assert.Len(t, d.WhiteboardContent.Elements, 1)
}

func TestNodeJSONChildrenPresence(t *testing.T) {
	folder := NewNode("f", "folder", NodeFolder)
	file := NewNode("x", "file", NodeFile)

	payload, err := json.Marshal([]FileSystemNode{folder, file})
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	children, ok := raw[0]["children"]
	require.True(t, ok, "folder must serialize children")
	assert.Equal(t, []any{}, children)
	_, ok = raw[1]["children"]
	assert.False(t, ok, "file must not serialize children")

	var decoded []FileSystemNode
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.NotNil(t, decoded[0].Children)
	assert.Nil(t, decoded[1].Children)
}
