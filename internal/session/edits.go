package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/util"
)

// EditText replaces the active text content. The change stays in memory
// until the debounce timer fires.
func (c *Controller) EditText(text string) error {
	return c.edit(project.ContentUpdate{Text: &text})
}

// EditWhiteboard replaces the active whiteboard scene. Scenes that only
// differ outside the tracked view fields do not schedule a save.
func (c *Controller) EditWhiteboard(scene *project.WhiteboardData) error {
	return c.edit(project.ContentUpdate{Whiteboard: scene})
}

func (c *Controller) edit(update project.ContentUpdate) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if err := c.writableLocked(); err != nil {
		return err
	}

	if update.Text != nil && *update.Text == c.active.Text {
		update.Text = nil
	}
	if update.Whiteboard != nil && project.SameScene(update.Whiteboard, c.active.Whiteboard) {
		update.Whiteboard = nil
	}
	if update.Text == nil && update.Whiteboard == nil {
		return nil
	}

	if c.selectedID == "" {
		if update.Text != nil {
			c.project.TextContent = *update.Text
		}
		if update.Whiteboard != nil {
			c.project.WhiteboardContent = update.Whiteboard
		}
	} else {
		roots, ok := project.UpdateContent(c.project.FileSystemRoots, c.selectedID, update)
		if !ok {
			c.resolveActiveLocked()
			return fmt.Errorf("edit node %s: %w", c.selectedID, project.ErrNodeNotFound)
		}
		c.project.FileSystemRoots = roots
	}
	c.resolveActiveLocked()
	c.markDirtyLocked()
	c.emitLocked(EventChanged, nil)
	c.armTimerLocked()
	return nil
}

// Select makes nodeID the active content; an empty id selects the project
// root. Pending edits of the content being left are saved first. The
// selection changes even when that save fails; the error is returned so the
// caller can report it.
func (c *Controller) Select(ctx context.Context, nodeID string) (Content, error) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if err := c.liveLocked(); err != nil {
		return Content{}, err
	}
	if nodeID != "" {
		if _, ok := project.Find(c.project.FileSystemRoots, nodeID); !ok {
			return Content{}, fmt.Errorf("select %s: %w", nodeID, project.ErrNodeNotFound)
		}
	}

	var flushErr error
	if c.dirtyLocked() && !c.readOnlyLocked() {
		flushErr = c.saveNowLocked(ctx)
	}
	if c.state == StateClosed {
		return Content{}, ErrClosed
	}

	c.selectedID = nodeID
	c.resolveActiveLocked()
	return c.active, flushErr
}

// CreateNode adds a file or folder under parentID (the root when empty) and
// saves immediately. The selection is left unchanged.
func (c *Controller) CreateNode(ctx context.Context, parentID, name string, kind project.NodeType) (project.FileSystemNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return project.FileSystemNode{}, project.ErrEmptyName
	}
	if kind != project.NodeFile && kind != project.NodeFolder {
		return project.FileSystemNode{}, fmt.Errorf("create node: unknown type %q", kind)
	}
	node := project.NewNode(util.NewID(nodePrefix(kind)), name, kind)

	err := c.mutate(ctx, func(p *project.Project) error {
		if parentID != "" {
			parent, ok := project.Find(p.FileSystemRoots, parentID)
			if !ok {
				return fmt.Errorf("create node in %s: %w", parentID, project.ErrNodeNotFound)
			}
			if !parent.IsFolder() {
				return fmt.Errorf("create node in %s: %w", parentID, project.ErrNotFolder)
			}
		}
		roots, _ := project.Insert(p.FileSystemRoots, parentID, node)
		p.FileSystemRoots = roots
		return nil
	})
	if err != nil && !isSaveFailure(err) {
		return project.FileSystemNode{}, err
	}
	return node, err
}

func isSaveFailure(err error) bool {
	return errors.Is(err, ErrSaveFailed)
}

func nodePrefix(kind project.NodeType) string {
	if kind == project.NodeFolder {
		return "dir"
	}
	return "file"
}

// DeleteNode removes nodeID and its subtree and saves immediately.
func (c *Controller) DeleteNode(ctx context.Context, nodeID string) error {
	return c.mutate(ctx, func(p *project.Project) error {
		_, found, roots := project.Remove(p.FileSystemRoots, nodeID)
		if !found {
			return fmt.Errorf("delete %s: %w", nodeID, project.ErrNodeNotFound)
		}
		p.FileSystemRoots = roots
		return nil
	})
}

// MoveNode re-parents nodeID under targetFolderID (the root when empty).
// Invalid moves are rejected before anything changes.
func (c *Controller) MoveNode(ctx context.Context, nodeID, targetFolderID string) error {
	return c.mutate(ctx, func(p *project.Project) error {
		roots, err := project.Move(p.FileSystemRoots, nodeID, targetFolderID)
		if err != nil {
			return fmt.Errorf("move %s: %w", nodeID, err)
		}
		p.FileSystemRoots = roots
		return nil
	})
}

func (c *Controller) RenameNode(ctx context.Context, nodeID, name string) error {
	return c.mutate(ctx, func(p *project.Project) error {
		roots, err := project.Rename(p.FileSystemRoots, nodeID, name)
		if err != nil {
			return fmt.Errorf("rename %s: %w", nodeID, err)
		}
		p.FileSystemRoots = roots
		return nil
	})
}

// Rename changes the project name and saves immediately.
func (c *Controller) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return c.mutate(ctx, func(p *project.Project) error {
		if name == "" {
			return fmt.Errorf("rename project: %w", project.ErrEmptyName)
		}
		p.Name = name
		return nil
	})
}

// mutate applies fn to a copy of the project, adopts the result and saves
// it at once. When fn fails nothing changes and nothing is saved. A failed
// save keeps the change in memory and returns an ErrSaveFailed error.
func (c *Controller) mutate(ctx context.Context, fn func(p *project.Project) error) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if err := c.writableLocked(); err != nil {
		return err
	}

	next := c.project.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	c.project = next
	c.resolveActiveLocked()
	c.markDirtyLocked()
	c.emitLocked(EventChanged, nil)
	return c.saveNowLocked(ctx)
}
