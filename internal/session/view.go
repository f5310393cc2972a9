package session

import (
	"context"
	"errors"
	"sync"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

var ErrNoActiveView = errors.New("no project view is mounted")

// ViewContext is shared between the navigation chrome and the page that
// owns the project tree. The page mounts its controller while it is shown;
// the chrome reads the project name and asks for new items through it.
type ViewContext struct {
	mu         sync.Mutex
	controller *Controller
	mountID    uint64
}

func NewViewContext() *ViewContext {
	return &ViewContext{}
}

// Mount makes c the active view and returns the matching unmount function.
// Unmounting after another controller was mounted is a no-op.
func (v *ViewContext) Mount(c *Controller) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mountID++
	id := v.mountID
	v.controller = c
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.mountID == id {
			v.controller = nil
		}
	}
}

func (v *ViewContext) Controller() (*Controller, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controller, v.controller != nil
}

// ProjectName is the mounted project's current name, or "" when nothing is
// mounted.
func (v *ViewContext) ProjectName() string {
	c, ok := v.Controller()
	if !ok {
		return ""
	}
	return c.Snapshot().Name
}

// RequestCreate creates a root-level item in the mounted project.
func (v *ViewContext) RequestCreate(ctx context.Context, kind project.NodeType, name string) (project.FileSystemNode, error) {
	c, ok := v.Controller()
	if !ok {
		return project.FileSystemNode{}, ErrNoActiveView
	}
	return c.CreateNode(ctx, "", name, kind)
}
