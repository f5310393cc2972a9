package session

import (
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// applyRemote reconciles a revision delivered by the remote subscription.
// A revision is dropped when it is not newer than this client's own saves
// (the echo of a save, possibly still in flight), when it is older than a
// local edit that has not been saved yet, or when adopting it would move
// updatedAt backwards.
func (c *Controller) applyRemote(incoming project.Project) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.liveLocked() != nil || incoming.ID != c.projectID {
		return
	}

	at := incoming.UpdatedAt
	if !at.After(c.lastSavedAt) || !at.After(c.inFlightAt) {
		return
	}
	if !c.pendingEditAt.IsZero() && at.Before(c.pendingEditAt) {
		return
	}
	if at.Before(c.project.UpdatedAt) {
		return
	}

	c.project = project.EnsureProjectDefaults(incoming.Clone())
	c.cancelTimerLocked()
	c.pendingEditAt = time.Time{}
	c.savedGen = c.editGen
	c.resolveActiveLocked()
	c.emitLocked(EventRemoteApplied, nil)
}
