package session

import (
	"context"
	"fmt"
	"log"
	"time"
)

func (c *Controller) dirtyLocked() bool {
	return c.editGen > c.savedGen
}

func (c *Controller) markDirtyLocked() {
	c.editGen++
	c.pendingEditAt = c.nowLocked()
}

func (c *Controller) nowLocked() time.Time {
	return c.clock.Now().UTC().Truncate(time.Microsecond)
}

// stampLocked returns the updatedAt for the next save. It is always later
// than the current project timestamp, even when the wall clock is behind.
func (c *Controller) stampLocked() time.Time {
	now := c.nowLocked()
	if !now.After(c.project.UpdatedAt) {
		return c.project.UpdatedAt.Add(time.Microsecond)
	}
	return now
}

func (c *Controller) armTimerLocked() {
	c.cancelTimerLocked()
	token := c.timerToken
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.fire(token) })
}

// cancelTimerLocked stops the pending timer and bumps the token so a timer
// that already fired but has not taken the lock yet does nothing.
func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerToken++
}

func (c *Controller) fire(token uint64) {
	c.mu.Lock()
	if token != c.timerToken || c.liveLocked() != nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.dirtyLocked() {
		_ = c.saveLocked(context.Background(), false)
	}
	c.unlockAndDispatch()
}

// Flush saves pending edits now and waits for the result.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if err := c.liveLocked(); err != nil {
		return err
	}
	if !c.dirtyLocked() || c.readOnlyLocked() {
		return nil
	}
	return c.saveNowLocked(ctx)
}

// saveNowLocked cancels the debounce timer and saves the current snapshot,
// waiting for the attempt that carries it.
func (c *Controller) saveNowLocked(ctx context.Context) error {
	c.cancelTimerLocked()
	if err := c.saveLocked(ctx, true); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}

// saveLocked persists the latest snapshot. Only one save runs at a time;
// a request that arrives while one is in flight is queued and served by
// the running loop with the snapshot as of its next iteration. With wait
// set it returns the result of the attempt that covered the current edit
// generation. mu is held on entry and on return but released around
// adapter calls.
func (c *Controller) saveLocked(ctx context.Context, wait bool) error {
	target := c.editGen
	if c.saving {
		c.saveQueued = true
		if !wait {
			return nil
		}
		for c.attemptGen < target && c.state != StateClosed {
			c.cond.Wait()
		}
		if c.attemptGen < target {
			return ErrClosed
		}
		return c.attemptErr
	}

	c.runSavesLocked(ctx)
	if c.attemptGen < target {
		return ErrClosed
	}
	return c.attemptErr
}

func (c *Controller) runSavesLocked(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	// the save outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)

	c.saving = true
	c.state = StateSaving
	for {
		c.saveQueued = false
		gen := c.editGen
		snapshot := c.project.Clone()
		stamp := c.stampLocked()
		snapshot.UpdatedAt = stamp
		c.inFlightAt = stamp
		adapter := c.adapter

		c.mu.Unlock()
		callCtx, cancel := c.callContext(ctx)
		err := adapter.Upsert(callCtx, snapshot)
		cancel()
		c.mu.Lock()

		c.inFlightAt = time.Time{}
		c.attemptGen = gen
		c.attemptErr = err
		if c.state == StateClosed {
			break
		}
		if err != nil {
			log.Printf("session: save %s: %v", c.projectID, err)
			c.emitLocked(EventSaveFailed, err)
		} else {
			if stamp.After(c.lastSavedAt) {
				c.lastSavedAt = stamp
			}
			if stamp.After(c.project.UpdatedAt) {
				c.project.UpdatedAt = stamp
			}
			if gen > c.savedGen {
				c.savedGen = gen
			}
			if c.editGen == gen {
				c.pendingEditAt = time.Time{}
			}
			c.emitLocked(EventSaved, nil)
		}
		c.cond.Broadcast()
		if !c.saveQueued || c.editGen == gen {
			break
		}
	}

	c.saving = false
	c.saveQueued = false
	if c.state == StateSaving {
		c.state = StateReady
	}
	c.cond.Broadcast()
}
