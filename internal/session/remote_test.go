package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

func revision(p project.Project, at time.Time, text string) project.Project {
	out := p.Clone()
	out.UpdatedAt = at
	out.TextContent = text
	return out
}

func TestOwnEchoIsDropped(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)

	require.NoError(t, f.ctrl.EditText("<p>mine</p>"))
	f.clock.Advance(2 * time.Second)
	saved := f.remote.Saves()[0]

	f.remote.Deliver(saved)
	assert.Equal(t, 0, f.events.count(EventRemoteApplied))

	stale := revision(saved, saved.UpdatedAt.Add(-time.Second), "<p>old</p>")
	f.remote.Deliver(stale)
	assert.Equal(t, "<p>mine</p>", f.ctrl.Active().Text)
}

func TestNewerRevisionIsAdopted(t *testing.T) {
	f := newFixture(t, folderProject(), "alice", false)
	_, err := f.ctrl.Select(context.Background(), "notes")
	require.NoError(t, err)

	incoming := f.ctrl.Snapshot()
	incoming.UpdatedAt = t0.Add(10 * time.Minute)
	roots, _ := project.UpdateContent(incoming.FileSystemRoots, "notes", project.ContentUpdate{Text: strPtr("<p>from bob</p>")})
	incoming.FileSystemRoots = roots
	f.remote.Deliver(incoming)

	assert.Equal(t, 1, f.events.count(EventRemoteApplied))
	assert.Equal(t, "<p>from bob</p>", f.ctrl.Active().Text)
	assert.Equal(t, incoming.UpdatedAt, f.ctrl.Snapshot().UpdatedAt)
}

func TestAdoptionFallsBackToRootWhenSelectionVanishes(t *testing.T) {
	f := newFixture(t, folderProject(), "alice", false)
	_, err := f.ctrl.Select(context.Background(), "api")
	require.NoError(t, err)

	incoming := f.ctrl.Snapshot()
	incoming.UpdatedAt = t0.Add(10 * time.Minute)
	_, _, incoming.FileSystemRoots = project.Remove(incoming.FileSystemRoots, "docs")
	incoming.TextContent = "<p>root</p>"
	f.remote.Deliver(incoming)

	active := f.ctrl.Active()
	assert.Equal(t, "", active.NodeID)
	assert.Equal(t, "<p>root</p>", active.Text)
	assert.Equal(t, "", f.ctrl.Status().SelectedID)
}

func TestRevisionOlderThanPendingEditIsDropped(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)

	require.NoError(t, f.ctrl.EditText("<p>unsaved</p>"))
	editAt := f.clock.Now()

	f.remote.Deliver(revision(demoProject(), editAt.Add(-time.Second), "<p>theirs</p>"))
	assert.Equal(t, "<p>unsaved</p>", f.ctrl.Active().Text)
	assert.True(t, f.ctrl.Status().Dirty)

	f.clock.Advance(2 * time.Second)
	saves := f.remote.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, "<p>unsaved</p>", saves[0].TextContent)
}

func TestNewerRevisionReplacesPendingEdit(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)

	require.NoError(t, f.ctrl.EditText("<p>unsaved</p>"))
	f.remote.Deliver(revision(demoProject(), f.clock.Now().Add(time.Second), "<p>theirs</p>"))

	assert.Equal(t, "<p>theirs</p>", f.ctrl.Active().Text)
	assert.False(t, f.ctrl.Status().Dirty)

	// adoption cancelled the pending save
	f.clock.Advance(5 * time.Second)
	assert.Empty(t, f.remote.Saves())
}

func TestRevisionMatchingInFlightSaveIsDropped(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	f.remote.mu.Lock()
	f.remote.block, f.remote.started = block, started
	f.remote.mu.Unlock()

	require.NoError(t, f.ctrl.EditText("<p>mine</p>"))
	stamp := f.clock.Now()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Flush(context.Background()) }()
	<-started

	// echo of the in-flight write arrives before Upsert returns
	f.remote.Deliver(revision(demoProject(), stamp, "<p>mine</p>"))
	assert.Equal(t, 0, f.events.count(EventRemoteApplied))

	close(block)
	require.NoError(t, <-done)
}

func TestUpdatedAtNeverRegresses(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)
	seen := []time.Time{f.ctrl.Snapshot().UpdatedAt}
	check := func() {
		current := f.ctrl.Snapshot().UpdatedAt
		for _, at := range seen {
			require.False(t, current.Before(at), "updatedAt regressed to %v after %v", current, at)
		}
		seen = append(seen, current)
	}

	require.NoError(t, f.ctrl.EditText("<p>1</p>"))
	f.clock.Advance(2 * time.Second)
	check()

	f.remote.Deliver(revision(demoProject(), t0.Add(time.Hour), "<p>remote</p>"))
	check()

	f.remote.Deliver(revision(demoProject(), t0.Add(30*time.Minute), "<p>older</p>"))
	check()

	require.NoError(t, f.ctrl.EditText("<p>2</p>"))
	f.clock.Advance(2 * time.Second)
	check()

	assert.Equal(t, "<p>2</p>", f.ctrl.Active().Text)
}

// Two clients share a project. A saves first; B's debounced save fires
// after A's write landed but before B heard about it.
func TestConcurrentClientsConvergeOnLaterWrite(t *testing.T) {
	shared := newFakeRemote(demoProject())
	open := func(clock *fakeClock) *Controller {
		ctrl := New("demo", Options{Local: newFakeRemote(), Remote: shared, Identity: "alice", Debounce: 1500 * time.Millisecond, Clock: clock})
		require.NoError(t, ctrl.Load(context.Background()))
		t.Cleanup(ctrl.Close)
		return ctrl
	}
	clockA := newFakeClock(t0.Add(time.Minute))
	clockB := newFakeClock(t0.Add(time.Minute))
	a, b := open(clockA), open(clockB)

	require.NoError(t, b.EditText("<p>from B</p>"))
	clockA.Advance(500 * time.Millisecond)
	require.NoError(t, a.EditText("<p>from A</p>"))
	require.NoError(t, a.Flush(context.Background()))
	fromA := shared.Saves()[0]

	clockB.Advance(3 * time.Second)
	saves := shared.Saves()
	require.Len(t, saves, 2)
	fromB := saves[1]
	assert.True(t, fromB.UpdatedAt.After(fromA.UpdatedAt))

	shared.Deliver(fromA)
	shared.Deliver(fromB)

	assert.Equal(t, "<p>from B</p>", a.Active().Text)
	assert.Equal(t, "<p>from B</p>", b.Active().Text)
	assert.Equal(t, fromB.UpdatedAt, a.Snapshot().UpdatedAt)

	stored, err := shared.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "<p>from B</p>", stored.TextContent)
}

func TestRevisionsAfterCloseAreIgnored(t *testing.T) {
	f := newFixture(t, demoProject(), "alice", false)
	handler := f.remote.handlers["demo"][0]
	f.ctrl.Close()

	handler(revision(demoProject(), t0.Add(time.Hour), "<p>late</p>"))
	assert.Equal(t, 0, f.events.count(EventRemoteApplied))
}

func strPtr(s string) *string {
	return &s
}
