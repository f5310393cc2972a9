package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers in deadline order, outside
// the clock's lock.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due []*fakeTimer
		for _, t := range f.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			f.now = target
			f.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		if next.at.After(f.now) {
			f.now = next.at
		}
		f.mu.Unlock()
		next.fn()
	}
}

func (f *fakeClock) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeRemote is an in-memory Remote whose subscription deliveries are
// triggered by the test.
type fakeRemote struct {
	mu        sync.Mutex
	items     map[string]project.Project
	saves     []project.Project
	upsertErr error
	// block, when set, holds every Upsert until it is closed; started
	// receives one value per blocked call.
	block   chan struct{}
	started chan struct{}

	handlers     map[string][]func(project.Project)
	unsubscribed int
}

func newFakeRemote(items ...project.Project) *fakeRemote {
	f := &fakeRemote{items: map[string]project.Project{}, handlers: map[string][]func(project.Project){}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeRemote) Get(_ context.Context, id string) (project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return project.Project{}, store.ErrNotFound
	}
	return item.Clone(), nil
}

func (f *fakeRemote) GetAll(context.Context) ([]project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]project.Project, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	store.SortByRecency(out)
	return out, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, p project.Project) error {
	f.mu.Lock()
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.items[p.ID] = p.Clone()
	f.saves = append(f.saves, p.Clone())
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, id string, onChange func(project.Project)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[id] = append(f.handlers[id], onChange)
	index := len(f.handlers[id]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[id][index] = nil
		f.unsubscribed++
	}, nil
}

// Deliver pushes p to every live subscriber of its project.
func (f *fakeRemote) Deliver(p project.Project) {
	f.mu.Lock()
	handlers := append([]func(project.Project){}, f.handlers[p.ID]...)
	f.mu.Unlock()
	for _, fn := range handlers {
		if fn != nil {
			fn(p.Clone())
		}
	}
}

func (f *fakeRemote) Saves() []project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]project.Project{}, f.saves...)
}

func (f *fakeRemote) SetUpsertErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

var t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock  *fakeClock
	remote *fakeRemote
	local  *fakeRemote
	ctrl   *Controller
	events *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, k := range l.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// newFixture opens p through a remote-backed controller for identity.
func newFixture(t *testing.T, p project.Project, identity string, shared bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:  newFakeClock(t0.Add(time.Minute)),
		remote: newFakeRemote(p),
		local:  newFakeRemote(),
		events: &eventLog{},
	}
	f.ctrl = New(p.ID, Options{
		Local:    f.local,
		Remote:   f.remote,
		Identity: identity,
		Shared:   shared,
		Debounce: 1500 * time.Millisecond,
		Timeout:  time.Second,
		Clock:    f.clock,
	})
	f.ctrl.Subscribe(f.events.add)
	require.NoError(t, f.ctrl.Load(context.Background()))
	t.Cleanup(f.ctrl.Close)
	return f
}

func demoProject() project.Project {
	return project.New("demo", "Demo", "alice", t0)
}

func folderProject() project.Project {
	p := project.New("tree", "Tree", "alice", t0)
	docs := project.NewNode("docs", "docs", project.NodeFolder)
	specs := project.NewNode("specs", "specs", project.NodeFolder)
	specs.Children = []project.FileSystemNode{project.NewNode("api", "api.md", project.NodeFile)}
	docs.Children = []project.FileSystemNode{specs, project.NewNode("notes", "notes.md", project.NodeFile)}
	p.FileSystemRoots = []project.FileSystemNode{docs, project.NewNode("readme", "README.md", project.NodeFile)}
	return p
}
