// Package session owns one open project view: the in-memory snapshot, the
// active selection, debounced autosave and reconciliation with revisions
// arriving from the remote store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/rbac"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateSaving  State = "saving"
	StateFailed  State = "failed"
	StateClosed  State = "closed"
)

const (
	DefaultDebounce = 1500 * time.Millisecond
	DefaultTimeout  = 15 * time.Second
)

var (
	ErrReadOnly   = errors.New("project is read-only")
	ErrClosed     = errors.New("session is closed")
	ErrNotReady   = errors.New("project is not loaded")
	ErrSaveFailed = errors.New("save failed")
)

type Options struct {
	// Local backs sessions without an identity.
	Local store.Adapter
	// Remote is used when an identity is present or the view is shared. Nil
	// keeps every session local.
	Remote store.Remote
	// Identity is the signed-in user id, empty when anonymous.
	Identity string
	// Shared marks a view opened through a share link.
	Shared   bool
	Debounce time.Duration
	// Timeout bounds every adapter call. Zero disables it.
	Timeout time.Duration
	Clock   Clock
}

// Content is what the text and whiteboard surfaces currently display. An
// empty NodeID means the project root.
type Content struct {
	NodeID     string                  `json:"nodeId,omitempty"`
	Text       string                  `json:"textContent"`
	Whiteboard *project.WhiteboardData `json:"whiteboardContent"`
}

type Status struct {
	ProjectID   string    `json:"projectId"`
	State       State     `json:"state"`
	ReadOnly    bool      `json:"readOnly"`
	Role        rbac.Role `json:"role"`
	Remote      bool      `json:"remote"`
	SelectedID  string    `json:"selectedNodeId,omitempty"`
	Dirty       bool      `json:"dirty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastSavedAt time.Time `json:"lastSavedAt"`
}

type Controller struct {
	projectID string
	local     store.Adapter
	remote    store.Remote
	identity  string
	shared    bool
	debounce  time.Duration
	timeout   time.Duration
	clock     Clock

	mu   sync.Mutex
	cond *sync.Cond

	state    State
	loadErr  error
	adapter  store.Adapter
	isRemote bool
	project  project.Project

	selectedID string
	active     Content

	timer      Timer
	timerToken uint64

	saving     bool
	saveQueued bool
	// editGen counts local changes; savedGen is the newest generation known
	// to be persisted and attemptGen the newest one a save has finished
	// trying.
	editGen    uint64
	savedGen   uint64
	attemptGen uint64
	attemptErr error

	lastSavedAt   time.Time
	inFlightAt    time.Time
	pendingEditAt time.Time

	unsubscribe func()

	listeners    map[int]func(Event)
	nextListener int
	outbox       []Event
}

func New(projectID string, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	c := &Controller{
		projectID: projectID,
		local:     opts.Local,
		remote:    opts.Remote,
		identity:  opts.Identity,
		shared:    opts.Shared,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		clock:     opts.Clock,
		state:     StateLoading,
		listeners: map[int]func(Event){},
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Controller) ProjectID() string {
	return c.projectID
}

// Load resolves the project from the remote store when the view has an
// identity or is shared, otherwise from the local store. Any failure is
// terminal for this controller.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoading {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("load project %s: controller is %s", c.projectID, state)
	}
	useRemote := c.remote != nil && (c.identity != "" || c.shared)
	var adapter store.Adapter = c.local
	if useRemote {
		adapter = c.remote
	}
	c.mu.Unlock()

	var (
		item project.Project
		err  error
	)
	if adapter == nil {
		err = errors.New("no store configured")
	} else {
		callCtx, cancel := c.callContext(ctx)
		item, err = adapter.Get(callCtx, c.projectID)
		cancel()
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.state = StateFailed
		c.loadErr = fmt.Errorf("load project %s: %w", c.projectID, err)
		c.emitLocked(EventFailed, c.loadErr)
		loadErr := c.loadErr
		c.unlockAndDispatch()
		return loadErr
	}

	c.adapter = adapter
	c.isRemote = useRemote
	c.project = project.EnsureProjectDefaults(item)
	c.lastSavedAt = c.project.UpdatedAt
	c.state = StateReady
	c.resolveActiveLocked()
	c.emitLocked(EventLoaded, nil)
	c.unlockAndDispatch()

	if useRemote {
		c.subscribe(ctx)
	}
	return nil
}

func (c *Controller) subscribe(ctx context.Context) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	unsubscribe, err := c.remote.Subscribe(callCtx, c.projectID, c.applyRemote)
	if err != nil {
		log.Printf("session: subscribe %s: %v", c.projectID, err)
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the load failure of a failed controller.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

func (c *Controller) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnlyLocked()
}

func (c *Controller) readOnlyLocked() bool {
	return !rbac.Can(c.roleLocked(), rbac.ActionWrite)
}

func (c *Controller) roleLocked() rbac.Role {
	return rbac.RoleFor(c.identity, c.project.OwnerID, c.shared)
}

// Role is the viewer's role on the loaded project.
func (c *Controller) Role() rbac.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roleLocked()
}

func (c *Controller) Snapshot() project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.project.Clone()
}

func (c *Controller) Active() Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ProjectID:   c.projectID,
		State:       c.state,
		ReadOnly:    c.readOnlyLocked(),
		Role:        c.roleLocked(),
		Remote:      c.isRemote,
		SelectedID:  c.selectedID,
		Dirty:       c.dirtyLocked(),
		UpdatedAt:   c.project.UpdatedAt,
		LastSavedAt: c.lastSavedAt,
	}
}

// Close releases the remote subscription and cancels a pending debounced
// save. A save already in flight completes but its result is ignored.
// Callers that must not lose pending edits call Flush first.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.cancelTimerLocked()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.cond.Broadcast()
	c.emitLocked(EventClosed, nil)
	c.unlockAndDispatch()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller) liveLocked() error {
	switch c.state {
	case StateReady, StateSaving:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

func (c *Controller) writableLocked() error {
	if err := c.liveLocked(); err != nil {
		return err
	}
	if c.readOnlyLocked() {
		return ErrReadOnly
	}
	return nil
}

// resolveActiveLocked points the surfaces at the selected node, falling back
// to the root when the selection no longer resolves.
func (c *Controller) resolveActiveLocked() {
	if c.selectedID != "" {
		if node, ok := project.Find(c.project.FileSystemRoots, c.selectedID); ok {
			c.active = Content{NodeID: node.ID, Text: node.TextContent, Whiteboard: node.WhiteboardContent}
			return
		}
		c.selectedID = ""
	}
	c.active = Content{Text: c.project.TextContent, Whiteboard: c.project.WhiteboardContent}
}
