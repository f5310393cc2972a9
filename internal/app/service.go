package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/auth"
	"github.com/alokdon2/CollabCanvas-sub000/internal/export"
	"github.com/alokdon2/CollabCanvas-sub000/internal/history"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/rbac"
	"github.com/alokdon2/CollabCanvas-sub000/internal/search"
	"github.com/alokdon2/CollabCanvas-sub000/internal/session"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
	"github.com/alokdon2/CollabCanvas-sub000/internal/util"
)

const defaultProjectName = "Untitled Project"

type historyService interface {
	Log(projectID string, limit int) ([]history.Commit, error)
	At(projectID, hash string) (project.Project, error)
}

type exportService interface {
	Render(ctx context.Context, p project.Project, version string, format export.Format) (*export.Result, error)
	Publish(ctx context.Context, projectID string, result *export.Result) (string, error)
}

type searchService interface {
	Search(q search.Query) search.Response
}

// Options wires the workspace to its stores and supporting services. Only
// Local is required.
type Options struct {
	Local  store.Adapter
	Remote store.Remote
	// ListOwned lists the remote projects of one owner. When nil the remote
	// listing is filtered in memory.
	ListOwned func(ctx context.Context, ownerID string) ([]project.Project, error)
	Sync      *localsync.Coordinator
	Search    searchService
	History   historyService
	Export    exportService
	Ping      func(ctx context.Context) error
	Debounce  time.Duration
	Timeout   time.Duration
	Clock     session.Clock
}

// View is one open project session owned by the identity that opened it.
type View struct {
	ID         string
	Identity   auth.Identity
	Shared     bool
	Controller *session.Controller
	OpenedAt   time.Time

	unmount func()
}

// workspace is one client's navigation state: the view currently shown and
// the context the chrome reads it through.
type workspace struct {
	context *session.ViewContext
	current *View
}

type Service struct {
	opts Options

	mu         sync.Mutex
	views      map[string]*View
	workspaces map[string]*workspace
}

func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = session.SystemClock
	}
	return &Service{
		opts:       opts,
		views:      make(map[string]*View),
		workspaces: make(map[string]*workspace),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if s.opts.Ping == nil {
		return nil
	}
	return s.opts.Ping(ctx)
}

func (s *Service) RemoteEnabled() bool {
	return s.opts.Remote != nil
}

func (s *Service) adapterFor(identity auth.Identity) store.Adapter {
	if !identity.Anonymous() && s.opts.Remote != nil {
		return s.opts.Remote
	}
	return s.opts.Local
}

// ListProjects returns the caller's projects newest first: the remote
// projects they own when signed in, otherwise the local ones.
func (s *Service) ListProjects(ctx context.Context, identity auth.Identity) ([]project.Project, error) {
	if identity.Anonymous() || s.opts.Remote == nil {
		return store.ListRecent(ctx, s.opts.Local)
	}
	if s.opts.ListOwned != nil {
		items, err := s.opts.ListOwned(ctx, identity.UserID)
		if err != nil {
			return nil, err
		}
		store.SortByRecency(items)
		return items, nil
	}
	all, err := store.ListRecent(ctx, s.opts.Remote)
	if err != nil {
		return nil, err
	}
	owned := make([]project.Project, 0, len(all))
	for _, item := range all {
		if item.OwnerID == identity.UserID {
			owned = append(owned, item)
		}
	}
	return owned, nil
}

// CreateProject stores a new empty project owned by the caller.
func (s *Service) CreateProject(ctx context.Context, identity auth.Identity, name string) (project.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultProjectName
	}
	item := project.New(util.NewID("proj"), name, identity.UserID, s.opts.Clock.Now().Truncate(time.Microsecond))
	if err := s.adapterFor(identity).Upsert(ctx, item); err != nil {
		return project.Project{}, fmt.Errorf("create project: %w", err)
	}
	log.Printf("app: created project %s for %q", item.ID, identity.UserID)
	return item, nil
}

// DeleteProject removes a project the caller may delete and closes its open
// views.
func (s *Service) DeleteProject(ctx context.Context, identity auth.Identity, projectID string) error {
	adapter := s.adapterFor(identity)
	item, err := adapter.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !rbac.Can(rbac.RoleFor(identity.UserID, item.OwnerID, false), rbac.ActionDelete) {
		return errForbidden
	}
	if err := adapter.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}

	s.mu.Lock()
	var stale []*View
	for _, view := range s.views {
		if view.Controller.ProjectID() == projectID {
			stale = append(stale, view)
		}
	}
	for _, view := range stale {
		s.detachLocked(view)
	}
	s.mu.Unlock()
	for _, view := range stale {
		view.Controller.Close()
	}
	return nil
}

// OpenView loads a project into a new session and makes it the caller's
// current view. The previously current view is flushed first so switching
// never drops edits; it stays open until closed.
func (s *Service) OpenView(ctx context.Context, identity auth.Identity, projectID string, shared bool) (*View, error) {
	ws := s.workspaceFor(identity)

	s.mu.Lock()
	previous := ws.current
	s.mu.Unlock()
	if previous != nil {
		if err := previous.Controller.Flush(ctx); err != nil && !errors.Is(err, session.ErrClosed) {
			log.Printf("app: flush view %s before switching: %v", previous.ID, err)
		}
	}

	ctrl := session.New(projectID, session.Options{
		Local:    s.opts.Local,
		Remote:   s.opts.Remote,
		Identity: identity.UserID,
		Shared:   shared,
		Debounce: s.opts.Debounce,
		Timeout:  s.opts.Timeout,
		Clock:    s.opts.Clock,
	})
	if err := ctrl.Load(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}

	view := &View{
		ID:         util.NewID("view"),
		Identity:   identity,
		Shared:     shared,
		Controller: ctrl,
		OpenedAt:   s.opts.Clock.Now(),
	}
	s.mu.Lock()
	view.unmount = ws.context.Mount(ctrl)
	ws.current = view
	s.views[view.ID] = view
	s.mu.Unlock()
	return view, nil
}

// View returns an open view. Views are private to the identity that opened
// them.
func (s *Service) View(identity auth.Identity, viewID string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[viewID]
	if !ok || view.Identity.UserID != identity.UserID {
		return nil, errViewNotFound
	}
	return view, nil
}

// CloseView flushes pending edits and closes the view. The view is closed
// even when the flush fails; the flush error is returned.
func (s *Service) CloseView(ctx context.Context, identity auth.Identity, viewID string) error {
	view, err := s.View(identity, viewID)
	if err != nil {
		return err
	}
	flushErr := view.Controller.Flush(ctx)

	s.mu.Lock()
	s.detachLocked(view)
	s.mu.Unlock()
	view.Controller.Close()

	if flushErr != nil && !errors.Is(flushErr, session.ErrClosed) && !errors.Is(flushErr, session.ErrNotReady) {
		return flushErr
	}
	return nil
}

func (s *Service) detachLocked(view *View) {
	delete(s.views, view.ID)
	if view.unmount != nil {
		view.unmount()
	}
	if ws, ok := s.workspaces[workspaceKey(view.Identity)]; ok && ws.current == view {
		ws.current = nil
	}
}

// Shutdown flushes and closes every open view.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	views := make([]*View, 0, len(s.views))
	for _, view := range s.views {
		views = append(views, view)
	}
	s.mu.Unlock()

	for _, view := range views {
		if err := view.Controller.Flush(ctx); err != nil && !errors.Is(err, session.ErrClosed) {
			log.Printf("app: flush view %s on shutdown: %v", view.ID, err)
		}
		s.mu.Lock()
		s.detachLocked(view)
		s.mu.Unlock()
		view.Controller.Close()
	}
}

func workspaceKey(identity auth.Identity) string {
	return identity.UserID
}

func (s *Service) workspaceFor(identity auth.Identity) *workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := workspaceKey(identity)
	ws, ok := s.workspaces[key]
	if !ok {
		ws = &workspace{context: session.NewViewContext()}
		s.workspaces[key] = ws
	}
	return ws
}

// CurrentProjectName is what the navigation chrome shows for the caller.
func (s *Service) CurrentProjectName(identity auth.Identity) (string, string) {
	ws := s.workspaceFor(identity)
	s.mu.Lock()
	current := ws.current
	s.mu.Unlock()
	if current == nil {
		return "", ""
	}
	return current.ID, ws.context.ProjectName()
}

// CreateFromChrome adds a root-level item to the caller's current project.
func (s *Service) CreateFromChrome(ctx context.Context, identity auth.Identity, kind project.NodeType, name string) (project.FileSystemNode, error) {
	return s.workspaceFor(identity).context.RequestCreate(ctx, kind, name)
}

func (s *Service) Search(identity auth.Identity, q search.Query) search.Response {
	q.OwnerID = identity.UserID
	if s.opts.Search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.opts.Search.Search(q)
}

// History lists revisions of a project the caller can read.
func (s *Service) History(ctx context.Context, identity auth.Identity, projectID string, limit int) ([]history.Commit, error) {
	if s.opts.History == nil {
		return nil, history.ErrNoHistory
	}
	if _, err := s.adapterFor(identity).Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.opts.History.Log(projectID, limit)
}

func (s *Service) Revision(ctx context.Context, identity auth.Identity, projectID, hash string) (project.Project, error) {
	if s.opts.History == nil {
		return project.Project{}, history.ErrNoHistory
	}
	if _, err := s.adapterFor(identity).Get(ctx, projectID); err != nil {
		return project.Project{}, err
	}
	return s.opts.History.At(projectID, hash)
}

// Export renders the current state of a project, or a past revision when
// version is set, and optionally publishes it.
func (s *Service) Export(ctx context.Context, identity auth.Identity, projectID, version string, format export.Format, publish bool) (*export.Result, string, error) {
	if s.opts.Export == nil {
		return nil, "", domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	item, err := s.adapterFor(identity).Get(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	if version != "" {
		if s.opts.History == nil {
			return nil, "", export.ErrVersionUnavailable
		}
		if item, err = s.opts.History.At(projectID, version); err != nil {
			return nil, "", err
		}
	}

	result, err := s.opts.Export.Render(ctx, item, version, format)
	if err != nil {
		return nil, "", err
	}
	if !publish {
		return result, "", nil
	}
	link, err := s.opts.Export.Publish(ctx, projectID, result)
	if err != nil {
		return nil, "", err
	}
	return result, link, nil
}

// PendingSync lists local projects waiting for a migration decision.
func (s *Service) PendingSync(ctx context.Context, identity auth.Identity) ([]project.Project, error) {
	if identity.Anonymous() {
		return nil, errSignInNeeded
	}
	if s.opts.Sync == nil {
		return []project.Project{}, nil
	}
	return s.opts.Sync.Pending(ctx)
}

func (s *Service) RunSync(ctx context.Context, identity auth.Identity, decision localsync.Decision) (localsync.Report, error) {
	if identity.Anonymous() {
		return localsync.Report{}, errSignInNeeded
	}
	if s.opts.Sync == nil {
		return localsync.Report{}, domainError(http.StatusServiceUnavailable, "SYNC_UNAVAILABLE", "Remote store is not configured", nil)
	}
	return s.opts.Sync.Run(ctx, identity.UserID, decision)
}
