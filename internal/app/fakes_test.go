package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/auth"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localstore"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

var testSecret = []byte("test-secret")

// memRemote is an in-memory Remote that echoes every write to subscribers,
// as the real change feed does.
type memRemote struct {
	mu       sync.Mutex
	items    map[string]project.Project
	handlers map[string]map[int]func(project.Project)
	next     int
}

func newMemRemote(items ...project.Project) *memRemote {
	m := &memRemote{items: map[string]project.Project{}, handlers: map[string]map[int]func(project.Project){}}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *memRemote) Get(_ context.Context, id string) (project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return project.Project{}, store.ErrNotFound
	}
	return item.Clone(), nil
}

func (m *memRemote) GetAll(context.Context) ([]project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]project.Project, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (m *memRemote) Upsert(_ context.Context, p project.Project) error {
	m.mu.Lock()
	m.items[p.ID] = p.Clone()
	var handlers []func(project.Project)
	for _, fn := range m.handlers[p.ID] {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(p.Clone())
	}
	return nil
}

func (m *memRemote) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memRemote) Subscribe(_ context.Context, id string, onChange func(project.Project)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers[id] == nil {
		m.handlers[id] = map[int]func(project.Project){}
	}
	m.next++
	key := m.next
	m.handlers[id][key] = onChange
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers[id], key)
	}, nil
}

type harness struct {
	t       *testing.T
	server  *httptest.Server
	service *Service
	local   *localstore.Store
	remote  *memRemote
}

func newHarness(t *testing.T, configure func(opts *Options)) *harness {
	t.Helper()
	local, err := localstore.Open("")
	if err != nil {
		t.Fatalf("localstore.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	remote := newMemRemote()
	opts := Options{
		Local:    local,
		Remote:   remote,
		Sync:     localsync.NewCoordinator(local, remote),
		Debounce: time.Hour,
		Timeout:  5 * time.Second,
	}
	if configure != nil {
		configure(&opts)
	}
	service := NewService(opts)
	server := httptest.NewServer(NewHTTPServer(service, "*", testSecret, time.Hour).Handler())
	t.Cleanup(func() {
		service.Shutdown(context.Background())
		server.Close()
	})
	return &harness{t: t, server: server, service: service, local: local, remote: remote}
}

func (h *harness) token(userID string) string {
	h.t.Helper()
	token, err := auth.IssueToken(testSecret, auth.Identity{UserID: userID, Name: userID}, time.Hour)
	if err != nil {
		h.t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do sends a JSON request and decodes the JSON response into out when set.
func (h *harness) do(method, path, token string, body any, out any) int {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type viewResponse struct {
	ViewID string `json:"viewId"`
	Status struct {
		State      string `json:"state"`
		ReadOnly   bool   `json:"readOnly"`
		Role       string `json:"role"`
		Remote     bool   `json:"remote"`
		SelectedID string `json:"selectedNodeId"`
		Dirty      bool   `json:"dirty"`
	} `json:"status"`
	Project project.Project `json:"project"`
	Active  struct {
		NodeID string `json:"nodeId"`
		Text   string `json:"textContent"`
	} `json:"active"`
	SaveError string `json:"saveError"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *harness) createProject(token, name string) project.Project {
	h.t.Helper()
	var created project.Project
	if status := h.do(http.MethodPost, "/api/projects", token, map[string]any{"name": name}, &created); status != http.StatusCreated {
		h.t.Fatalf("create project status = %d", status)
	}
	return created
}

func (h *harness) openView(token, projectID string, shared bool) viewResponse {
	h.t.Helper()
	var view viewResponse
	if status := h.do(http.MethodPost, "/api/views", token, map[string]any{"projectId": projectID, "shared": shared}, &view); status != http.StatusCreated {
		h.t.Fatalf("open view status = %d", status)
	}
	return view
}
