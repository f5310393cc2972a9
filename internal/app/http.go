package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alokdon2/CollabCanvas-sub000/internal/auth"
	"github.com/alokdon2/CollabCanvas-sub000/internal/export"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/search"
	"github.com/alokdon2/CollabCanvas-sub000/internal/session"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	secret     []byte
	tokenTTL   time.Duration
}

func NewHTTPServer(service *Service, corsOrigin string, secret []byte, tokenTTL time.Duration) *HTTPServer {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, secret: secret, tokenTTL: tokenTTL}
}

type identityKey struct{}

func identityFrom(ctx context.Context) auth.Identity {
	identity, _ := ctx.Value(identityKey{}).(auth.Identity)
	return identity
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(s.corsOrigin, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	r.Post("/api/session", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/session", s.handleSession)

		r.Get("/api/projects", s.handleListProjects)
		r.Post("/api/projects", s.handleCreateProject)
		r.Delete("/api/projects/{projectID}", s.handleDeleteProject)
		r.Get("/api/projects/{projectID}/history", s.handleHistory)
		r.Get("/api/projects/{projectID}/history/{hash}", s.handleRevision)
		r.Get("/api/projects/{projectID}/export", s.handleExport)

		r.Post("/api/views", s.handleOpenView)
		r.Route("/api/views/{viewID}", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Delete("/", s.handleCloseView)
			r.Put("/content", s.handleEditContent)
			r.Post("/select", s.handleSelect)
			r.Put("/name", s.handleRenameProject)
			r.Post("/flush", s.handleFlush)
			r.Post("/nodes", s.handleCreateNode)
			r.Delete("/nodes/{nodeID}", s.handleDeleteNode)
			r.Post("/nodes/{nodeID}/move", s.handleMoveNode)
			r.Put("/nodes/{nodeID}/name", s.handleRenameNode)
			r.Get("/events", s.handleEvents)
		})

		r.Get("/api/workspace", s.handleWorkspace)
		r.Post("/api/workspace/items", s.handleWorkspaceCreate)

		r.Get("/api/sync/pending", s.handleSyncPending)
		r.Post("/api/sync", s.handleSync)

		r.Get("/api/search", s.handleSearch)
	})
	return r
}

// authenticate resolves the bearer token, or the access_token query
// parameter for websocket clients, into an identity. Requests without a
// token run anonymously.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		identity := auth.Identity{}
		if token != "" {
			if len(s.secret) == 0 {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token authentication is disabled", nil)
				return
			}
			parsed, err := auth.ParseToken(s.secret, token)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			identity = parsed
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"remote": map[string]any{"status": "ok", "enabled": s.service.RemoteEnabled()},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["remote"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if len(s.secret) == 0 {
		writeError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "Token authentication is disabled", nil)
		return
	}
	var body struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
		return
	}
	identity := auth.Identity{UserID: strings.TrimSpace(body.UserID), Name: strings.TrimSpace(body.Name)}
	token, err := auth.IssueToken(s.secret, identity, s.tokenTTL)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "userId": identity.UserID, "name": identity.Name})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": !identity.Anonymous(),
		"userId":        identity.UserID,
		"name":          identity.Name,
	})
}

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListProjects(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	summaries := make([]map[string]any, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, map[string]any{
			"id":        item.ID,
			"name":      item.Name,
			"ownerId":   item.OwnerID,
			"nodes":     project.Count(item.FileSystemRoots),
			"createdAt": item.CreatedAt,
			"updatedAt": item.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": summaries})
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item, err := s.service.CreateProject(r.Context(), identityFrom(r.Context()), body.Name)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteProject(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "projectID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	projectID := chi.URLParam(r, "projectID")
	commits, err := s.service.History(r.Context(), identityFrom(r.Context()), projectID, limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projectId": projectID, "history": commits})
}

func (s *HTTPServer) handleRevision(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.Revision(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "projectID"), chi.URLParam(r, "hash"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	publish := r.URL.Query().Get("publish") == "true"
	result, link, err := s.service.Export(
		r.Context(),
		identityFrom(r.Context()),
		chi.URLParam(r, "projectID"),
		r.URL.Query().Get("version"),
		format,
		publish,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if publish {
		writeJSON(w, http.StatusOK, map[string]any{"url": link, "filename": result.Filename})
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

type viewPayload struct {
	ViewID    string          `json:"viewId"`
	Status    session.Status  `json:"status"`
	Project   project.Project `json:"project"`
	Active    session.Content `json:"active"`
	SaveError string          `json:"saveError,omitempty"`
}

func payloadFor(view *View) viewPayload {
	return viewPayload{
		ViewID:  view.ID,
		Status:  view.Controller.Status(),
		Project: view.Controller.Snapshot(),
		Active:  view.Controller.Active(),
	}
}

func (s *HTTPServer) handleOpenView(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string `json:"projectId"`
		Shared    bool   `json:"shared"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.ProjectID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId is required", nil)
		return
	}
	view, err := s.service.OpenView(r.Context(), identityFrom(r.Context()), body.ProjectID, body.Shared)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payloadFor(view))
}

// withView resolves the {viewID} of the request for the caller.
func (s *HTTPServer) withView(w http.ResponseWriter, r *http.Request) (*View, bool) {
	view, err := s.service.View(identityFrom(r.Context()), chi.URLParam(r, "viewID"))
	if err != nil {
		writeMappedError(w, err)
		return nil, false
	}
	return view, true
}

func (s *HTTPServer) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, payloadFor(view))
}

func (s *HTTPServer) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseView(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "viewID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleEditContent(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		Text       *string                 `json:"textContent"`
		Whiteboard *project.WhiteboardData `json:"whiteboardContent"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Text == nil && body.Whiteboard == nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "textContent or whiteboardContent is required", nil)
		return
	}
	if body.Text != nil {
		if err := view.Controller.EditText(*body.Text); err != nil {
			writeMappedError(w, err)
			return
		}
	}
	if body.Whiteboard != nil {
		if err := view.Controller.EditWhiteboard(body.Whiteboard); err != nil {
			writeMappedError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": view.Controller.Active(), "status": view.Controller.Status()})
}

func (s *HTTPServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeID string `json:"nodeId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	active, err := view.Controller.Select(r.Context(), body.NodeID)
	response := map[string]any{"active": active, "status": view.Controller.Status()}
	if err != nil {
		if !errors.Is(err, session.ErrSaveFailed) {
			writeMappedError(w, err)
			return
		}
		response["saveError"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respondMutation(w, view, view.Controller.Rename(r.Context(), body.Name))
}

func (s *HTTPServer) handleFlush(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	if err := view.Controller.Flush(r.Context()); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": view.Controller.Status()})
}

func (s *HTTPServer) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		ParentID string           `json:"parentId"`
		Name     string           `json:"name"`
		Type     project.NodeType `json:"type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Type != project.NodeFile && body.Type != project.NodeFolder {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be file or folder", nil)
		return
	}
	node, err := view.Controller.CreateNode(r.Context(), body.ParentID, body.Name, body.Type)
	s.respondNode(w, view, node, err)
}

func (s *HTTPServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	s.respondMutation(w, view, view.Controller.DeleteNode(r.Context(), chi.URLParam(r, "nodeID")))
}

func (s *HTTPServer) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		TargetID string `json:"targetId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respondMutation(w, view, view.Controller.MoveNode(r.Context(), chi.URLParam(r, "nodeID"), body.TargetID))
}

func (s *HTTPServer) handleRenameNode(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respondMutation(w, view, view.Controller.RenameNode(r.Context(), chi.URLParam(r, "nodeID"), body.Name))
}

// respondMutation reports a structural change. A failed save still leaves
// the change applied, so the view is returned along with the save error.
func (s *HTTPServer) respondMutation(w http.ResponseWriter, view *View, err error) {
	payload := payloadFor(view)
	if err != nil {
		if !errors.Is(err, session.ErrSaveFailed) {
			writeMappedError(w, err)
			return
		}
		payload.SaveError = err.Error()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) respondNode(w http.ResponseWriter, view *View, node project.FileSystemNode, err error) {
	response := map[string]any{"node": node, "view": payloadFor(view)}
	if err != nil {
		if !errors.Is(err, session.ErrSaveFailed) {
			writeMappedError(w, err)
			return
		}
		response["saveError"] = err.Error()
	}
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	viewID, name := s.service.CurrentProjectName(identityFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"viewId": viewID, "projectName": name})
}

func (s *HTTPServer) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string           `json:"name"`
		Type project.NodeType `json:"type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Type != project.NodeFile && body.Type != project.NodeFolder {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be file or folder", nil)
		return
	}
	identity := identityFrom(r.Context())
	node, err := s.service.CreateFromChrome(r.Context(), identity, body.Type, body.Name)
	response := map[string]any{"node": node}
	if err != nil {
		if !errors.Is(err, session.ErrSaveFailed) {
			writeMappedError(w, err)
			return
		}
		response["saveError"] = err.Error()
	}
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleSyncPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.service.PendingSync(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(pending))
	for _, item := range pending {
		items = append(items, map[string]any{"id": item.ID, "name": item.Name, "updatedAt": item.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": len(items) > 0, "projects": items})
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	decision, err := localsync.ParseDecision(body.Decision)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	report, err := s.service.RunSync(r.Context(), identityFrom(r.Context()), decision)
	if err != nil {
		status, code, message, _ := mapError(err)
		writeError(w, status, code, message, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	q := search.Query{Text: strings.TrimSpace(r.URL.Query().Get("q")), Limit: limit, Offset: offset}
	if q.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(identityFrom(r.Context()), q))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %s: %v", code, err)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}
