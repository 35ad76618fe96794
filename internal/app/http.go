package app

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pulseboard/api/internal/repo"
	"pulseboard/api/internal/search"
	"pulseboard/api/internal/workflow"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && path == "/api/health":
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodGet && path == "/api/ready":
		if err := s.service.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && path == "/api/auth/register":
		var in struct{ Name, Email, Password string }
		if !decodeBody(w, r, &in) {
			return
		}
		user, err := s.service.Register(ctx, in.Name, in.Email, in.Password)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "name": user.Name, "email": user.Email})

	case r.Method == http.MethodPost && path == "/api/auth/login":
		var in struct{ Email, Password string }
		if !decodeBody(w, r, &in) {
			return
		}
		user, err := s.service.Login(ctx, in.Email, in.Password)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": user.ID, "name": user.Name, "email": user.Email})

	case r.Method == http.MethodPost && path == "/api/auth/logout":
		s.service.Logout(ctx)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodGet && path == "/api/session":
		id := s.service.ActiveUser(ctx)
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": id != "", "activeUser": id})

	case strings.HasPrefix(path, "/api/tasks"):
		s.handleTasks(w, r)

	case strings.HasPrefix(path, "/api/projects"):
		s.handleProjects(w, r)

	case strings.HasPrefix(path, "/api/gallery"):
		s.handleGallery(w, r)

	case path == "/api/settings" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.LoadSettings(ctx))

	case path == "/api/settings" && r.Method == http.MethodPut:
		var in repo.Settings
		if !decodeBody(w, r, &in) {
			return
		}
		if respondError(w, s.service.SaveSettings(ctx, in)) {
			return
		}
		writeJSON(w, http.StatusOK, in)

	case path == "/api/profile" && r.Method == http.MethodGet:
		p, err := s.service.LoadProfile(ctx)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, p)

	case path == "/api/profile" && r.Method == http.MethodPut:
		var in repo.Profile
		if !decodeBody(w, r, &in) {
			return
		}
		if respondError(w, s.service.SaveProfile(ctx, in)) {
			return
		}
		writeJSON(w, http.StatusOK, in)

	case path == "/api/search" && r.Method == http.MethodGet:
		q := search.Query{
			Text:   r.URL.Query().Get("q"),
			Kind:   search.Kind(r.URL.Query().Get("kind")),
			Status: r.URL.Query().Get("status"),
			Sort:   r.URL.Query().Get("sort"),
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			q.Limit = limit
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": s.service.Search(ctx, r.URL.Query().Get("project"), q),
			"query":   q.Text,
		})

	case path == "/api/export" && r.Method == http.MethodGet:
		files, err := s.service.ExportAll(ctx, r.URL.Query().Get("project"))
		if respondError(w, err) {
			return
		}
		out := map[string]json.RawMessage{}
		for name, blob := range files {
			out[name] = json.RawMessage(blob)
		}
		writeJSON(w, http.StatusOK, out)

	case path == "/api/import" && r.Method == http.MethodPost:
		blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_BODY", "could not read body")
			return
		}
		added, err := s.service.Import(ctx, r.URL.Query().Get("kind"), r.URL.Query().Get("project"), blob)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"added": added})

	case path == "/api/backup" && r.Method == http.MethodPost:
		hash, err := s.service.Snapshot(ctx, r.URL.Query().Get("project"))
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"commit": hash})

	case path == "/api/backup/history" && r.Method == http.MethodGet:
		history, err := s.service.BackupHistory(20)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})

	case path == "/api/stats" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.RefreshDashboardStats(ctx))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
	}
}

// completionBody is the documentation payload for task/project
// completion. Image is base64; an empty image fails validation.
type completionBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	ContentType string `json:"contentType"`
}

func (b completionBody) doc(w http.ResponseWriter) (workflow.Doc, bool) {
	var image []byte
	if b.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(b.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_IMAGE", "image must be base64")
			return workflow.Doc{}, false
		}
		image = decoded
	}
	return workflow.Doc{
		Title:       b.Title,
		Description: b.Description,
		Image:       image,
		ContentType: b.ContentType,
	}, true
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := r.URL.Query().Get("project")
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks")
	rest = strings.Trim(rest, "/")
	parts := []string{}
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.ListTasks(ctx, projectID))

	case len(parts) == 0 && r.Method == http.MethodPost:
		var in repo.Task
		if !decodeBody(w, r, &in) {
			return
		}
		created, err := s.service.CreateTask(ctx, projectID, in)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var in repo.Task
		if !decodeBody(w, r, &in) {
			return
		}
		in.ID = parts[0]
		updated, err := s.service.UpdateTask(ctx, projectID, in)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if respondError(w, s.service.DeleteTask(ctx, projectID, parts[0])) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		var in struct{ Status string }
		if !decodeBody(w, r, &in) {
			return
		}
		updated, err := s.service.SetTaskStatus(ctx, projectID, parts[0], in.Status)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost:
		var in completionBody
		if !decodeBody(w, r, &in) {
			return
		}
		doc, ok := in.doc(w)
		if !ok {
			return
		}
		completed, err := s.service.CompleteTask(ctx, projectID, parts[0], doc)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, completed)

	case len(parts) == 2 && parts[1] == "reopen" && r.Method == http.MethodPost:
		reopened, err := s.service.ReopenTask(ctx, projectID, parts[0])
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, reopened)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
	}
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/projects"), "/")
	parts := []string{}
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		projects := s.service.ListProjects(ctx)
		out := make([]map[string]any, 0, len(projects))
		for _, p := range projects {
			out = append(out, projectView(p))
		}
		writeJSON(w, http.StatusOK, out)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var in repo.Project
		if !decodeBody(w, r, &in) {
			return
		}
		created, err := s.service.CreateProject(ctx, in)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, projectView(created))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var in repo.Project
		if !decodeBody(w, r, &in) {
			return
		}
		in.ID = parts[0]
		updated, err := s.service.UpdateProject(ctx, in)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, projectView(updated))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if respondError(w, s.service.DeleteProject(ctx, parts[0])) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "subprojects" && r.Method == http.MethodPost:
		var in struct{ Name string }
		if !decodeBody(w, r, &in) {
			return
		}
		updated, err := s.service.AddSubproject(ctx, parts[0], in.Name)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, projectView(updated))

	case len(parts) == 4 && parts[1] == "subprojects" && parts[3] == "toggle" && r.Method == http.MethodPost:
		updated, err := s.service.ToggleSubproject(ctx, parts[0], parts[2])
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, projectView(updated))

	case len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost:
		var in completionBody
		if !decodeBody(w, r, &in) {
			return
		}
		doc, ok := in.doc(w)
		if !ok {
			return
		}
		completed, err := s.service.CompleteProject(ctx, parts[0], doc)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, projectView(completed))

	case len(parts) == 2 && parts[1] == "reopen" && r.Method == http.MethodPost:
		reopened, err := s.service.ReopenProject(ctx, parts[0])
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, projectView(reopened))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
	}
}

func (s *HTTPServer) handleGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/gallery"), "/")
	parts := []string{}
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.ListGallery(ctx))

	case len(parts) == 0 && r.Method == http.MethodPost:
		var in repo.GalleryEntry
		if !decodeBody(w, r, &in) {
			return
		}
		created, err := s.service.CreateGalleryEntry(ctx, in)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case len(parts) == 1 && parts[0] == "undo" && r.Method == http.MethodPost:
		entry, ok := s.service.UndoGalleryDelete(ctx)
		if !ok {
			writeError(w, http.StatusGone, "UNDO_EXPIRED", "nothing to undo")
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case len(parts) == 2 && parts[0] == "image" && r.Method == http.MethodGet:
		payload, contentType, err := s.service.GalleryImage(ctx, parts[1])
		if respondError(w, err) {
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var in struct{ Title, Description string }
		if !decodeBody(w, r, &in) {
			return
		}
		updated, err := s.service.UpdateGalleryEntry(ctx, parts[0], in.Title, in.Description)
		if respondError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if respondError(w, s.service.DeleteGalleryEntry(ctx, parts[0])) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
	}
}

// projectView adds the derived progress percent to a project response.
func projectView(p repo.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"type":        p.Type,
		"tech":        p.Tech,
		"status":      p.Status,
		"subprojects": p.Subprojects,
		"deadline":    p.Deadline,
		"progress":    p.Progress(),
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_BODY", "could not parse request body")
		return false
	}
	return true
}

// respondError writes a mapped error response and reports whether one
// was written.
func respondError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	de := toDomainError(err)
	writeError(w, de.Status, de.Code, de.Message)
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}
