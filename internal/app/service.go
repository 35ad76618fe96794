package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pulseboard/api/internal/auth"
	"pulseboard/api/internal/config"
	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/objstore"
	"pulseboard/api/internal/repo"
	"pulseboard/api/internal/search"
	"pulseboard/api/internal/session"
	"pulseboard/api/internal/workflow"
)

// backupStore is what the service needs from the backup package; tests
// substitute a fake.
type backupStore interface {
	Snapshot(files map[string][]byte, message string) (string, error)
	History(limit int) ([]string, error)
}

// searchIndex is what the service needs from the search facade; tests
// substitute a recorder.
type searchIndex interface {
	Search(q search.Query, docs []search.Doc) []search.Doc
	Index(docs []search.Doc)
	Delete(id string)
}

// Service is the facade the HTTP layer (and tests) drive. It owns the
// repositories, the completion workflow and the derived dashboard stats.
type Service struct {
	cfg      config.Config
	kv       *kv.Store
	session  *session.Manager
	auth     *auth.Service
	tasks    *repo.Tasks
	projects *repo.Projects
	gallery  *repo.Gallery
	settings *repo.SettingsRepo
	profiles *repo.Profiles
	images   *objstore.Store
	complete *workflow.Completer
	search   searchIndex
	backup   backupStore
}

func New(cfg config.Config, store *kv.Store, images *objstore.Store, searchSvc *search.Service, backupSvc backupStore) *Service {
	sess := session.NewManager(store)
	tasks := repo.NewTasks(store, sess)
	projects := repo.NewProjects(store, sess)
	gallery := repo.NewGallery(store)
	gallery.SetUndoWindow(cfg.UndoWindow)
	return &Service{
		cfg:      cfg,
		kv:       store,
		session:  sess,
		auth:     auth.NewService(store, sess),
		tasks:    tasks,
		projects: projects,
		gallery:  gallery,
		settings: repo.NewSettings(store, sess),
		profiles: repo.NewProfiles(store, sess),
		images:   images,
		complete: workflow.NewCompleter(tasks, projects, gallery, images),
		search:   searchSvc,
		backup:   backupSvc,
	}
}

// Ping checks the key-value store connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// --- session and auth ---

func (s *Service) Register(ctx context.Context, name, email, password string) (auth.User, error) {
	return s.auth.Register(ctx, name, email, password)
}

func (s *Service) Login(ctx context.Context, email, password string) (auth.User, error) {
	return s.auth.Login(ctx, email, password)
}

func (s *Service) Logout(ctx context.Context) {
	s.auth.Logout(ctx)
}

// ActiveUser returns the current user id, "" when anonymous.
func (s *Service) ActiveUser(ctx context.Context) string {
	return s.session.ActiveUser(ctx)
}

// --- tasks ---

func (s *Service) ListTasks(ctx context.Context, projectID string) []repo.Task {
	return s.tasks.List(ctx, projectID)
}

func (s *Service) CreateTask(ctx context.Context, projectID string, t repo.Task) (repo.Task, error) {
	created, err := s.tasks.Add(ctx, projectID, t)
	if err == nil {
		s.search.Index([]search.Doc{taskDoc(created)})
	}
	return created, err
}

func (s *Service) UpdateTask(ctx context.Context, projectID string, t repo.Task) (repo.Task, error) {
	updated, err := s.tasks.Update(ctx, projectID, t)
	if err == nil {
		s.search.Index([]search.Doc{taskDoc(updated)})
	}
	return updated, err
}

func (s *Service) SetTaskStatus(ctx context.Context, projectID, id, status string) (repo.Task, error) {
	updated, err := s.tasks.SetStatus(ctx, projectID, id, status)
	if err == nil {
		s.search.Index([]search.Doc{taskDoc(updated)})
	}
	return updated, err
}

func (s *Service) DeleteTask(ctx context.Context, projectID, id string) error {
	err := s.tasks.Delete(ctx, projectID, id)
	if err == nil {
		s.search.Delete(id)
	}
	return err
}

func (s *Service) CompleteTask(ctx context.Context, projectID, id string, doc workflow.Doc) (repo.Task, error) {
	completed, err := s.complete.CompleteTask(ctx, projectID, id, doc)
	if err == nil {
		s.search.Index(append([]search.Doc{taskDoc(completed)}, s.documentationDocs(ctx, id)...))
	}
	return completed, err
}

func (s *Service) ReopenTask(ctx context.Context, projectID, id string) (repo.Task, error) {
	reopened, err := s.complete.ReopenTask(ctx, projectID, id)
	if err == nil {
		s.search.Index([]search.Doc{taskDoc(reopened)})
	}
	return reopened, err
}

// --- projects ---

func (s *Service) ListProjects(ctx context.Context) []repo.Project {
	return s.projects.List(ctx)
}

func (s *Service) CreateProject(ctx context.Context, p repo.Project) (repo.Project, error) {
	created, err := s.projects.Add(ctx, p)
	if err == nil {
		s.search.Index([]search.Doc{projectDoc(created)})
	}
	return created, err
}

func (s *Service) UpdateProject(ctx context.Context, p repo.Project) (repo.Project, error) {
	updated, err := s.projects.Update(ctx, p)
	if err == nil {
		s.search.Index([]search.Doc{projectDoc(updated)})
	}
	return updated, err
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	err := s.projects.Delete(ctx, id)
	if err == nil {
		s.search.Delete(id)
	}
	return err
}

func (s *Service) AddSubproject(ctx context.Context, projectID, name string) (repo.Project, error) {
	return s.projects.AddSubproject(ctx, projectID, name)
}

func (s *Service) ToggleSubproject(ctx context.Context, projectID, subID string) (repo.Project, error) {
	return s.projects.ToggleSubproject(ctx, projectID, subID)
}

func (s *Service) CompleteProject(ctx context.Context, id string, doc workflow.Doc) (repo.Project, error) {
	completed, err := s.complete.CompleteProject(ctx, id, doc)
	if err == nil {
		s.search.Index(append([]search.Doc{projectDoc(completed)}, s.documentationDocs(ctx, id)...))
	}
	return completed, err
}

func (s *Service) ReopenProject(ctx context.Context, id string) (repo.Project, error) {
	reopened, err := s.complete.ReopenProject(ctx, id)
	if err == nil {
		s.search.Index([]search.Doc{projectDoc(reopened)})
	}
	return reopened, err
}

// --- gallery ---

func (s *Service) ListGallery(ctx context.Context) []repo.GalleryEntry {
	return s.gallery.List(ctx)
}

func (s *Service) CreateGalleryEntry(ctx context.Context, e repo.GalleryEntry) (repo.GalleryEntry, error) {
	created, err := s.gallery.Add(ctx, e)
	if err == nil {
		s.search.Index([]search.Doc{galleryDoc(created)})
	}
	return created, err
}

func (s *Service) UpdateGalleryEntry(ctx context.Context, id, title, description string) (repo.GalleryEntry, error) {
	updated, err := s.gallery.UpdateText(ctx, id, title, description)
	if err == nil {
		s.search.Index([]search.Doc{galleryDoc(updated)})
	}
	return updated, err
}

func (s *Service) DeleteGalleryEntry(ctx context.Context, id string) error {
	err := s.gallery.Delete(ctx, id)
	if err == nil {
		s.search.Delete(id)
	}
	return err
}

// UndoGalleryDelete restores the most recently deleted entry. The entry
// was dropped from the search index when it was deleted, so a restore
// puts it back.
func (s *Service) UndoGalleryDelete(ctx context.Context) (repo.GalleryEntry, bool) {
	entry, ok := s.gallery.Undo(ctx)
	if ok {
		s.search.Index([]search.Doc{galleryDoc(entry)})
	}
	return entry, ok
}

// GalleryImage resolves an "obj:" image reference to its payload.
func (s *Service) GalleryImage(ctx context.Context, recordID string) ([]byte, string, error) {
	rec, err := s.images.Get(ctx, recordID)
	if err != nil {
		return nil, "", fmt.Errorf("gallery image %s: %w", recordID, repo.ErrNotFound)
	}
	payload, err := s.images.Payload(ctx, rec)
	if err != nil {
		return nil, "", err
	}
	return payload, rec.ContentType, nil
}

// --- settings and profile ---

func (s *Service) LoadSettings(ctx context.Context) repo.Settings {
	return s.settings.Load(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, v repo.Settings) error {
	return s.settings.Save(ctx, v)
}

func (s *Service) LoadProfile(ctx context.Context) (repo.Profile, error) {
	return s.profiles.Load(ctx)
}

func (s *Service) SaveProfile(ctx context.Context, p repo.Profile) error {
	return s.profiles.Save(ctx, p)
}

// --- search ---

// Search answers q over the caller's current scope. The candidate corpus
// is reassembled from the repositories on every call, so results always
// reflect live state even when the index lags.
func (s *Service) Search(ctx context.Context, projectID string, q search.Query) []search.Doc {
	var docs []search.Doc
	if q.Kind == "" || q.Kind == search.KindTask {
		for _, t := range s.tasks.List(ctx, projectID) {
			docs = append(docs, taskDoc(t))
		}
	}
	if q.Kind == "" || q.Kind == search.KindProject {
		for _, p := range s.projects.List(ctx) {
			docs = append(docs, projectDoc(p))
		}
	}
	if q.Kind == "" || q.Kind == search.KindGallery {
		for _, e := range s.gallery.List(ctx) {
			docs = append(docs, galleryDoc(e))
		}
	}
	return s.search.Search(q, docs)
}

// documentationDocs returns search docs for the gallery entries that
// reference refID. Completion writes its gallery entry through the
// workflow, not CreateGalleryEntry, so those entries are indexed here.
func (s *Service) documentationDocs(ctx context.Context, refID string) []search.Doc {
	var docs []search.Doc
	for _, e := range s.gallery.List(ctx) {
		if e.RefID == refID {
			docs = append(docs, galleryDoc(e))
		}
	}
	return docs
}

func taskDoc(t repo.Task) search.Doc {
	return search.Doc{
		ID: t.ID, Kind: search.KindTask,
		Title: t.Title, Description: t.Description,
		Status:    t.Status,
		CreatedAt: t.CreatedAt, CreatedAtMs: t.CreatedAt.UnixMilli(),
	}
}

func projectDoc(p repo.Project) search.Doc {
	return search.Doc{
		ID: p.ID, Kind: search.KindProject,
		Title: p.Name, Description: p.Description, Type: p.Type,
		Status:    p.Status,
		CreatedAt: p.CreatedAt, CreatedAtMs: p.CreatedAt.UnixMilli(),
	}
}

func galleryDoc(e repo.GalleryEntry) search.Doc {
	return search.Doc{
		ID: e.ID, Kind: search.KindGallery,
		Title: e.Title, Description: e.Description, Type: e.Type, RefID: e.RefID,
		CreatedAt: e.CreatedAt, CreatedAtMs: e.CreatedAt.UnixMilli(),
	}
}

// --- export / import / backup ---

// ExportAll gathers every repository's export blob for the current scope.
func (s *Service) ExportAll(ctx context.Context, projectID string) (map[string][]byte, error) {
	files := map[string][]byte{}

	tasks, err := s.tasks.Export(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files["tasks.json"] = tasks

	projects, err := s.projects.Export(ctx)
	if err != nil {
		return nil, err
	}
	files["projects.json"] = projects

	gallery, err := s.gallery.Export(ctx)
	if err != nil {
		return nil, err
	}
	files["gallery.json"] = gallery

	settings, err := s.settings.Export(ctx)
	if err != nil {
		return nil, err
	}
	files["settings.json"] = settings

	if s.session.ActiveUser(ctx) != "" {
		profile, err := s.profiles.Export(ctx)
		if err != nil {
			return nil, err
		}
		files["profile.json"] = profile
	}
	return files, nil
}

// Import routes an uploaded blob to the right repository. Returns how
// many entries were added for collection kinds.
func (s *Service) Import(ctx context.Context, kind, projectID string, blob []byte) (int, error) {
	switch kind {
	case "tasks":
		return s.tasks.Import(ctx, projectID, blob)
	case "projects":
		return s.projects.Import(ctx, blob)
	case "gallery":
		return s.gallery.Import(ctx, blob)
	case "settings":
		return 0, s.settings.Import(ctx, blob)
	case "profile":
		return 0, s.profiles.Import(ctx, blob)
	default:
		return 0, fmt.Errorf("%w: unknown import kind %q", repo.ErrValidation, kind)
	}
}

// Snapshot commits the current exports to the backup repository.
func (s *Service) Snapshot(ctx context.Context, projectID string) (string, error) {
	files, err := s.ExportAll(ctx, projectID)
	if err != nil {
		return "", err
	}
	message := fmt.Sprintf("Snapshot %s", time.Now().UTC().Format(time.RFC3339))
	return s.backup.Snapshot(files, message)
}

func (s *Service) BackupHistory(limit int) ([]string, error) {
	return s.backup.History(limit)
}

// --- dashboard stats ---

// DashboardStats is the derived aggregate shown on the dashboard. It is
// recomputed from the repositories and persisted as a cache only; the
// stored copy is never authoritative.
type DashboardStats struct {
	TotalProjects     int      `json:"totalProjects"`
	CompletedProjects int      `json:"completedProjects"`
	ActiveProjects    int      `json:"activeProjects"`
	RecentActivities  []string `json:"recentActivities"`
	ProductivityScore int      `json:"productivityScore"`
}

// RefreshDashboardStats recomputes the aggregate and writes it back
// under its well-known key.
func (s *Service) RefreshDashboardStats(ctx context.Context) DashboardStats {
	projects := s.projects.List(ctx)
	tasks := s.tasks.List(ctx, "")

	stats := DashboardStats{
		TotalProjects:    len(projects),
		RecentActivities: []string{},
	}
	for _, p := range projects {
		if p.Status == repo.ProjectCompleted {
			stats.CompletedProjects++
		} else {
			stats.ActiveProjects++
		}
	}

	completedTasks := 0
	for _, t := range tasks {
		if t.Status == repo.TaskCompleted {
			completedTasks++
		}
	}
	stats.ProductivityScore = productivityScore(completedTasks, len(tasks), stats.CompletedProjects, len(projects))
	stats.RecentActivities = recentActivities(tasks, projects, 5)

	s.kv.Set(ctx, keys.DashboardStats, stats)
	return stats
}

// productivityScore weighs task completion at 60% and project completion
// at 40%, each scaled by its own total.
func productivityScore(doneTasks, totalTasks, doneProjects, totalProjects int) int {
	score := 0
	if totalTasks > 0 {
		score += doneTasks * 60 / totalTasks
	}
	if totalProjects > 0 {
		score += doneProjects * 40 / totalProjects
	}
	return score
}

func recentActivities(tasks []repo.Task, projects []repo.Project, limit int) []string {
	type activity struct {
		at   time.Time
		text string
	}
	var all []activity
	for _, t := range tasks {
		verb := "Updated"
		if t.Status == repo.TaskCompleted {
			verb = "Completed"
		}
		all = append(all, activity{t.UpdatedAt, fmt.Sprintf("%s task %q", verb, t.Title)})
	}
	for _, p := range projects {
		verb := "Updated"
		if p.Status == repo.ProjectCompleted {
			verb = "Completed"
		}
		all = append(all, activity{p.UpdatedAt, fmt.Sprintf("%s project %q", verb, p.Name)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	out := []string{}
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, all[i].text)
	}
	return out
}
