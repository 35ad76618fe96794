package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/session"
	"pulseboard/api/internal/util"
)

// Projects is the project repository, scoped by the active user.
type Projects struct {
	kv      *kv.Store
	session *session.Manager
	mig     migrator
}

func NewProjects(store *kv.Store, sess *session.Manager) *Projects {
	return &Projects{kv: store, session: sess}
}

func (r *Projects) key(ctx context.Context) string {
	user := r.session.ActiveUser(ctx)
	canonical := keys.Projects(user)
	r.mig.ensure(ctx, r.kv, canonical, keys.LegacyProjects(user), wantArray)
	return canonical
}

// List returns the scope's projects, empty (never nil) when absent.
func (r *Projects) List(ctx context.Context) []Project {
	projects := []Project{}
	r.kv.Get(ctx, r.key(ctx), &projects)
	return projects
}

// Save replaces the scope's whole collection.
func (r *Projects) Save(ctx context.Context, projects []Project) bool {
	if projects == nil {
		projects = []Project{}
	}
	return r.kv.Set(ctx, r.key(ctx), projects)
}

// Get returns one project by id.
func (r *Projects) Get(ctx context.Context, id string) (Project, error) {
	for _, p := range r.List(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

// Add validates and appends a new project.
func (r *Projects) Add(ctx context.Context, p Project) (Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if _, ok := ProjectTypes[p.Type]; !ok {
		return Project{}, fmt.Errorf("%w: unknown project type %q", ErrValidation, p.Type)
	}

	p.ID = util.NewID("proj")
	p.Status = ProjectInProgress
	if p.Subprojects == nil {
		p.Subprojects = []Subproject{}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	projects := append(r.List(ctx), p)
	if !r.Save(ctx, projects) {
		return Project{}, fmt.Errorf("persist projects")
	}
	return p, nil
}

// Update replaces a project's editable fields. Status transitions to
// Completed are refused here; completion goes through the workflow.
func (r *Projects) Update(ctx context.Context, p Project) (Project, error) {
	projects := r.List(ctx)
	for i, cur := range projects {
		if cur.ID != p.ID {
			continue
		}
		if p.Status == ProjectCompleted && cur.Status != ProjectCompleted {
			return Project{}, fmt.Errorf("%w: completing a project requires documentation", ErrValidation)
		}
		if p.Name != "" {
			cur.Name = strings.TrimSpace(p.Name)
		}
		if p.Type != "" {
			if _, ok := ProjectTypes[p.Type]; !ok {
				return Project{}, fmt.Errorf("%w: unknown project type %q", ErrValidation, p.Type)
			}
			cur.Type = p.Type
		}
		cur.Description = p.Description
		cur.Tech = p.Tech
		cur.Deadline = p.Deadline
		if p.Status == ProjectInProgress {
			cur.Status = ProjectInProgress
		}
		cur.UpdatedAt = time.Now().UTC()
		projects[i] = cur
		if !r.Save(ctx, projects) {
			return Project{}, fmt.Errorf("persist projects")
		}
		return cur, nil
	}
	return Project{}, fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
}

// MarkCompleted records the status half of the completion workflow.
// Use workflow.Completer rather than calling this directly.
func (r *Projects) MarkCompleted(ctx context.Context, id string) (Project, error) {
	return r.setStatus(ctx, id, ProjectCompleted)
}

// Reopen reverts a completed project to In Progress. Documentation
// created when it was completed is left untouched.
func (r *Projects) Reopen(ctx context.Context, id string) (Project, error) {
	return r.setStatus(ctx, id, ProjectInProgress)
}

func (r *Projects) setStatus(ctx context.Context, id, status string) (Project, error) {
	projects := r.List(ctx)
	for i, p := range projects {
		if p.ID != id {
			continue
		}
		p.Status = status
		p.UpdatedAt = time.Now().UTC()
		projects[i] = p
		if !r.Save(ctx, projects) {
			return Project{}, fmt.Errorf("persist projects")
		}
		return p, nil
	}
	return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

// AddSubproject appends a subproject. Subprojects have no independent
// lifecycle: they live and die with their project.
func (r *Projects) AddSubproject(ctx context.Context, projectID, name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: subproject name is required", ErrValidation)
	}
	projects := r.List(ctx)
	for i, p := range projects {
		if p.ID != projectID {
			continue
		}
		p.Subprojects = append(p.Subprojects, Subproject{
			ID:     util.NewID("sub"),
			Name:   name,
			Status: ProjectInProgress,
		})
		p.UpdatedAt = time.Now().UTC()
		projects[i] = p
		if !r.Save(ctx, projects) {
			return Project{}, fmt.Errorf("persist projects")
		}
		return p, nil
	}
	return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
}

// ToggleSubproject flips a subproject between In Progress and Completed.
// No documentation requirement applies at this level.
func (r *Projects) ToggleSubproject(ctx context.Context, projectID, subID string) (Project, error) {
	projects := r.List(ctx)
	for i, p := range projects {
		if p.ID != projectID {
			continue
		}
		for j, sp := range p.Subprojects {
			if sp.ID != subID {
				continue
			}
			if sp.Status == ProjectCompleted {
				sp.Status = ProjectInProgress
			} else {
				sp.Status = ProjectCompleted
			}
			p.Subprojects[j] = sp
			p.UpdatedAt = time.Now().UTC()
			projects[i] = p
			if !r.Save(ctx, projects) {
				return Project{}, fmt.Errorf("persist projects")
			}
			return p, nil
		}
		return Project{}, fmt.Errorf("subproject %s: %w", subID, ErrNotFound)
	}
	return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
}

// Delete removes a project by id. Tasks referencing it keep their
// projectId; the dangling reference is tolerated.
func (r *Projects) Delete(ctx context.Context, id string) error {
	projects := r.List(ctx)
	for i, p := range projects {
		if p.ID == id {
			projects = append(projects[:i], projects[i+1:]...)
			if !r.Save(ctx, projects) {
				return fmt.Errorf("persist projects")
			}
			return nil
		}
	}
	return fmt.Errorf("project %s: %w", id, ErrNotFound)
}

// Export serializes the scope's collection as a JSON array.
func (r *Projects) Export(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(r.List(ctx), "", "  ")
}

// Import merges a JSON array into the scope by id; duplicates dropped.
func (r *Projects) Import(ctx context.Context, blob []byte) (int, error) {
	incoming, err := decodeCollection[Project](blob)
	if err != nil {
		return 0, err
	}
	merged, added := mergeByID(r.List(ctx), incoming, func(p Project) string { return p.ID })
	if added > 0 && !r.Save(ctx, merged) {
		return 0, fmt.Errorf("persist projects")
	}
	return added, nil
}
