// Package workflow binds task and project completion to mandatory
// gallery documentation. An entity moves to its completed status only
// together with a new gallery entry carrying an image; reverting needs
// no documentation and never deletes what was recorded.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulseboard/api/internal/objstore"
	"pulseboard/api/internal/repo"
	"pulseboard/api/internal/util"
)

// Doc is the caller-supplied documentation for a completion.
type Doc struct {
	Title       string
	Description string
	Image       []byte
	ContentType string
}

// Completer runs the completion state machine for tasks and projects.
type Completer struct {
	tasks    *repo.Tasks
	projects *repo.Projects
	gallery  *repo.Gallery
	images   *objstore.Store
}

func NewCompleter(tasks *repo.Tasks, projects *repo.Projects, gallery *repo.Gallery, images *objstore.Store) *Completer {
	return &Completer{tasks: tasks, projects: projects, gallery: gallery, images: images}
}

// CompleteTask documents and completes a task. The gallery entry is
// written before the status flips, so a failure partway can leave extra
// documentation but never an undocumented completed task.
func (c *Completer) CompleteTask(ctx context.Context, projectID, taskID string, doc Doc) (repo.Task, error) {
	task, err := c.tasks.Get(ctx, projectID, taskID)
	if err != nil {
		return repo.Task{}, err
	}
	if task.Status == repo.TaskCompleted {
		return task, nil
	}

	if err := c.document(ctx, repo.GalleryTask, taskID, task.Title, doc); err != nil {
		return repo.Task{}, err
	}
	return c.tasks.MarkCompleted(ctx, projectID, taskID)
}

// ReopenTask reverts a completed task to pending. Existing gallery
// entries referencing the task are preserved.
func (c *Completer) ReopenTask(ctx context.Context, projectID, taskID string) (repo.Task, error) {
	return c.tasks.SetStatus(ctx, projectID, taskID, repo.TaskPending)
}

// CompleteProject documents and completes a project.
func (c *Completer) CompleteProject(ctx context.Context, projectID string, doc Doc) (repo.Project, error) {
	project, err := c.projects.Get(ctx, projectID)
	if err != nil {
		return repo.Project{}, err
	}
	if project.Status == repo.ProjectCompleted {
		return project, nil
	}

	if err := c.document(ctx, repo.GalleryProject, projectID, project.Name, doc); err != nil {
		return repo.Project{}, err
	}
	return c.projects.MarkCompleted(ctx, projectID)
}

// ReopenProject reverts a completed project to In Progress.
func (c *Completer) ReopenProject(ctx context.Context, projectID string) (repo.Project, error) {
	return c.projects.Reopen(ctx, projectID)
}

// document validates the doc, stores the image and appends the gallery
// entry. Nothing is written when validation fails.
func (c *Completer) document(ctx context.Context, typ, refID, fallbackTitle string, doc Doc) error {
	if len(doc.Image) == 0 {
		return fmt.Errorf("%w: a documentation image is required to complete", repo.ErrValidation)
	}
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = fallbackTitle
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	rec := objstore.Record{
		ID:          util.NewID("img"),
		Type:        typ,
		RelatedID:   refID,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.images.Put(ctx, rec, doc.Image); err != nil {
		return fmt.Errorf("store documentation image: %w", err)
	}

	_, err := c.gallery.Add(ctx, repo.GalleryEntry{
		Type:        typ,
		RefID:       refID,
		Title:       title,
		Description: doc.Description,
		Image:       "obj:" + rec.ID,
	})
	return err
}
