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

var taskStatuses = map[string]struct{}{
	TaskPending: {}, TaskInProgress: {}, TaskCompleted: {},
}

var taskPriorities = map[string]struct{}{
	PriorityLow: {}, PriorityMedium: {}, PriorityHigh: {},
}

// Tasks is the task repository. Collections are scoped by the active
// user and an optional project id; "" for both selects the global scope.
type Tasks struct {
	kv      *kv.Store
	session *session.Manager
	mig     migrator
}

func NewTasks(store *kv.Store, sess *session.Manager) *Tasks {
	return &Tasks{kv: store, session: sess}
}

func (r *Tasks) key(ctx context.Context, projectID string) string {
	user := r.session.ActiveUser(ctx)
	canonical := keys.Tasks(user, projectID)
	r.mig.ensure(ctx, r.kv, canonical, keys.LegacyTasks(user, projectID), wantArray)
	return canonical
}

// List returns the scope's tasks, empty (never nil) when absent or corrupt.
func (r *Tasks) List(ctx context.Context, projectID string) []Task {
	tasks := []Task{}
	r.kv.Get(ctx, r.key(ctx, projectID), &tasks)
	return tasks
}

// Save replaces the scope's whole collection.
func (r *Tasks) Save(ctx context.Context, projectID string, tasks []Task) bool {
	if tasks == nil {
		tasks = []Task{}
	}
	return r.kv.Set(ctx, r.key(ctx, projectID), tasks)
}

// Get returns one task by id.
func (r *Tasks) Get(ctx context.Context, projectID, id string) (Task, error) {
	for _, t := range r.List(ctx, projectID) {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
}

// Add validates and appends a new task. Title is required; status and
// priority default to pending/medium.
func (r *Tasks) Add(ctx context.Context, projectID string, t Task) (Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return Task{}, fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if _, ok := taskStatuses[t.Status]; !ok {
		return Task{}, fmt.Errorf("%w: unknown task status %q", ErrValidation, t.Status)
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if _, ok := taskPriorities[t.Priority]; !ok {
		return Task{}, fmt.Errorf("%w: unknown task priority %q", ErrValidation, t.Priority)
	}

	t.ID = util.NewID("task")
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.ProjectID == "" {
		t.ProjectID = projectID
	}

	tasks := append(r.List(ctx, projectID), t)
	if !r.Save(ctx, projectID, tasks) {
		return Task{}, fmt.Errorf("persist tasks")
	}
	return t, nil
}

// Update replaces the stored task's editable fields. Status changes to
// completed are refused here; completion goes through the workflow.
func (r *Tasks) Update(ctx context.Context, projectID string, t Task) (Task, error) {
	if t.Status != "" {
		if _, ok := taskStatuses[t.Status]; !ok {
			return Task{}, fmt.Errorf("%w: unknown task status %q", ErrValidation, t.Status)
		}
	}
	if t.Priority != "" {
		if _, ok := taskPriorities[t.Priority]; !ok {
			return Task{}, fmt.Errorf("%w: unknown task priority %q", ErrValidation, t.Priority)
		}
	}

	tasks := r.List(ctx, projectID)
	for i, cur := range tasks {
		if cur.ID != t.ID {
			continue
		}
		if t.Status == TaskCompleted && cur.Status != TaskCompleted {
			return Task{}, fmt.Errorf("%w: completing a task requires documentation", ErrValidation)
		}
		if t.Title != "" {
			cur.Title = strings.TrimSpace(t.Title)
		}
		cur.Description = t.Description
		cur.Deadline = t.Deadline
		if t.Priority != "" {
			cur.Priority = t.Priority
		}
		if t.Status != "" {
			cur.Status = t.Status
		}
		cur.UpdatedAt = time.Now().UTC()
		tasks[i] = cur
		if !r.Save(ctx, projectID, tasks) {
			return Task{}, fmt.Errorf("persist tasks")
		}
		return cur, nil
	}
	return Task{}, fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
}

// SetStatus moves a task between pending and inprogress, or reverts a
// completed task. Moving to completed is refused; see MarkCompleted.
func (r *Tasks) SetStatus(ctx context.Context, projectID, id, status string) (Task, error) {
	if _, ok := taskStatuses[status]; !ok {
		return Task{}, fmt.Errorf("%w: unknown task status %q", ErrValidation, status)
	}
	if status == TaskCompleted {
		return Task{}, fmt.Errorf("%w: completing a task requires documentation", ErrValidation)
	}
	return r.setStatus(ctx, projectID, id, status)
}

// MarkCompleted records the status half of the completion workflow.
// Callers must have stored the documentation gallery entry first; use
// workflow.Completer rather than calling this directly.
func (r *Tasks) MarkCompleted(ctx context.Context, projectID, id string) (Task, error) {
	return r.setStatus(ctx, projectID, id, TaskCompleted)
}

func (r *Tasks) setStatus(ctx context.Context, projectID, id, status string) (Task, error) {
	tasks := r.List(ctx, projectID)
	for i, t := range tasks {
		if t.ID != id {
			continue
		}
		t.Status = status
		t.UpdatedAt = time.Now().UTC()
		tasks[i] = t
		if !r.Save(ctx, projectID, tasks) {
			return Task{}, fmt.Errorf("persist tasks")
		}
		return t, nil
	}
	return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
}

// Delete removes a task by id.
func (r *Tasks) Delete(ctx context.Context, projectID, id string) error {
	tasks := r.List(ctx, projectID)
	for i, t := range tasks {
		if t.ID == id {
			tasks = append(tasks[:i], tasks[i+1:]...)
			if !r.Save(ctx, projectID, tasks) {
				return fmt.Errorf("persist tasks")
			}
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}

// Export serializes the scope's collection as a JSON array.
func (r *Tasks) Export(ctx context.Context, projectID string) ([]byte, error) {
	return json.MarshalIndent(r.List(ctx, projectID), "", "  ")
}

// Import merges a JSON array into the scope by id; duplicates are
// dropped. A blob that is not an array is rejected without mutation.
func (r *Tasks) Import(ctx context.Context, projectID string, blob []byte) (int, error) {
	incoming, err := decodeCollection[Task](blob)
	if err != nil {
		return 0, err
	}
	merged, added := mergeByID(r.List(ctx, projectID), incoming, func(t Task) string { return t.ID })
	if added > 0 && !r.Save(ctx, projectID, merged) {
		return 0, fmt.Errorf("persist tasks")
	}
	return added, nil
}
