package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/objstore"
	"pulseboard/api/internal/repo"
	"pulseboard/api/internal/session"
)

type fixture struct {
	tasks    *repo.Tasks
	projects *repo.Projects
	gallery  *repo.Gallery
	images   *objstore.Store
	complete *Completer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := kv.Open("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := objstore.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	images, err := objstore.New(context.Background(), store.Client(), blobs)
	if err != nil {
		t.Fatalf("image store: %v", err)
	}

	sess := session.NewManager(store)
	f := &fixture{
		tasks:    repo.NewTasks(store, sess),
		projects: repo.NewProjects(store, sess),
		gallery:  repo.NewGallery(store),
		images:   images,
	}
	f.complete = NewCompleter(f.tasks, f.projects, f.gallery, f.images)
	return f
}

func TestCompleteTaskWithoutImageRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task, _ := f.tasks.Add(ctx, "", repo.Task{Title: "Write spec"})

	_, err := f.complete.CompleteTask(ctx, "", task.ID, Doc{Title: "No proof"})
	if !errors.Is(err, repo.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	got, _ := f.tasks.Get(ctx, "", task.ID)
	if got.Status != repo.TaskPending {
		t.Errorf("status changed without documentation: %q", got.Status)
	}
	if len(f.gallery.List(ctx)) != 0 {
		t.Error("gallery entry created despite rejection")
	}
}

func TestCompleteTaskWithImage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task, _ := f.tasks.Add(ctx, "", repo.Task{Title: "Write spec"})

	completed, err := f.complete.CompleteTask(ctx, "", task.ID, Doc{
		Title: "Spec done", Description: "final draft", Image: []byte("png"),
	})
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if completed.Status != repo.TaskCompleted {
		t.Errorf("status = %q", completed.Status)
	}
	if !completed.UpdatedAt.After(task.UpdatedAt) && !completed.UpdatedAt.Equal(task.UpdatedAt) {
		t.Errorf("updatedAt not refreshed")
	}

	entries := f.gallery.List(ctx)
	if len(entries) != 1 {
		t.Fatalf("gallery holds %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Type != repo.GalleryTask || entry.RefID != task.ID {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !strings.HasPrefix(entry.Image, "obj:") {
		t.Errorf("image should reference the object store: %q", entry.Image)
	}

	// The image payload is retrievable through the index.
	recs, err := f.images.GetAllByRelatedID(ctx, task.ID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("image record lookup: %v, %d", err, len(recs))
	}
	payload, err := f.images.Payload(ctx, recs[0])
	if err != nil || string(payload) != "png" {
		t.Errorf("payload = %q, %v", payload, err)
	}
}

func TestReopenPreservesDocumentation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task, _ := f.tasks.Add(ctx, "", repo.Task{Title: "Write spec"})
	f.complete.CompleteTask(ctx, "", task.ID, Doc{Image: []byte("png")})

	reopened, err := f.complete.ReopenTask(ctx, "", task.ID)
	if err != nil {
		t.Fatalf("ReopenTask failed: %v", err)
	}
	if reopened.Status != repo.TaskPending {
		t.Errorf("status after reopen = %q", reopened.Status)
	}
	if len(f.gallery.List(ctx)) != 1 {
		t.Error("reopen removed the documentation entry")
	}
}

func TestCompleteAlreadyCompletedTaskIsNoOp(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task, _ := f.tasks.Add(ctx, "", repo.Task{Title: "Write spec"})
	f.complete.CompleteTask(ctx, "", task.ID, Doc{Image: []byte("png")})

	// No image needed: the task is already complete, nothing happens.
	again, err := f.complete.CompleteTask(ctx, "", task.ID, Doc{})
	if err != nil {
		t.Fatalf("second complete errored: %v", err)
	}
	if again.Status != repo.TaskCompleted {
		t.Errorf("status = %q", again.Status)
	}
	if len(f.gallery.List(ctx)) != 1 {
		t.Error("duplicate documentation created")
	}
}

func TestCompleteProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	project, _ := f.projects.Add(ctx, repo.Project{Name: "Dashboard", Type: "Web"})

	if _, err := f.complete.CompleteProject(ctx, project.ID, Doc{}); !errors.Is(err, repo.ErrValidation) {
		t.Fatalf("expected ErrValidation without image, got %v", err)
	}

	completed, err := f.complete.CompleteProject(ctx, project.ID, Doc{Image: []byte("png")})
	if err != nil {
		t.Fatalf("CompleteProject failed: %v", err)
	}
	if completed.Status != repo.ProjectCompleted {
		t.Errorf("status = %q", completed.Status)
	}

	entries := f.gallery.List(ctx)
	if len(entries) != 1 || entries[0].Type != repo.GalleryProject || entries[0].RefID != project.ID {
		t.Errorf("unexpected gallery state: %+v", entries)
	}

	reopened, err := f.complete.ReopenProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("ReopenProject failed: %v", err)
	}
	if reopened.Status != repo.ProjectInProgress {
		t.Errorf("status after reopen = %q", reopened.Status)
	}
	if len(f.gallery.List(ctx)) != 1 {
		t.Error("reopen removed documentation")
	}
}

// End-to-end scenario: save, complete with image, revert.
func TestTaskLifecycleScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	task, err := f.tasks.Add(ctx, "", repo.Task{Title: "Write spec"})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.tasks.List(ctx, ""); len(got) != 1 || got[0].Status != repo.TaskPending {
		t.Fatalf("after add: %+v", got)
	}

	if _, err := f.complete.CompleteTask(ctx, "", task.ID, Doc{Image: []byte("png")}); err != nil {
		t.Fatal(err)
	}
	got, _ := f.tasks.Get(ctx, "", task.ID)
	if got.Status != repo.TaskCompleted {
		t.Fatalf("after complete: %q", got.Status)
	}
	if entries := f.gallery.List(ctx); len(entries) != 1 || entries[0].RefID != task.ID {
		t.Fatalf("gallery after complete: %+v", entries)
	}

	if _, err := f.complete.ReopenTask(ctx, "", task.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = f.tasks.Get(ctx, "", task.ID)
	if got.Status != repo.TaskPending {
		t.Fatalf("after revert: %q", got.Status)
	}
	if entries := f.gallery.List(ctx); len(entries) != 1 {
		t.Fatalf("gallery after revert: %d entries", len(entries))
	}
}
