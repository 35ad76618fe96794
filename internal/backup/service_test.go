package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotInitsRepoAndCommits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	svc := New(dir)

	hash, err := svc.Snapshot(map[string][]byte{
		"tasks.json":    []byte(`[]`),
		"settings.json": []byte(`{"theme":"dark"}`),
	}, "first snapshot")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a commit hash")
	}

	data, err := os.ReadFile(filepath.Join(dir, "tasks.json"))
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestSnapshotHistory(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "backups"))

	if _, err := svc.Snapshot(map[string][]byte{"tasks.json": []byte(`[]`)}, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Snapshot(map[string][]byte{"tasks.json": []byte(`[{"id":"t1"}]`)}, "two"); err != nil {
		t.Fatal(err)
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history holds %d entries, want 2", len(history))
	}
	if !strings.Contains(history[0], "two") {
		t.Errorf("newest first expected: %v", history)
	}
}

func TestHistoryEmptyWithoutRepo(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "never-created"))
	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %v", history)
	}
}
