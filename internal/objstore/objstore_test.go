package objstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	blobs, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	store, err := New(context.Background(), client, blobs)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store
}

func TestSetupIsIdempotent(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	blobs, _ := NewDirStore(t.TempDir())

	ctx := context.Background()
	if _, err := New(ctx, client, blobs); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := New(ctx, client, blobs); err != nil {
		t.Fatalf("second open: %v", err)
	}
}

func TestPutGetPayload(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	payload := []byte("png-bytes")
	rec := Record{ID: "img_1", Type: "task", RelatedID: "task_9", ContentType: "image/png"}
	if err := store.Put(ctx, rec, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "img_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != "task" || got.RelatedID != "task_9" || got.Size != len(payload) {
		t.Errorf("unexpected record: %+v", got)
	}

	data, err := store.Payload(ctx, got)
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch: %q", data)
	}
}

func putAt(t *testing.T, store *Store, id, typ, related string, at time.Time) {
	t.Helper()
	rec := Record{ID: id, Type: typ, RelatedID: related, ContentType: "image/png", CreatedAt: at}
	if err := store.Put(context.Background(), rec, []byte(id)); err != nil {
		t.Fatalf("Put %s failed: %v", id, err)
	}
}

func TestGetAllOrderedByCreatedAt(t *testing.T) {
	store := setupStore(t)
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	putAt(t, store, "img_b", "manual", "", base.Add(2*time.Minute))
	putAt(t, store, "img_a", "manual", "", base)
	putAt(t, store, "img_c", "manual", "", base.Add(5*time.Minute))

	recs, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	want := []string{"img_a", "img_b", "img_c"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, rec := range recs {
		if rec.ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, rec.ID, want[i])
		}
	}
}

func TestIndexLookups(t *testing.T) {
	store := setupStore(t)
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	putAt(t, store, "img_1", "task", "task_1", base)
	putAt(t, store, "img_2", "project", "proj_1", base.Add(time.Minute))
	putAt(t, store, "img_3", "task", "task_1", base.Add(2*time.Minute))

	byType, err := store.GetAllByType(ctx, "task")
	if err != nil {
		t.Fatalf("GetAllByType failed: %v", err)
	}
	if len(byType) != 2 || byType[0].ID != "img_1" || byType[1].ID != "img_3" {
		t.Errorf("unexpected type lookup result: %+v", byType)
	}

	byRel, err := store.GetAllByRelatedID(ctx, "task_1")
	if err != nil {
		t.Fatalf("GetAllByRelatedID failed: %v", err)
	}
	if len(byRel) != 2 {
		t.Errorf("expected 2 records for task_1, got %d", len(byRel))
	}
}

func TestDeleteRemovesRecordAndIndexes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	putAt(t, store, "img_1", "task", "task_1", time.Now().UTC())
	if err := store.Delete(ctx, "img_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "img_1"); err == nil {
		t.Error("expected record to be gone")
	}
	byType, _ := store.GetAllByType(ctx, "task")
	if len(byType) != 0 {
		t.Errorf("type index still holds %d records", len(byType))
	}

	// Deleting an unknown id is a no-op.
	if err := store.Delete(ctx, "img_missing"); err != nil {
		t.Errorf("Delete of unknown id: %v", err)
	}
}

func TestClear(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	putAt(t, store, "img_1", "task", "", time.Now().UTC())
	putAt(t, store, "img_2", "manual", "", time.Now().UTC())

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	recs, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll after Clear: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty store, got %d records", len(recs))
	}
}
