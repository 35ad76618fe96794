package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/util"
)

// UndoWindow is how long a deleted gallery entry stays recoverable.
const UndoWindow = 5 * time.Second

var galleryTypes = map[string]struct{}{
	GalleryManual: {}, GalleryTask: {}, GalleryProject: {},
}

// pendingDelete is the one-slot undo buffer. Expiry is checked by the
// caller-facing methods against the repository clock, not by a timer
// tied to any UI lifetime.
type pendingDelete struct {
	entry     GalleryEntry
	expiresAt time.Time
}

// Gallery is the documentation gallery repository. The collection is
// shared by every user; see keys.GallerySharedAcrossUsers.
type Gallery struct {
	kv     *kv.Store
	now    func() time.Time
	window time.Duration

	mu      sync.Mutex
	pending *pendingDelete
}

func NewGallery(store *kv.Store) *Gallery {
	return &Gallery{kv: store, now: time.Now, window: UndoWindow}
}

// SetUndoWindow overrides the default undo window. Non-positive values
// are ignored.
func (r *Gallery) SetUndoWindow(d time.Duration) {
	if d > 0 {
		r.window = d
	}
}

// List returns all entries, empty (never nil) when absent or corrupt.
func (r *Gallery) List(ctx context.Context) []GalleryEntry {
	entries := []GalleryEntry{}
	r.kv.Get(ctx, keys.Gallery(), &entries)
	return entries
}

// Save replaces the whole collection.
func (r *Gallery) Save(ctx context.Context, entries []GalleryEntry) bool {
	if entries == nil {
		entries = []GalleryEntry{}
	}
	return r.kv.Set(ctx, keys.Gallery(), entries)
}

// Get returns one entry by id.
func (r *Gallery) Get(ctx context.Context, id string) (GalleryEntry, error) {
	for _, e := range r.List(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	return GalleryEntry{}, fmt.Errorf("gallery entry %s: %w", id, ErrNotFound)
}

// Add validates and appends a new entry. Title and image are required;
// type defaults to manual. Type and refId are fixed at creation.
func (r *Gallery) Add(ctx context.Context, e GalleryEntry) (GalleryEntry, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return GalleryEntry{}, fmt.Errorf("%w: gallery title is required", ErrValidation)
	}
	if e.Image == "" {
		return GalleryEntry{}, fmt.Errorf("%w: gallery image is required", ErrValidation)
	}
	if e.Type == "" {
		e.Type = GalleryManual
	}
	if _, ok := galleryTypes[e.Type]; !ok {
		return GalleryEntry{}, fmt.Errorf("%w: unknown gallery type %q", ErrValidation, e.Type)
	}

	e.ID = util.NewID("gal")
	e.CreatedAt = time.Now().UTC()

	entries := append(r.List(ctx), e)
	if !r.Save(ctx, entries) {
		return GalleryEntry{}, fmt.Errorf("persist gallery")
	}
	return e, nil
}

// UpdateText edits an entry's title and description. Type, refId and
// image are immutable after creation.
func (r *Gallery) UpdateText(ctx context.Context, id, title, description string) (GalleryEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return GalleryEntry{}, fmt.Errorf("%w: gallery title is required", ErrValidation)
	}
	entries := r.List(ctx)
	for i, e := range entries {
		if e.ID != id {
			continue
		}
		e.Title = title
		e.Description = description
		entries[i] = e
		if !r.Save(ctx, entries) {
			return GalleryEntry{}, fmt.Errorf("persist gallery")
		}
		return e, nil
	}
	return GalleryEntry{}, fmt.Errorf("gallery entry %s: %w", id, ErrNotFound)
}

// Delete removes an entry immediately and arms the undo buffer. Only the
// most recent delete is undoable: a second delete inside the window
// discards the first undo opportunity.
func (r *Gallery) Delete(ctx context.Context, id string) error {
	entries := r.List(ctx)
	for i, e := range entries {
		if e.ID != id {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if !r.Save(ctx, entries) {
			return fmt.Errorf("persist gallery")
		}
		r.mu.Lock()
		r.pending = &pendingDelete{entry: e, expiresAt: r.now().Add(r.window)}
		r.mu.Unlock()
		return nil
	}
	return fmt.Errorf("gallery entry %s: %w", id, ErrNotFound)
}

// Undo restores the most recently deleted entry at the head of the
// collection, if the window has not elapsed. Returns false when there is
// nothing to restore; an expired buffer is cleared on the way out.
func (r *Gallery) Undo(ctx context.Context) (GalleryEntry, bool) {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	r.mu.Unlock()

	if p == nil || r.now().After(p.expiresAt) {
		return GalleryEntry{}, false
	}

	entries := append([]GalleryEntry{p.entry}, r.List(ctx)...)
	if !r.Save(ctx, entries) {
		return GalleryEntry{}, false
	}
	return p.entry, true
}

// PendingUndo reports whether an undo is currently available and when it
// expires.
func (r *Gallery) PendingUndo() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil || r.now().After(r.pending.expiresAt) {
		return time.Time{}, false
	}
	return r.pending.expiresAt, true
}

// Export serializes the collection as a JSON array.
func (r *Gallery) Export(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(r.List(ctx), "", "  ")
}

// Import merges a JSON array by id; duplicates dropped.
func (r *Gallery) Import(ctx context.Context, blob []byte) (int, error) {
	incoming, err := decodeCollection[GalleryEntry](blob)
	if err != nil {
		return 0, err
	}
	merged, added := mergeByID(r.List(ctx), incoming, func(e GalleryEntry) string { return e.ID })
	if added > 0 && !r.Save(ctx, merged) {
		return 0, fmt.Errorf("persist gallery")
	}
	return added, nil
}
