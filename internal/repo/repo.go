// Package repo implements the typed entity repositories. All persistence
// goes through the key-value adapter with keys from the addressing
// scheme; no caller ever touches a raw key string. Every mutation reads
// the current value, applies the change in memory, and writes the whole
// value back. Within one scope the last write wins; there is no lock and
// no cross-scope transaction. That is the documented contract for this
// single-user tool, not an accident.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pulseboard/api/internal/kv"
)

var (
	// ErrNotFound reports a lookup for an id the collection does not hold.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports a rejected operation; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrNoActiveUser reports an operation that requires a signed-in user.
	ErrNoActiveUser = errors.New("no active user")
)

// migrator runs the one-shot legacy-key migration. A scope is migrated
// at most once per process, the copy is verbatim, and the legacy key is
// never deleted.
type migrator struct {
	mu   sync.Mutex
	done map[string]struct{}
}

// wantArray accepts legacy values that hold a non-empty JSON array.
func wantArray(raw json.RawMessage) bool {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return false
	}
	return len(rows) > 0
}

// wantObject accepts legacy values that hold a JSON object.
func wantObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

// ensure copies the first acceptable legacy value into canonical, once.
// A canonical key that already holds an acceptable value skips the probe.
func (m *migrator) ensure(ctx context.Context, store *kv.Store, canonical string, legacy []string, accept func(json.RawMessage) bool) {
	if len(legacy) == 0 {
		return
	}

	m.mu.Lock()
	if m.done == nil {
		m.done = make(map[string]struct{})
	}
	if _, seen := m.done[canonical]; seen {
		m.mu.Unlock()
		return
	}
	m.done[canonical] = struct{}{}
	m.mu.Unlock()

	var current json.RawMessage
	if store.Get(ctx, canonical, &current) && accept(current) {
		return
	}

	for _, key := range legacy {
		var raw json.RawMessage
		if !store.Get(ctx, key, &raw) || !accept(raw) {
			continue
		}
		store.Set(ctx, canonical, raw)
		return
	}
}

// mergeByID appends incoming entries whose id is not already present.
// Duplicates are silently dropped, not overwritten. Returns the merged
// collection and how many entries were added.
func mergeByID[T any](existing, incoming []T, id func(T) string) ([]T, int) {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[id(e)] = struct{}{}
	}
	added := 0
	for _, in := range incoming {
		if _, dup := seen[id(in)]; dup {
			continue
		}
		seen[id(in)] = struct{}{}
		existing = append(existing, in)
		added++
	}
	return existing, added
}

// decodeCollection parses an import blob that must be a top-level array.
func decodeCollection[T any](blob []byte) ([]T, error) {
	var rows []T
	if err := json.Unmarshal(blob, &rows); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", ErrValidation, err)
	}
	return rows, nil
}
