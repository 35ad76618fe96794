// Package session resolves the active user that scopes every storage key.
package session

import (
	"context"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
)

// Manager resolves and updates the current-user record. The id is opaque
// and used only for key scoping; there is no expiry or validation here.
type Manager struct {
	kv *kv.Store
}

func NewManager(store *kv.Store) *Manager {
	return &Manager{kv: store}
}

// ActiveUser returns the current user id, or "" for the anonymous/global
// scope. It probes the ordered legacy locations and takes the first
// non-empty value. A value found only in a legacy location is promoted
// to the canonical key so later reads are direct.
func (m *Manager) ActiveUser(ctx context.Context) string {
	for i, key := range keys.ActiveUserLocations {
		var id string
		if !m.kv.Get(ctx, key, &id) || id == "" {
			continue
		}
		if i > 0 {
			m.kv.Set(ctx, keys.ActiveUser, id)
		}
		return id
	}
	return ""
}

// SetActiveUser records id as the current user.
func (m *Manager) SetActiveUser(ctx context.Context, id string) bool {
	return m.kv.Set(ctx, keys.ActiveUser, id)
}

// Clear logs the current user out. Legacy locations are cleared too so a
// stale alternate cannot resurrect the session.
func (m *Manager) Clear(ctx context.Context) {
	for _, key := range keys.ActiveUserLocations {
		m.kv.Remove(ctx, key)
	}
}
