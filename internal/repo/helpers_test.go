package repo

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/session"
)

func setupKV(t *testing.T) (*kv.Store, *session.Manager) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := kv.Open("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, session.NewManager(store)
}
