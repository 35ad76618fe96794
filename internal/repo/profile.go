package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/session"
)

// Profiles holds one Profile record per user. Profiles are unavailable
// in the anonymous scope: every operation requires an active user.
type Profiles struct {
	kv      *kv.Store
	session *session.Manager
}

func NewProfiles(store *kv.Store, sess *session.Manager) *Profiles {
	return &Profiles{kv: store, session: sess}
}

func (r *Profiles) key(ctx context.Context) (string, error) {
	key, ok := keys.Profile(r.session.ActiveUser(ctx))
	if !ok {
		return "", ErrNoActiveUser
	}
	return key, nil
}

// Load returns the active user's profile, or a fresh default when the
// user has never saved one. The default is not persisted by Load.
func (r *Profiles) Load(ctx context.Context) (Profile, error) {
	key, err := r.key(ctx)
	if err != nil {
		return Profile{}, err
	}
	p := DefaultProfile()
	r.kv.Get(ctx, key, &p)
	return p, nil
}

// Save validates and replaces the active user's profile.
func (r *Profiles) Save(ctx context.Context, p Profile) error {
	key, err := r.key(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("%w: profile username is required", ErrValidation)
	}
	if !r.kv.Set(ctx, key, p) {
		return fmt.Errorf("persist profile")
	}
	return nil
}

// Export serializes the profile as a JSON object.
func (r *Profiles) Export(ctx context.Context) ([]byte, error) {
	p, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(p, "", "  ")
}

// Import replaces the profile from a JSON object. Anything other than
// an object is rejected without mutation.
func (r *Profiles) Import(ctx context.Context, blob []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(blob, &probe); err != nil || probe == nil {
		return fmt.Errorf("%w: expected a JSON object", ErrValidation)
	}
	p := DefaultProfile()
	if err := json.Unmarshal(blob, &p); err != nil {
		return fmt.Errorf("%w: malformed profile: %v", ErrValidation, err)
	}
	return r.Save(ctx, p)
}
