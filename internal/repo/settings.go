package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/session"
)

var settingsThemes = map[string]struct{}{
	"light": {}, "dark": {}, "system": {},
}

// SettingsRepo holds exactly one Settings record per user, or one global
// record for the anonymous scope.
type SettingsRepo struct {
	kv      *kv.Store
	session *session.Manager
	mig     migrator
}

func NewSettings(store *kv.Store, sess *session.Manager) *SettingsRepo {
	return &SettingsRepo{kv: store, session: sess}
}

func (r *SettingsRepo) key(ctx context.Context) string {
	user := r.session.ActiveUser(ctx)
	canonical := keys.Settings(user)
	r.mig.ensure(ctx, r.kv, canonical, keys.LegacySettings(user), wantObject)
	return canonical
}

// Load returns the scope's settings, or the defaults when absent/corrupt.
func (r *SettingsRepo) Load(ctx context.Context) Settings {
	s := DefaultSettings()
	r.kv.Get(ctx, r.key(ctx), &s)
	return s
}

// Save validates and replaces the scope's settings.
func (r *SettingsRepo) Save(ctx context.Context, s Settings) error {
	if _, ok := settingsThemes[s.Theme]; !ok {
		return fmt.Errorf("%w: unknown theme %q", ErrValidation, s.Theme)
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("%w: font size must be positive", ErrValidation)
	}
	if !r.kv.Set(ctx, r.key(ctx), s) {
		return fmt.Errorf("persist settings")
	}
	return nil
}

// Export serializes the scope's settings as a JSON object.
func (r *SettingsRepo) Export(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(r.Load(ctx), "", "  ")
}

// Import replaces the scope's settings from a JSON object. Anything
// other than an object is rejected without mutation.
func (r *SettingsRepo) Import(ctx context.Context, blob []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(blob, &probe); err != nil || probe == nil {
		return fmt.Errorf("%w: expected a JSON object", ErrValidation)
	}
	s := DefaultSettings()
	if err := json.Unmarshal(blob, &s); err != nil {
		return fmt.Errorf("%w: malformed settings: %v", ErrValidation, err)
	}
	return r.Save(ctx, s)
}
