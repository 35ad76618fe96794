package repo

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsDefaultWhenAbsent(t *testing.T) {
	store, sess := setupKV(t)
	settings := NewSettings(store, sess)

	got := settings.Load(context.Background())
	if got != DefaultSettings() {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestSettingsSaveLoadRoundTrip(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	settings := NewSettings(store, sess)

	in := Settings{Theme: "dark", AccentColor: "custom", CustomAccent: "#ff00aa", Font: "mono", FontSize: 16}
	if err := settings.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := settings.Load(ctx); got != in {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSettingsValidation(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	settings := NewSettings(store, sess)

	if err := settings.Save(ctx, Settings{Theme: "neon", FontSize: 14}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown theme, got %v", err)
	}
	if err := settings.Save(ctx, Settings{Theme: "dark", FontSize: 0}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for zero font size, got %v", err)
	}
}

func TestSettingsPerUserScope(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	settings := NewSettings(store, sess)

	global := Settings{Theme: "light", AccentColor: "red", Font: "inter", FontSize: 12}
	settings.Save(ctx, global)

	sess.SetActiveUser(ctx, "u1")
	personal := Settings{Theme: "dark", AccentColor: "green", Font: "mono", FontSize: 18}
	settings.Save(ctx, personal)

	if got := settings.Load(ctx); got != personal {
		t.Errorf("user scope = %+v", got)
	}
	sess.Clear(ctx)
	if got := settings.Load(ctx); got != global {
		t.Errorf("global scope = %+v", got)
	}
}

func TestSettingsImportRejectsArray(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	settings := NewSettings(store, sess)

	saved := Settings{Theme: "dark", AccentColor: "red", Font: "inter", FontSize: 12}
	settings.Save(ctx, saved)

	if err := settings.Import(ctx, []byte(`[{"theme":"light"}]`)); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for array blob, got %v", err)
	}
	if got := settings.Load(ctx); got != saved {
		t.Errorf("rejected import mutated state: %+v", got)
	}
}

func TestSettingsImportObject(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	settings := NewSettings(store, sess)

	blob := []byte(`{"theme":"dark","accentColor":"blue","customAccent":"","font":"inter","fontSize":15}`)
	if err := settings.Import(ctx, blob); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if got := settings.Load(ctx); got.Theme != "dark" || got.FontSize != 15 {
		t.Errorf("import not applied: %+v", got)
	}
}
