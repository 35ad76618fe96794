package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProfileRequiresActiveUser(t *testing.T) {
	store, sess := setupKV(t)
	profiles := NewProfiles(store, sess)
	ctx := context.Background()

	if _, err := profiles.Load(ctx); !errors.Is(err, ErrNoActiveUser) {
		t.Errorf("Load in anonymous scope: %v", err)
	}
	if err := profiles.Save(ctx, Profile{Username: "ada"}); !errors.Is(err, ErrNoActiveUser) {
		t.Errorf("Save in anonymous scope: %v", err)
	}
}

func TestProfileSaveLoadRoundTrip(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	sess.SetActiveUser(ctx, "u1")
	profiles := NewProfiles(store, sess)

	in := Profile{
		Username: "ada",
		Name:     "Ada Lovelace",
		Handle:   "@ada",
		Email:    "ada@example.com",
		Joined:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Level:    3,
		XP:       420,
		Social:   SocialLinks{GitHub: "ada"},
		Stats:    ProfileStats{TotalTasks: 12, Completed: 7, Streak: 4},
	}
	if err := profiles.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := profiles.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestProfileDefaultNotPersisted(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	sess.SetActiveUser(ctx, "u1")
	profiles := NewProfiles(store, sess)

	got, err := profiles.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Level != 1 || got.Theme != "system" {
		t.Errorf("unexpected default: %+v", got)
	}
	if store.Exists(ctx, "userProfile_u1") {
		t.Error("Load persisted the default profile")
	}
}

func TestProfileSaveValidation(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	sess.SetActiveUser(ctx, "u1")
	profiles := NewProfiles(store, sess)

	if err := profiles.Save(ctx, Profile{Username: "  "}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank username, got %v", err)
	}
}

func TestProfilePerUserIsolation(t *testing.T) {
	store, sess := setupKV(t)
	ctx := context.Background()
	profiles := NewProfiles(store, sess)

	sess.SetActiveUser(ctx, "u1")
	profiles.Save(ctx, Profile{Username: "ada"})

	sess.SetActiveUser(ctx, "u2")
	got, err := profiles.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Username == "ada" {
		t.Error("u2 sees u1's profile")
	}
}
