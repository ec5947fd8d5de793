package store

import (
	"context"
	"errors"
	"testing"

	"tabletop-backend/internal/model"
)

func TestUserStore(t *testing.T) {
	s := NewUserStore(newTestDB(t))
	ctx := context.Background()

	user := &model.User{Username: "alice", PasswordHash: "hash", Email: "alice@example.com"}
	if err := s.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == "" || user.Provider != model.ProviderLocal {
		t.Fatalf("defaults not applied: %+v", user)
	}

	if err := s.Create(ctx, &model.User{Username: "alice"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate err = %v, want ErrUsernameTaken", err)
	}
	if err := s.Create(ctx, &model.User{Username: "Alice"}); err != nil {
		t.Fatalf("usernames compare exactly, got %v", err)
	}

	byName, err := s.FindByUsername(ctx, "alice")
	if err != nil || byName.ID != user.ID {
		t.Fatalf("find by username = %+v, %v", byName, err)
	}
	if byName.Role != nil {
		t.Fatalf("role = %v, want nil", *byName.Role)
	}

	if _, err := s.FindUnlinkedByEmail(ctx, model.ProviderGoogle, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("local account matched a google email lookup: %v", err)
	}

	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	dm := model.RoleDM
	updated, err := s.SetRole(ctx, user.ID, &dm)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if updated.RoleString() != "dm" {
		t.Fatalf("role = %q", updated.RoleString())
	}

	cleared, err := s.SetRole(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("clear role: %v", err)
	}
	if cleared.Role != nil {
		t.Fatal("role should be cleared")
	}

	if _, err := s.SetRole(ctx, "missing", &dm); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := s.LinkGoogle(ctx, user.ID, "google-sub", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("linking a local account err = %v, want ErrNotFound", err)
	}

	legacy := &model.User{Username: "gina", Email: "gina@example.com", Provider: model.ProviderGoogle}
	if err := s.Create(ctx, legacy); err != nil {
		t.Fatalf("create google user: %v", err)
	}
	unlinked, err := s.FindUnlinkedByEmail(ctx, model.ProviderGoogle, "gina@example.com")
	if err != nil || unlinked.ID != legacy.ID {
		t.Fatalf("find unlinked = %+v, %v", unlinked, err)
	}
	if err := s.LinkGoogle(ctx, legacy.ID, "google-sub", "https://example.com/a.png"); err != nil {
		t.Fatalf("link: %v", err)
	}
	linked, err := s.FindByProviderID(ctx, model.ProviderGoogle, "google-sub")
	if err != nil || linked.ID != legacy.ID || linked.Avatar != "https://example.com/a.png" {
		t.Fatalf("linked = %+v, %v", linked, err)
	}
	if err := s.LinkGoogle(ctx, legacy.ID, "other-sub", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("relinking err = %v, want ErrNotFound", err)
	}

	exists, err := s.UsernameExists(ctx, "alice")
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}
}

func TestResetUserRole(t *testing.T) {
	s := NewUserStore(newTestDB(t))
	ctx := context.Background()

	user := &model.User{Username: "dana", PasswordHash: "hash"}
	if err := s.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	dm := model.RoleDM
	if _, err := s.SetRole(ctx, user.ID, &dm); err != nil {
		t.Fatalf("set role: %v", err)
	}

	reset, err := s.ResetUserRole(ctx, "dana")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Role != nil {
		t.Fatalf("role = %v, want nil", *reset.Role)
	}

	if _, err := s.ResetUserRole(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user err = %v, want ErrNotFound", err)
	}
}
