package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"tabletop-backend/internal/auth"
	"tabletop-backend/internal/database"
	"tabletop-backend/internal/model"
	"tabletop-backend/internal/store"
)

type fakeGoogle struct {
	info *auth.GoogleUserInfo
	err  error
}

func (f *fakeGoogle) VerifyIDToken(context.Context, string) (*auth.GoogleUserInfo, error) {
	return f.info, f.err
}

func newAuthService(t *testing.T, google auth.GoogleVerifier) (*AuthService, *auth.JWTManager) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	return NewAuthService(store.NewUserStore(db), jwt, google, nil), jwt
}

func TestRegister(t *testing.T) {
	svc, jwt := newAuthService(t, nil)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Username: " alice ", Password: "secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.User.Username != "alice" || sess.User.Role != nil || sess.User.Email != "" {
		t.Fatalf("user = %+v", sess.User)
	}
	if !strings.HasPrefix(sess.User.Avatar, "https://api.dicebear.com/7.x/adventurer/svg?seed=alice") {
		t.Fatalf("avatar = %q", sess.User.Avatar)
	}
	if sess.User.PasswordHash == "secret" {
		t.Fatal("password stored in clear")
	}

	claims, err := jwt.ValidateToken(sess.Token)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if claims.UserID != sess.User.ID || claims.Username != "alice" || claims.Role != "" {
		t.Fatalf("claims = %+v", claims)
	}

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing username", RegisterInput{Password: "x"}},
		{"missing password", RegisterInput{Username: "bob"}},
		{"blank password", RegisterInput{Username: "bob", Password: "   "}},
		{"taken", RegisterInput{Username: "alice", Password: "x"}},
		{"bad role", RegisterInput{Username: "bob", Password: "x", Role: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}

	dm, err := svc.Register(ctx, RegisterInput{Username: "dora", Password: "pw", Role: "dm", Email: "d@example.com"})
	if err != nil {
		t.Fatalf("register with role: %v", err)
	}
	if dm.User.RoleString() != "dm" || dm.User.Email != "d@example.com" {
		t.Fatalf("user = %+v", dm.User)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"missing fields", "", "", ErrValidation},
		{"wrong password", "alice", "nope", ErrUnauthorized},
		{"unknown user", "zed", "secret", ErrUnauthorized},
		{"case differs", "Alice", "secret", ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.username, tt.password); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMeAndSetRole(t *testing.T) {
	svc, jwt := newAuthService(t, nil)
	ctx := context.Background()
	sess, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	caller := Caller{UserID: sess.User.ID, Username: "alice"}

	me, err := svc.Me(ctx, caller)
	if err != nil || me.ID != sess.User.ID {
		t.Fatalf("me = %+v, %v", me, err)
	}
	if _, err := svc.Me(ctx, Caller{UserID: "gone"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("me gone err = %v", err)
	}

	if _, err := svc.SetRole(ctx, caller, "wizard"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad role err = %v", err)
	}
	for _, role := range []string{"player", "dm"} {
		updated, err := svc.SetRole(ctx, caller, role)
		if err != nil {
			t.Fatalf("set %s: %v", role, err)
		}
		if updated.User.RoleString() != role {
			t.Fatalf("role = %q, want %q", updated.User.RoleString(), role)
		}
		claims, err := jwt.ValidateToken(updated.Token)
		if err != nil || claims.Role != role {
			t.Fatalf("reissued claims = %+v, %v", claims, err)
		}
	}
}

func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc, _ := newAuthService(t, nil)
		if _, err := svc.GoogleLogin(ctx, "token"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		svc, _ := newAuthService(t, &fakeGoogle{err: auth.ErrInvalidGoogleToken})
		if _, err := svc.GoogleLogin(ctx, "token"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want unauthorized", err)
		}
	})

	t.Run("creates then reuses account", func(t *testing.T) {
		google := &fakeGoogle{info: &auth.GoogleUserInfo{ID: "g-1", Email: "alice@example.com", EmailVerified: true}}
		svc, _ := newAuthService(t, google)
		if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw"}); err != nil {
			t.Fatalf("register: %v", err)
		}

		first, err := svc.GoogleLogin(ctx, "token")
		if err != nil {
			t.Fatalf("first login: %v", err)
		}
		if first.User.Username == "alice" || !strings.HasPrefix(first.User.Username, "alice-") {
			t.Fatalf("username = %q, want a suffixed alice", first.User.Username)
		}
		if first.User.Provider != model.ProviderGoogle {
			t.Fatalf("provider = %q", first.User.Provider)
		}

		second, err := svc.GoogleLogin(ctx, "token")
		if err != nil {
			t.Fatalf("second login: %v", err)
		}
		if second.User.ID != first.User.ID {
			t.Fatalf("second login created a new account")
		}
	})

	t.Run("local account with the same email is not taken over", func(t *testing.T) {
		google := &fakeGoogle{info: &auth.GoogleUserInfo{ID: "g-victim", Email: "victim@example.com", EmailVerified: true}}
		svc, _ := newAuthService(t, google)

		squatter, err := svc.Register(ctx, RegisterInput{Username: "mallory", Password: "hunter2", Email: "victim@example.com"})
		if err != nil {
			t.Fatalf("register: %v", err)
		}

		victim, err := svc.GoogleLogin(ctx, "token")
		if err != nil {
			t.Fatalf("google login: %v", err)
		}
		if victim.User.ID == squatter.User.ID {
			t.Fatal("google login landed in the local account")
		}

		again, err := svc.Login(ctx, "mallory", "hunter2")
		if err != nil {
			t.Fatalf("local login: %v", err)
		}
		if again.User.ID != squatter.User.ID || again.User.Provider != model.ProviderLocal {
			t.Fatalf("local account changed: %+v", again.User)
		}
	})
}
