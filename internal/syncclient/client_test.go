package syncclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/database"
	"tabletop-backend/internal/dice"
	"tabletop-backend/internal/model"
	"tabletop-backend/internal/presence"
	"tabletop-backend/internal/server"
)

func newAPI(t *testing.T) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "syncclient-test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("AUTH_RATE_LIMIT", "1000")
	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "client.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	srv, err := server.New(cfg, server.Deps{
		DB:       db,
		Presence: presence.NewMemoryTracker(cfg.Sync.PresenceTTL),
		Roller:   dice.NewSeededRoller(1),
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv.SetupMiddleware()
	srv.SetupRoutes()

	ts := httptest.NewServer(adaptor.FiberApp(srv.App()))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestClientRoundTrip(t *testing.T) {
	base := newAPI(t)
	ctx := context.Background()

	dm := NewClient(base, nil)
	dmSess, err := dm.Register(ctx, "alice", "secret", "dm")
	if err != nil {
		t.Fatalf("register dm: %v", err)
	}
	player := NewClient(base, nil)
	if _, err := player.Register(ctx, "bob", "secret", "player"); err != nil {
		t.Fatalf("register player: %v", err)
	}

	game, err := dm.CreateGame(ctx, "Crypt", 4, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if game.DMID != dmSess.User.ID {
		t.Fatalf("dm id = %q", game.DMID)
	}

	if _, err := player.CreateGame(ctx, "Nope", 4, 10); !isStatus(err, http.StatusForbidden) {
		t.Fatalf("player create err = %v", err)
	}
	if _, err := player.Join(ctx, game.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := player.UpdateTokens(ctx, game.ID, []model.Token{{ID: "hero", X: 1, Y: 1}}); err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if err := dm.UpdateFog(ctx, game.ID, []string{"1,1"}); err != nil {
		t.Fatalf("fog: %v", err)
	}
	if _, err := player.PostMessage(ctx, game.ID, "hello"); err != nil {
		t.Fatalf("message: %v", err)
	}
	roll, err := player.RollDice(ctx, game.ID, "d8", 3, -1)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if len(roll.Rolls) != 3 {
		t.Fatalf("roll = %+v", roll)
	}

	snap, err := player.Sync(ctx, game.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if snap.Game.ID != game.ID || len(snap.Messages) != 1 || len(snap.Actions) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Game.Tokens) != 1 {
		t.Fatalf("server returned %d tokens, want the raw list", len(snap.Game.Tokens))
	}

	if _, err := player.Sync(ctx, "missing"); !isStatus(err, http.StatusNotFound) {
		t.Fatalf("missing sync err = %v", err)
	}

	anon := NewClient(base, nil)
	if _, err := anon.Sync(ctx, game.ID); !isStatus(err, http.StatusUnauthorized) {
		t.Fatalf("anonymous sync err = %v", err)
	}
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func TestPollerAppliesFogForPlayers(t *testing.T) {
	base := newAPI(t)
	ctx := context.Background()

	dm := NewClient(base, nil)
	if _, err := dm.Register(ctx, "alice", "secret", "dm"); err != nil {
		t.Fatalf("register: %v", err)
	}
	player := NewClient(base, nil)
	bob, err := player.Register(ctx, "bob", "secret", "player")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	game, err := dm.CreateGame(ctx, "Crypt", 4, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := player.Join(ctx, game.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := dm.UpdateFog(ctx, game.ID, []string{"2,2"}); err != nil {
		t.Fatalf("fog: %v", err)
	}
	if err := dm.UpdateTokens(ctx, game.ID, []model.Token{{ID: "ghost", X: 2, Y: 2}, {ID: "hero", X: 0, Y: 0}}); err != nil {
		t.Fatalf("tokens: %v", err)
	}

	poller := NewPoller(player, game.ID, bob.User.ID, 20*time.Millisecond, nil)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		views []View
	)
	done := make(chan error, 1)
	go func() {
		done <- poller.Run(runCtx, func(v View) {
			mu.Lock()
			views = append(views, v)
			n := len(views)
			mu.Unlock()
			if n >= 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller never produced three views")
	}

	view := poller.View()
	if view.LastError != nil {
		t.Fatalf("last error = %v", view.LastError)
	}
	if len(view.Game.Tokens) != 1 || view.Game.Tokens[0].ID != "hero" {
		t.Fatalf("player view tokens = %+v", view.Game.Tokens)
	}
	if view.Polls < 3 {
		t.Fatalf("polls = %d", view.Polls)
	}
}

func TestPollerKeepsViewOnFailure(t *testing.T) {
	base := newAPI(t)
	ctx := context.Background()

	dm := NewClient(base, nil)
	sess, err := dm.Register(ctx, "alice", "secret", "dm")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	game, err := dm.CreateGame(ctx, "Crypt", 4, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	poller := NewPoller(dm, game.ID, sess.User.ID, time.Second, nil)
	first := poller.Poll(ctx)
	if first.Game == nil || first.LastError != nil {
		t.Fatalf("first poll = %+v", first)
	}

	dm.SetToken("expired")
	second := poller.Poll(ctx)
	if !isStatus(second.LastError, http.StatusUnauthorized) {
		t.Fatalf("second poll error = %v", second.LastError)
	}
	if second.Game == nil || second.Game.ID != game.ID {
		t.Fatal("failed poll dropped the previous game")
	}
}
