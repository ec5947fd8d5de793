package database

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/model"
)

func TestConnectSQLiteMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tabletop.db")
	db, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if err := Ping(db); err != nil {
		t.Fatalf("ping: %v", err)
	}

	for _, table := range []any{&model.User{}, &model.Game{}, &model.Player{}, &model.Message{}, &model.Action{}} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table for %T", table)
		}
	}
	if !db.Migrator().HasIndex(&model.Player{}, "idx_game_players_game_user") {
		t.Error("missing unique membership index")
	}
}

func TestCloseNil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
