package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/database"
	"tabletop-backend/internal/store"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() { _ = database.Close(db) }()

	start := time.Now()
	if err := database.Ping(db); err != nil {
		log.Fatal("Database ping failed:", err)
	}
	fmt.Printf("✅ Connected to %s database (%s)\n", cfg.Database.Driver, time.Since(start))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := store.NewGameStore(db).Stats(ctx)
	if err != nil {
		log.Fatal("Failed to collect statistics:", err)
	}

	fmt.Println("📈 Row counts:")
	fmt.Printf("  - Users:         %d\n", stats.Users)
	fmt.Printf("  - Games:         %d\n", stats.Games)
	fmt.Printf("  - Active games:  %d\n", stats.ActiveGames)
	fmt.Printf("  - Deleted games: %d\n", stats.DeletedGames)
	fmt.Printf("  - Seats:         %d\n", stats.Players)
	fmt.Printf("  - Messages:      %d\n", stats.Messages)
	fmt.Printf("  - Actions:       %d\n", stats.Actions)
}
