package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/database"
	"tabletop-backend/internal/store"
)

// Clears a user's role so the role picker is shown again on next login.
func main() {
	username := flag.String("username", "", "user whose role is cleared")
	flag.Parse()
	if *username == "" {
		log.Fatal("-username is required")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	user, err := store.NewUserStore(db).ResetUserRole(context.Background(), *username)
	if err != nil {
		log.Fatalf("Failed to reset role: %v", err)
	}
	log.Printf("Role cleared for %s (%s).", user.Username, user.ID)
}
