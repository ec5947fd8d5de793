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

func main() {
	dryRun := flag.Bool("dry-run", false, "report problems without writing")
	gameID := flag.String("game", "", "repair a single game id")
	flag.Parse()

	cfg := config.Load()

	db, err := database.Connect(cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	games := store.NewGameStore(db)
	ctx := context.Background()

	ids := []string{*gameID}
	if *gameID == "" {
		ids, err = games.GameIDs(ctx)
		if err != nil {
			log.Fatalf("Failed to list games: %v", err)
		}
	}
	log.Printf("Checking %d games (dry run: %v)...", len(ids), *dryRun)

	changed := 0
	for _, id := range ids {
		report, err := games.RepairGame(ctx, id, *dryRun)
		if err != nil {
			log.Printf("Game %s: %v", id, err)
			continue
		}
		if !report.Changed() {
			continue
		}
		changed++
		log.Printf("Game %s: dm seat added=%v dm promoted=%v seats demoted=%d capacity raised=%v tokens dropped=%d obstacles dropped=%d fog dropped=%d",
			id, report.AddedDMSeat, report.PromotedDM, report.DemotedSeats, report.RaisedMaxPlayers,
			report.DroppedTokens, report.DroppedObstacles, report.DroppedFog)
	}

	if *dryRun {
		log.Printf("%d games need repair.", changed)
		return
	}
	log.Printf("%d games repaired.", changed)
}
