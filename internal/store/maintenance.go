package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"tabletop-backend/internal/model"
)

// Stats row counts for operators
type Stats struct {
	Users        int64
	Games        int64
	ActiveGames  int64
	DeletedGames int64
	Players      int64
	Messages     int64
	Actions      int64
}

// Stats counts rows per table.
func (s *GameStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&st.Users, db.Model(&model.User{})},
		{&st.Games, db.Model(&model.Game{})},
		{&st.ActiveGames, db.Model(&model.Game{}).Where("status = ?", model.GameStatusActive)},
		{&st.DeletedGames, db.Model(&model.Game{}).Where("status = ?", model.GameStatusDeleted)},
		{&st.Players, db.Model(&model.Player{})},
		{&st.Messages, db.Model(&model.Message{})},
		{&st.Actions, db.Model(&model.Action{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return Stats{}, fmt.Errorf("count: %w", err)
		}
	}
	return st, nil
}

// GameIDs lists the ids of every game that is not deleted.
func (s *GameStore) GameIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&model.Game{}).
		Where("status <> ?", model.GameStatusDeleted).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list game ids: %w", err)
	}
	return ids, nil
}

// RepairReport what RepairGame changed
type RepairReport struct {
	GameID           string
	AddedDMSeat      bool
	PromotedDM       bool
	DemotedSeats     int
	RaisedMaxPlayers bool
	DroppedTokens    int
	DroppedObstacles int
	DroppedFog       int
}

// Changed reports whether anything was rewritten.
func (r RepairReport) Changed() bool {
	return r.AddedDMSeat || r.PromotedDM || r.DemotedSeats > 0 || r.RaisedMaxPlayers ||
		r.DroppedTokens > 0 || r.DroppedObstacles > 0 || r.DroppedFog > 0
}

// RepairGame restores the game invariants for rows written by older
// versions or by hand: the DM holds a dm seat and is the only one, the seat
// count fits maxPlayers, and board entries lie on the grid.
// Seats are never removed; an overfull game gets its capacity raised.
func (s *GameStore) RepairGame(ctx context.Context, id string, dryRun bool) (RepairReport, error) {
	report := RepairReport{GameID: id}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := s.get(tx, id)
		if err != nil {
			return err
		}

		dmSeat, hasDM := game.FindPlayer(game.DMID)
		switch {
		case !hasDM && game.DMID != "":
			report.AddedDMSeat = true
			if !dryRun {
				seat := model.Player{GameID: id, UserID: game.DMID, Username: game.DMUsername, Role: model.RoleDM}
				if err := tx.Create(&seat).Error; err != nil {
					return err
				}
			}
		case hasDM && dmSeat.Role != model.RoleDM:
			report.PromotedDM = true
			if !dryRun {
				if err := tx.Model(&model.Player{}).Where("seq = ?", dmSeat.Seq).
					Update("role", model.RoleDM).Error; err != nil {
					return err
				}
			}
		}

		for _, p := range game.Players {
			if p.UserID != game.DMID && p.Role == model.RoleDM {
				report.DemotedSeats++
				if !dryRun {
					if err := tx.Model(&model.Player{}).Where("seq = ?", p.Seq).
						Update("role", model.RolePlayer).Error; err != nil {
						return err
					}
				}
			}
		}

		seats := len(game.Players)
		if report.AddedDMSeat {
			seats++
		}
		values := &model.Game{UpdatedAt: time.Now()}
		columns := []string{}
		if seats > game.MaxPlayers {
			report.RaisedMaxPlayers = true
			values.MaxPlayers = seats
			columns = append(columns, "max_players")
		}

		values.Tokens = make([]model.Token, 0, len(game.Tokens))
		for _, t := range game.Tokens {
			if onGrid(t.X, t.Y, game.GridSize) {
				values.Tokens = append(values.Tokens, t)
			}
		}
		if report.DroppedTokens = len(game.Tokens) - len(values.Tokens); report.DroppedTokens > 0 {
			columns = append(columns, "tokens")
		}

		values.Obstacles = make([]model.Obstacle, 0, len(game.Obstacles))
		for _, o := range game.Obstacles {
			if onGrid(o.X, o.Y, game.GridSize) {
				values.Obstacles = append(values.Obstacles, o)
			}
		}
		if report.DroppedObstacles = len(game.Obstacles) - len(values.Obstacles); report.DroppedObstacles > 0 {
			columns = append(columns, "obstacles")
		}

		values.Fog = make([]string, 0, len(game.Fog))
		for _, key := range game.Fog {
			if x, y, ok := parseCellKey(key); ok && onGrid(x, y, game.GridSize) {
				values.Fog = append(values.Fog, key)
			}
		}
		if report.DroppedFog = len(game.Fog) - len(values.Fog); report.DroppedFog > 0 {
			columns = append(columns, "fog")
		}

		if dryRun || len(columns) == 0 {
			return nil
		}
		return tx.Model(&model.Game{}).Where("id = ?", id).
			Select("updated_at", toAny(columns)...).
			Updates(values).Error
	})
	if err != nil {
		return report, fmt.Errorf("repair game %s: %w", id, err)
	}
	return report, nil
}

func toAny(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func onGrid(x, y, gridSize int) bool {
	return x >= 0 && y >= 0 && x < gridSize && y < gridSize
}

func parseCellKey(key string) (int, int, bool) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return 0, 0, false
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}
