package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tabletop-backend/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyMember = errors.New("already a member")
	ErrGameFull      = errors.New("game is full")
	ErrUsernameTaken = errors.New("username already exists")
)

// GameStore durable storage for games, seats, messages and actions
type GameStore struct {
	db *gorm.DB
}

// NewGameStore GameStore constructor
func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

func preloadPlayers(db *gorm.DB) *gorm.DB {
	return db.Order("game_players.seq ASC")
}

// Create inserts a game together with its initial seats.
func (s *GameStore) Create(ctx context.Context, game *model.Game) error {
	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	if game.Status == "" {
		game.Status = model.GameStatusWaiting
	}
	game.Normalize()

	if err := s.db.WithContext(ctx).Create(game).Error; err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// Get loads a game with its seats in join order. Deleted games are returned too.
func (s *GameStore) Get(ctx context.Context, id string) (*model.Game, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *GameStore) get(db *gorm.DB, id string) (*model.Game, error) {
	var game model.Game
	err := db.Preload("Players", preloadPlayers).First(&game, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	game.Normalize()
	return &game, nil
}

// List returns every game that is not deleted, newest first.
func (s *GameStore) List(ctx context.Context) ([]model.Game, error) {
	var games []model.Game
	err := s.db.WithContext(ctx).
		Preload("Players", preloadPlayers).
		Where("status <> ?", model.GameStatusDeleted).
		Order("created_at DESC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	for i := range games {
		games[i].Normalize()
	}
	return games, nil
}

// ReplaceTokens overwrites the whole token list.
func (s *GameStore) ReplaceTokens(ctx context.Context, id string, tokens []model.Token) error {
	if tokens == nil {
		tokens = []model.Token{}
	}
	return s.replaceField(ctx, id, "tokens", &model.Game{Tokens: tokens})
}

// ReplaceObstacles overwrites the whole obstacle list.
func (s *GameStore) ReplaceObstacles(ctx context.Context, id string, obstacles []model.Obstacle) error {
	if obstacles == nil {
		obstacles = []model.Obstacle{}
	}
	return s.replaceField(ctx, id, "obstacles", &model.Game{Obstacles: obstacles})
}

// ReplaceFog overwrites the whole fog set.
func (s *GameStore) ReplaceFog(ctx context.Context, id string, fog []string) error {
	if fog == nil {
		fog = []string{}
	}
	return s.replaceField(ctx, id, "fog", &model.Game{Fog: fog})
}

// ReplaceShareScreen sets or clears (nil) the shared image.
func (s *GameStore) ReplaceShareScreen(ctx context.Context, id string, share *model.ShareScreen) error {
	return s.replaceField(ctx, id, "share_screen", &model.Game{ShareScreen: share})
}

// replaceField is the only write path for board state: the column is
// overwritten as a whole and the last committed writer wins.
func (s *GameStore) replaceField(ctx context.Context, id, column string, values *model.Game) error {
	values.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).
		Model(&model.Game{}).
		Where("id = ? AND status <> ?", id, model.GameStatusDeleted).
		Select(column, "updated_at").
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("replace %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus changes the lifecycle status.
func (s *GameStore) SetStatus(ctx context.Context, id string, status model.GameStatus) error {
	result := s.db.WithContext(ctx).
		Model(&model.Game{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("set status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddPlayer seats a player. The capacity check and the insert run in one
// transaction holding the game row, so concurrent joins cannot overfill it.
// ErrAlreadyMember is returned together with the current game.
func (s *GameStore) AddPlayer(ctx context.Context, gameID string, player model.Player) (*model.Game, error) {
	var (
		game   *model.Game
		retErr error
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var locked model.Game
		if err := q.Select("id", "max_players", "status").First(&locked, "id = ?", gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if locked.Status == model.GameStatusDeleted {
			return ErrNotFound
		}

		var existing int64
		if err := tx.Model(&model.Player{}).
			Where("game_id = ? AND user_id = ?", gameID, player.UserID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			retErr = ErrAlreadyMember
		} else {
			var seated int64
			if err := tx.Model(&model.Player{}).Where("game_id = ?", gameID).Count(&seated).Error; err != nil {
				return err
			}
			if seated >= int64(locked.MaxPlayers) {
				return ErrGameFull
			}

			player.Seq = 0
			player.GameID = gameID
			if err := tx.Create(&player).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyMember
				}
				return err
			}
			if err := tx.Model(&model.Game{}).Where("id = ?", gameID).
				Update("updated_at", time.Now()).Error; err != nil {
				return err
			}
		}

		g, err := s.get(tx, gameID)
		if err != nil {
			return err
		}
		game = g
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrGameFull) || errors.Is(err, ErrAlreadyMember) {
			return nil, err
		}
		return nil, fmt.Errorf("add player: %w", err)
	}
	return game, retErr
}

// RemovePlayer frees the seat of userID. Removing an absent player is a no-op.
func (s *GameStore) RemovePlayer(ctx context.Context, gameID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Game{}).Where("id = ?", gameID).Update("updated_at", time.Now())
		if result.Error != nil {
			return fmt.Errorf("remove player: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("game_id = ? AND user_id = ?", gameID, userID).
			Delete(&model.Player{}).Error; err != nil {
			return fmt.Errorf("remove player: %w", err)
		}
		return nil
	})
}

// AppendMessage inserts a chat message.
func (s *GameStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// AppendAction inserts an action log entry.
func (s *GameStore) AppendAction(ctx context.Context, action *model.Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if len(action.Data) == 0 {
		action.Data = []byte("{}")
	}
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit messages, oldest first.
func (s *GameStore) RecentMessages(ctx context.Context, gameID string, limit int) ([]model.Message, error) {
	return recentMessages(s.db.WithContext(ctx), gameID, limit)
}

func recentMessages(db *gorm.DB, gameID string, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	if err := db.Where("game_id = ?", gameID).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// RecentActions returns the newest limit actions, newest first.
func (s *GameStore) RecentActions(ctx context.Context, gameID string, limit int) ([]model.Action, error) {
	return recentActions(s.db.WithContext(ctx), gameID, limit)
}

func recentActions(db *gorm.DB, gameID string, limit int) ([]model.Action, error) {
	actions := []model.Action{}
	if err := db.Where("game_id = ?", gameID).
		Order("seq DESC").
		Limit(limit).
		Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	return actions, nil
}

// Snapshot combined read served to pollers
type Snapshot struct {
	Game     *model.Game
	Messages []model.Message
	Actions  []model.Action
}

// Snapshot reads a game and its recent logs inside one read transaction.
// On PostgreSQL the transaction is REPEATABLE READ, so the three reads
// see the same point in time.
func (s *GameStore) Snapshot(ctx context.Context, gameID string, messageLimit, actionLimit int) (*Snapshot, error) {
	var opts *sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	snap := &Snapshot{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := s.get(tx, gameID)
		if err != nil {
			return err
		}
		snap.Game = game

		if snap.Messages, err = recentMessages(tx, gameID, messageLimit); err != nil {
			return err
		}
		if snap.Actions, err = recentActions(tx, gameID, actionLimit); err != nil {
			return err
		}
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
