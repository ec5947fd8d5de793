package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tabletop-backend/internal/config"
	"tabletop-backend/internal/dice"
	"tabletop-backend/internal/model"
	"tabletop-backend/internal/presence"
	"tabletop-backend/internal/storage"
	"tabletop-backend/internal/store"
	"tabletop-backend/internal/visibility"
)

// Caller authenticated identity taken from the bearer token
type Caller struct {
	UserID   string
	Username string
	Role     string
}

// SyncSnapshot everything a polling client needs in one response
type SyncSnapshot struct {
	Game      *model.Game     `json:"game"`
	Messages  []model.Message `json:"messages"`
	Actions   []model.Action  `json:"actions"`
	Timestamp time.Time       `json:"timestamp"`
	Online    []string        `json:"online"`
}

// ShareUploader presigns share-screen image uploads.
type ShareUploader interface {
	GenerateUploadURL(ctx context.Context, gameID, fileName, contentType string) (*storage.PresignedUpload, error)
}

// GameService validates, authorizes and applies every game operation.
// Board fields are replaced whole; concurrent writers race and the last
// commit wins.
type GameService struct {
	games    *store.GameStore
	users    *store.UserStore
	filter   *visibility.Filter
	roller   *dice.Roller
	presence presence.Tracker
	uploader ShareUploader
	rules    config.GameConfig
	limits   config.SyncConfig
	log      *zap.Logger
	tracer   trace.Tracer
}

// GameServiceDeps collaborators of GameService. Presence and Uploader are optional.
type GameServiceDeps struct {
	Games    *store.GameStore
	Users    *store.UserStore
	Filter   *visibility.Filter
	Roller   *dice.Roller
	Presence presence.Tracker
	Uploader ShareUploader
	Rules    config.GameConfig
	Limits   config.SyncConfig
	Log      *zap.Logger
}

// NewGameService GameService constructor
func NewGameService(deps GameServiceDeps) *GameService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	filter := deps.Filter
	if filter == nil {
		filter = visibility.NewFilter(visibility.Mode(deps.Rules.FogEnforcement))
	}
	return &GameService{
		games:    deps.Games,
		users:    deps.Users,
		filter:   filter,
		roller:   deps.Roller,
		presence: deps.Presence,
		uploader: deps.Uploader,
		rules:    deps.Rules,
		limits:   deps.Limits,
		log:      log.Named("game"),
		tracer:   otel.Tracer("tabletop-backend/internal/service"),
	}
}

func (s *GameService) start(ctx context.Context, op, gameID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "game."+op, trace.WithAttributes(attribute.String("game.id", gameID)))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errGameNotFound
	case errors.Is(err, store.ErrGameFull):
		return newError(ErrGameFull, "Game is full")
	}
	return err
}

// load returns a game for reading; deleted games are still readable.
func (s *GameService) load(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return game, nil
}

// loadForWrite returns a live game the caller holds a seat in.
func (s *GameService) loadForWrite(ctx context.Context, gameID string, caller Caller) (*model.Game, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status == model.GameStatusDeleted {
		return nil, errGameNotFound
	}
	if !game.IsMember(caller.UserID) {
		return nil, errNotMember
	}
	return game, nil
}

func (s *GameService) loadForDM(ctx context.Context, gameID string, caller Caller) (*model.Game, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status == model.GameStatusDeleted {
		return nil, errGameNotFound
	}
	if game.DMID != caller.UserID {
		return nil, errNotDM
	}
	return game, nil
}

func (s *GameService) appendAction(ctx context.Context, gameID string, caller Caller, actionType string, data any) (*model.Action, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	action := &model.Action{
		GameID:   gameID,
		UserID:   caller.UserID,
		Username: caller.Username,
		Type:     actionType,
		Data:     raw,
	}
	if err := s.games.AppendAction(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// CreateGame creates a game owned and seated by caller, who must hold the dm role.
func (s *GameService) CreateGame(ctx context.Context, caller Caller, in CreateGameInput) (game *model.Game, err error) {
	ctx, span := s.start(ctx, "Create", "")
	defer func() { finish(span, err) }()

	in, err = s.validateCreate(in)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleDM.String() {
		return nil, errDMRole
	}

	game = &model.Game{
		Name:        in.Name,
		Description: in.Description,
		MaxPlayers:  in.MaxPlayers,
		GridSize:    in.GridSize,
		DMID:        caller.UserID,
		DMUsername:  caller.Username,
		Status:      model.GameStatusWaiting,
		Players: []model.Player{
			{UserID: caller.UserID, Username: caller.Username, Role: model.RoleDM},
		},
	}
	if err := s.games.Create(ctx, game); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("game.id", game.ID))

	s.log.Info("game created",
		zap.String("game_id", game.ID),
		zap.String("dm_id", caller.UserID),
		zap.Int("max_players", game.MaxPlayers),
		zap.Int("grid_size", game.GridSize),
	)
	return game, nil
}

// ListGames returns every game not deleted, newest first.
func (s *GameService) ListGames(ctx context.Context, caller Caller) (games []model.Game, err error) {
	ctx, span := s.start(ctx, "List", "")
	defer func() { finish(span, err) }()

	games, err = s.games.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.filter.ApplyAll(games, caller.UserID), nil
}

// GetGame returns the game as caller may see it.
func (s *GameService) GetGame(ctx context.Context, caller Caller, gameID string) (game *model.Game, err error) {
	ctx, span := s.start(ctx, "Get", gameID)
	defer func() { finish(span, err) }()

	game, err = s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.filter.Apply(game, caller.UserID), nil
}

// Join seats caller as a player. Joining twice returns the game unchanged.
func (s *GameService) Join(ctx context.Context, caller Caller, gameID string) (game *model.Game, err error) {
	ctx, span := s.start(ctx, "Join", gameID)
	defer func() { finish(span, err) }()

	game, err = s.games.AddPlayer(ctx, gameID, model.Player{
		UserID:   caller.UserID,
		Username: caller.Username,
		Role:     model.RolePlayer,
	})
	if errors.Is(err, store.ErrAlreadyMember) {
		return s.filter.Apply(game, caller.UserID), nil
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if _, err := s.appendAction(ctx, gameID, caller, model.ActionGameJoined, struct{}{}); err != nil {
		return nil, err
	}
	s.log.Info("player joined", zap.String("game_id", gameID), zap.String("user_id", caller.UserID))
	return s.filter.Apply(game, caller.UserID), nil
}

// Leave frees caller's seat. Leaving without a seat still succeeds. A DM
// who leaves is not replaced.
func (s *GameService) Leave(ctx context.Context, caller Caller, gameID string) (err error) {
	ctx, span := s.start(ctx, "Leave", gameID)
	defer func() { finish(span, err) }()

	game, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Status == model.GameStatusDeleted {
		return errGameNotFound
	}
	if err := s.games.RemovePlayer(ctx, gameID, caller.UserID); err != nil {
		return mapStoreErr(err)
	}
	if _, err := s.appendAction(ctx, gameID, caller, model.ActionGameLeft, struct{}{}); err != nil {
		return err
	}
	s.log.Info("player left", zap.String("game_id", gameID), zap.String("user_id", caller.UserID))
	return nil
}

// UpdateTokens replaces the token list.
func (s *GameService) UpdateTokens(ctx context.Context, caller Caller, gameID string, tokens []model.Token) (err error) {
	ctx, span := s.start(ctx, "UpdateTokens", gameID)
	defer func() { finish(span, err) }()

	game, err := s.loadForWrite(ctx, gameID, caller)
	if err != nil {
		return err
	}
	tokens, err = validateTokens(tokens, game.GridSize)
	if err != nil {
		return err
	}
	tokens = s.filter.MergeTokenWrite(game, caller.UserID, tokens)
	return mapStoreErr(s.games.ReplaceTokens(ctx, gameID, tokens))
}

// UpdateObstacles replaces the obstacle list.
func (s *GameService) UpdateObstacles(ctx context.Context, caller Caller, gameID string, obstacles []model.Obstacle) (err error) {
	ctx, span := s.start(ctx, "UpdateObstacles", gameID)
	defer func() { finish(span, err) }()

	game, err := s.loadForWrite(ctx, gameID, caller)
	if err != nil {
		return err
	}
	obstacles, err = validateObstacles(obstacles, game.GridSize)
	if err != nil {
		return err
	}
	return mapStoreErr(s.games.ReplaceObstacles(ctx, gameID, obstacles))
}

// UpdateFog replaces the fog set.
func (s *GameService) UpdateFog(ctx context.Context, caller Caller, gameID string, fog []string) (err error) {
	ctx, span := s.start(ctx, "UpdateFog", gameID)
	defer func() { finish(span, err) }()

	game, err := s.loadForWrite(ctx, gameID, caller)
	if err != nil {
		return err
	}
	fog, err = validateFog(fog, game.GridSize)
	if err != nil {
		return err
	}
	return mapStoreErr(s.games.ReplaceFog(ctx, gameID, fog))
}

// UpdateShareScreen sets or clears (nil) the shared image.
func (s *GameService) UpdateShareScreen(ctx context.Context, caller Caller, gameID string, share *model.ShareScreen) (err error) {
	ctx, span := s.start(ctx, "UpdateShareScreen", gameID)
	defer func() { finish(span, err) }()

	if _, err := s.loadForWrite(ctx, gameID, caller); err != nil {
		return err
	}
	if err := validateShareScreen(share); err != nil {
		return err
	}
	return mapStoreErr(s.games.ReplaceShareScreen(ctx, gameID, share))
}

// RequestShareUpload presigns an image upload for the share screen.
func (s *GameService) RequestShareUpload(ctx context.Context, caller Caller, gameID, fileName, contentType string) (up *storage.PresignedUpload, err error) {
	ctx, span := s.start(ctx, "RequestShareUpload", gameID)
	defer func() { finish(span, err) }()

	if s.uploader == nil {
		return nil, newError(ErrUnavailable, "Image uploads are not configured")
	}
	if _, err := s.loadForWrite(ctx, gameID, caller); err != nil {
		return nil, err
	}
	if err := validateUpload(fileName, contentType); err != nil {
		return nil, err
	}
	return s.uploader.GenerateUploadURL(ctx, gameID, fileName, contentType)
}

// RollDice rolls for caller and records the result as a diceRolled action.
func (s *GameService) RollDice(ctx context.Context, caller Caller, gameID string, in RollInput) (roll *model.DiceRoll, err error) {
	ctx, span := s.start(ctx, "RollDice", gameID)
	defer func() { finish(span, err) }()

	spec, err := s.validateRoll(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForWrite(ctx, gameID, caller); err != nil {
		return nil, err
	}

	result, err := s.roller.Roll(spec)
	if err != nil {
		return nil, invalid("diceType", err.Error())
	}

	diceType := "d" + strconv.Itoa(spec.Sides)
	action, err := s.appendAction(ctx, gameID, caller, model.ActionDiceRolled, map[string]any{
		"diceType": diceType,
		"count":    spec.Count,
		"modifier": spec.Modifier,
		"rolls":    result.Rolls,
		"total":    result.Total,
	})
	if err != nil {
		return nil, err
	}

	return &model.DiceRoll{
		ID:        action.ID,
		GameID:    gameID,
		UserID:    caller.UserID,
		Username:  caller.Username,
		DiceType:  diceType,
		Count:     spec.Count,
		Modifier:  spec.Modifier,
		Rolls:     result.Rolls,
		Total:     result.Total,
		CreatedAt: action.CreatedAt,
	}, nil
}

// PostMessage appends a chat message carrying the sender's current name and avatar.
func (s *GameService) PostMessage(ctx context.Context, caller Caller, gameID, content string) (msg *model.Message, err error) {
	ctx, span := s.start(ctx, "PostMessage", gameID)
	defer func() { finish(span, err) }()

	content, err = validateMessage(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForWrite(ctx, gameID, caller); err != nil {
		return nil, err
	}

	username, avatar := caller.Username, ""
	if s.users != nil {
		user, err := s.users.FindByID(ctx, caller.UserID)
		switch {
		case err == nil:
			username, avatar = user.Username, user.Avatar
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	msg = &model.Message{
		GameID:   gameID,
		UserID:   caller.UserID,
		Username: username,
		Avatar:   avatar,
		Content:  content,
	}
	if err := s.games.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the newest messages, oldest first.
func (s *GameService) ListMessages(ctx context.Context, caller Caller, gameID string, limit int) (messages []model.Message, err error) {
	ctx, span := s.start(ctx, "ListMessages", gameID)
	defer func() { finish(span, err) }()

	if _, err := s.load(ctx, gameID); err != nil {
		return nil, err
	}
	return s.games.RecentMessages(ctx, gameID, s.clampLimit(limit))
}

// LogAction appends a client-reported board event.
func (s *GameService) LogAction(ctx context.Context, caller Caller, gameID, actionType string, data json.RawMessage) (action *model.Action, err error) {
	ctx, span := s.start(ctx, "LogAction", gameID)
	defer func() { finish(span, err) }()

	actionType, err = validateActionType(actionType)
	if err != nil {
		return nil, err
	}
	raw, err := normalizeActionData(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForWrite(ctx, gameID, caller); err != nil {
		return nil, err
	}

	action = &model.Action{
		GameID:   gameID,
		UserID:   caller.UserID,
		Username: caller.Username,
		Type:     actionType,
		Data:     raw,
	}
	if err := s.games.AppendAction(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// ListActions returns the newest actions, newest first.
func (s *GameService) ListActions(ctx context.Context, caller Caller, gameID string, limit int) (actions []model.Action, err error) {
	ctx, span := s.start(ctx, "ListActions", gameID)
	defer func() { finish(span, err) }()

	if _, err := s.load(ctx, gameID); err != nil {
		return nil, err
	}
	return s.games.RecentActions(ctx, gameID, s.clampLimit(limit))
}

// Sync returns the combined snapshot and marks caller as online.
func (s *GameService) Sync(ctx context.Context, caller Caller, gameID string) (snap *SyncSnapshot, err error) {
	ctx, span := s.start(ctx, "Sync", gameID)
	defer func() { finish(span, err) }()

	raw, err := s.games.Snapshot(ctx, gameID, s.limits.MessageLimit, s.limits.ActionLimit)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return &SyncSnapshot{
		Game:      s.filter.Apply(raw.Game, caller.UserID),
		Messages:  raw.Messages,
		Actions:   raw.Actions,
		Timestamp: time.Now().UTC(),
		Online:    s.touchPresence(ctx, gameID, caller.UserID),
	}, nil
}

// touchPresence never fails the sync; errors are logged.
func (s *GameService) touchPresence(ctx context.Context, gameID, userID string) []string {
	if s.presence == nil {
		return []string{}
	}
	if err := s.presence.Touch(ctx, gameID, userID); err != nil {
		s.log.Warn("presence touch failed", zap.String("game_id", gameID), zap.Error(err))
	}
	online, err := s.presence.Online(ctx, gameID)
	if err != nil {
		s.log.Warn("presence read failed", zap.String("game_id", gameID), zap.Error(err))
		return []string{}
	}
	return online
}

// SetStatus moves a game between waiting and active. DM only.
func (s *GameService) SetStatus(ctx context.Context, caller Caller, gameID, status string) (game *model.Game, err error) {
	ctx, span := s.start(ctx, "SetStatus", gameID)
	defer func() { finish(span, err) }()

	next := model.GameStatus(status)
	if next != model.GameStatusWaiting && next != model.GameStatusActive {
		return nil, invalid("status", "Status must be waiting or active")
	}
	if _, err := s.loadForDM(ctx, gameID, caller); err != nil {
		return nil, err
	}
	if err := s.games.SetStatus(ctx, gameID, next); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.GetGame(ctx, caller, gameID)
}

// DeleteGame hides a game from listings. DM only; rows are kept.
func (s *GameService) DeleteGame(ctx context.Context, caller Caller, gameID string) (err error) {
	ctx, span := s.start(ctx, "Delete", gameID)
	defer func() { finish(span, err) }()

	if _, err := s.loadForDM(ctx, gameID, caller); err != nil {
		return err
	}
	if err := s.games.SetStatus(ctx, gameID, model.GameStatusDeleted); err != nil {
		return mapStoreErr(err)
	}
	s.log.Info("game deleted", zap.String("game_id", gameID), zap.String("dm_id", caller.UserID))
	return nil
}

func (s *GameService) clampLimit(limit int) int {
	if limit <= 0 || limit > s.limits.ListLimit {
		return s.limits.ListLimit
	}
	return limit
}
