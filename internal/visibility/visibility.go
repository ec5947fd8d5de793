// Package visibility derives what a viewer may see of a game.
//
// A fogged cell hides every token whose position is that cell from anyone
// but the game's DM. Obstacles, the fog set itself and every other field
// stay visible.
package visibility

import (
	"strconv"

	"tabletop-backend/internal/model"
)

// Mode where fog is enforced
type Mode string

const (
	// ModeClient returns raw board state; clients hide fogged tokens themselves.
	ModeClient Mode = "client"
	// ModeServer strips fogged tokens before they leave the server.
	ModeServer Mode = "server"
)

// CellKey formats a fog cell key.
func CellKey(x, y int) string {
	return strconv.Itoa(x) + "," + strconv.Itoa(y)
}

// IsDM reports whether viewerID owns the game.
func IsDM(game *model.Game, viewerID string) bool {
	return game != nil && viewerID != "" && game.DMID == viewerID
}

func fogSet(fog []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fog))
	for _, key := range fog {
		set[key] = struct{}{}
	}
	return set
}

// Hidden reports whether token sits on a fogged cell.
func Hidden(token model.Token, fog map[string]struct{}) bool {
	_, ok := fog[CellKey(token.X, token.Y)]
	return ok
}

// VisibleTokens returns the tokens viewerID may see, in their stored order.
func VisibleTokens(game *model.Game, viewerID string) []model.Token {
	if IsDM(game, viewerID) || len(game.Fog) == 0 {
		return append([]model.Token{}, game.Tokens...)
	}
	fog := fogSet(game.Fog)
	visible := make([]model.Token, 0, len(game.Tokens))
	for _, t := range game.Tokens {
		if !Hidden(t, fog) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Project returns a copy of game as viewerID sees it. The input is not modified.
func Project(game *model.Game, viewerID string) *model.Game {
	if game == nil {
		return nil
	}
	view := *game
	view.Tokens = VisibleTokens(game, viewerID)
	return &view
}

// Filter applies the configured Mode at read and write boundaries.
type Filter struct {
	mode Mode
}

// NewFilter returns a Filter; unknown modes fall back to ModeClient.
func NewFilter(mode Mode) *Filter {
	if mode != ModeServer {
		mode = ModeClient
	}
	return &Filter{mode: mode}
}

// Mode returns the active mode.
func (f *Filter) Mode() Mode {
	return f.mode
}

// Apply projects game for viewerID when fog is enforced by the server.
func (f *Filter) Apply(game *model.Game, viewerID string) *model.Game {
	if f.mode != ModeServer {
		return game
	}
	return Project(game, viewerID)
}

// ApplyAll projects every game in games.
func (f *Filter) ApplyAll(games []model.Game, viewerID string) []model.Game {
	if f.mode != ModeServer {
		return games
	}
	out := make([]model.Game, len(games))
	for i := range games {
		out[i] = *Project(&games[i], viewerID)
	}
	return out
}

// MergeTokenWrite returns the list to store when viewerID submits tokens.
// In ModeServer a non-DM never saw the tokens under fog, so those are kept
// unless the submission carries a token with the same id.
func (f *Filter) MergeTokenWrite(current *model.Game, viewerID string, submitted []model.Token) []model.Token {
	if f.mode != ModeServer || IsDM(current, viewerID) || len(current.Fog) == 0 {
		return submitted
	}

	seen := make(map[string]struct{}, len(submitted))
	for _, t := range submitted {
		seen[t.ID] = struct{}{}
	}

	fog := fogSet(current.Fog)
	merged := append([]model.Token{}, submitted...)
	for _, t := range current.Tokens {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		if Hidden(t, fog) {
			merged = append(merged, t)
		}
	}
	return merged
}
