package syncclient

import (
	"time"

	"tabletop-backend/internal/model"
	"tabletop-backend/internal/visibility"
)

// View what a client renders for one game. A View is never modified after
// Reduce or Fail returns it.
type View struct {
	Game      *model.Game
	Messages  []model.Message
	Actions   []model.Action
	Online    []string
	SyncedAt  time.Time
	Polls     int
	LastError error
}

// IsDM reports whether the viewer runs the game.
func (v View) IsDM(viewerID string) bool {
	return v.Game != nil && visibility.IsDM(v.Game, viewerID)
}

// Reduce replaces prev wholesale with snap as viewerID may see it.
// Fogged tokens are dropped for non-DM viewers, which is a no-op when the
// server already enforces fog.
func Reduce(prev View, snap Snapshot, viewerID string) View {
	return View{
		Game:     visibility.Project(cloneGame(snap.Game), viewerID),
		Messages: append([]model.Message{}, snap.Messages...),
		Actions:  append([]model.Action{}, snap.Actions...),
		Online:   append([]string{}, snap.Online...),
		SyncedAt: snap.Timestamp,
		Polls:    prev.Polls + 1,
	}
}

// Fail keeps prev and records err; the next successful Reduce clears it.
func Fail(prev View, err error) View {
	next := prev
	next.Polls = prev.Polls + 1
	next.LastError = err
	return next
}

func cloneGame(g *model.Game) *model.Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = append([]model.Player{}, g.Players...)
	c.Tokens = append([]model.Token{}, g.Tokens...)
	c.Obstacles = append([]model.Obstacle{}, g.Obstacles...)
	c.Fog = append([]string{}, g.Fog...)
	if g.ShareScreen != nil {
		share := *g.ShareScreen
		if share.Pointer != nil {
			p := *share.Pointer
			share.Pointer = &p
		}
		c.ShareScreen = &share
	}
	return &c
}
