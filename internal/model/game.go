package model

import (
	"time"
)

// Game shared session document
type Game struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string       `gorm:"type:varchar(100);not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	MaxPlayers  int          `gorm:"not null;default:6" json:"maxPlayers"`
	GridSize    int          `gorm:"not null;default:20" json:"gridSize"`
	DMID        string       `gorm:"type:varchar(36);not null;index" json:"dmId"`
	DMUsername  string       `gorm:"type:varchar(100)" json:"dmUsername"`
	Status      GameStatus   `gorm:"type:varchar(20);not null;default:'waiting';index" json:"status"`
	Players     []Player     `gorm:"foreignKey:GameID;references:ID;constraint:OnDelete:CASCADE" json:"players"`
	Tokens      []Token      `gorm:"serializer:json;type:text" json:"tokens"`
	Obstacles   []Obstacle   `gorm:"serializer:json;type:text" json:"obstacles"`
	Fog         []string     `gorm:"serializer:json;type:text" json:"fog"`
	ShareScreen *ShareScreen `gorm:"serializer:json;type:text" json:"shareScreen"`
	CreatedAt   time.Time    `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Game) TableName() string {
	return "games"
}

// Normalize replaces nil collections with empty ones so they encode as [].
func (g *Game) Normalize() {
	if g.Players == nil {
		g.Players = []Player{}
	}
	if g.Tokens == nil {
		g.Tokens = []Token{}
	}
	if g.Obstacles == nil {
		g.Obstacles = []Obstacle{}
	}
	if g.Fog == nil {
		g.Fog = []string{}
	}
}

// FindPlayer returns the seat held by userID.
func (g *Game) FindPlayer(userID string) (Player, bool) {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

// IsMember reports whether userID holds a seat.
func (g *Game) IsMember(userID string) bool {
	_, ok := g.FindPlayer(userID)
	return ok
}

// IsFull reports whether no seat is left.
func (g *Game) IsFull() bool {
	return len(g.Players) >= g.MaxPlayers
}

// Player seat in a game
type Player struct {
	Seq      int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	GameID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_game_players_game_user" json:"-"`
	UserID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_game_players_game_user" json:"id"`
	Username string    `gorm:"type:varchar(100);not null" json:"username"`
	Role     Role      `gorm:"type:varchar(10);not null" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (Player) TableName() string {
	return "game_players"
}

// Token piece on the board
type Token struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Size  int    `json:"size"`
}

// Obstacle blocked cell
type Obstacle struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

// ShareScreen image the DM broadcasts to players
type ShareScreen struct {
	ImageURL string   `json:"imageUrl"`
	Pointer  *Pointer `json:"pointer"`
}

// Pointer position on the shared image, in percent of its size
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
