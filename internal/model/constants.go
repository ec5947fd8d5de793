package model

// Role user or seat role
type Role string

const (
	RoleDM     Role = "dm"
	RolePlayer Role = "player"
)

func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is a selectable role.
func (r Role) Valid() bool {
	return r == RoleDM || r == RolePlayer
}

// GameStatus game lifecycle state
type GameStatus string

const (
	GameStatusWaiting GameStatus = "waiting"
	GameStatusActive  GameStatus = "active"
	GameStatusDeleted GameStatus = "deleted"
)

func (s GameStatus) String() string {
	return string(s)
}

// Action types recorded by the server itself
const (
	ActionGameJoined = "gameJoined"
	ActionGameLeft   = "gameLeft"
	ActionDiceRolled = "diceRolled"
)

// AuthProvider how a user signed up
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)
