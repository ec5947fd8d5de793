package constants

// Input limits
const (
	MaxUsernameLength    = 100
	MaxGameNameLength    = 100
	MaxDescriptionLength = 1000
	MaxMessageLength     = 2000
	MaxActionTypeLength  = 64
	MaxActionDataBytes   = 16 * 1024
	MaxTokenNameLength   = 100
	MaxBoardEntries      = 2000 // tokens or obstacles per game
	MaxFileNameLength    = 255
)

// WebSocket configuration
const (
	WSReadBufferSize  = 4096
	WSWriteBufferSize = 16 * 1024
	WSWriteTimeout    = 5000 // milliseconds
)

// DefaultAvatarURL avatar for users who did not pick one; %s is the username
const DefaultAvatarURL = "https://api.dicebear.com/7.x/adventurer/svg?seed=%s"
