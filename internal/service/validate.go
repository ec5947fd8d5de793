package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"tabletop-backend/internal/constants"
	"tabletop-backend/internal/dice"
	"tabletop-backend/internal/model"
	"tabletop-backend/internal/visibility"
)

func checkCell(field, label string, x, y, gridSize int) error {
	if x < 0 || y < 0 || x >= gridSize || y >= gridSize {
		return invalid(field, fmt.Sprintf("%s position (%d,%d) is outside the %dx%d grid", label, x, y, gridSize, gridSize))
	}
	return nil
}

func validateTokens(tokens []model.Token, gridSize int) ([]model.Token, error) {
	if len(tokens) > constants.MaxBoardEntries {
		return nil, invalid("tokens", fmt.Sprintf("At most %d tokens are allowed", constants.MaxBoardEntries))
	}
	out := make([]model.Token, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t.ID == "" {
			return nil, invalid("tokens", "Every token needs an id")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, invalid("tokens", "Duplicate token id "+t.ID)
		}
		seen[t.ID] = struct{}{}
		if err := checkCell("tokens", "Token", t.X, t.Y, gridSize); err != nil {
			return nil, err
		}
		if t.Size < 0 {
			return nil, invalid("tokens", "Token size cannot be negative")
		}
		if t.Size == 0 {
			t.Size = 1
		}
		if utf8.RuneCountInString(t.Name) > constants.MaxTokenNameLength {
			return nil, invalid("tokens", "Token name is too long")
		}
		out = append(out, t)
	}
	return out, nil
}

func validateObstacles(obstacles []model.Obstacle, gridSize int) ([]model.Obstacle, error) {
	if len(obstacles) > constants.MaxBoardEntries {
		return nil, invalid("obstacles", fmt.Sprintf("At most %d obstacles are allowed", constants.MaxBoardEntries))
	}
	out := make([]model.Obstacle, 0, len(obstacles))
	seen := make(map[string]struct{}, len(obstacles))
	for _, o := range obstacles {
		if o.ID == "" {
			return nil, invalid("obstacles", "Every obstacle needs an id")
		}
		if _, dup := seen[o.ID]; dup {
			return nil, invalid("obstacles", "Duplicate obstacle id "+o.ID)
		}
		seen[o.ID] = struct{}{}
		if err := checkCell("obstacles", "Obstacle", o.X, o.Y, gridSize); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validateFog checks "x,y" keys against the grid, rewrites them in canonical
// form ("03,3" becomes "3,3") and drops duplicates, keeping the first occurrence.
func validateFog(fog []string, gridSize int) ([]string, error) {
	out := make([]string, 0, len(fog))
	seen := make(map[string]struct{}, len(fog))
	for _, key := range fog {
		xs, ys, ok := strings.Cut(key, ",")
		if !ok || !isDigits(xs) || !isDigits(ys) {
			return nil, invalid("fog", fmt.Sprintf("Fog cell %q must look like \"x,y\"", key))
		}
		x, errX := strconv.Atoi(xs)
		y, errY := strconv.Atoi(ys)
		if errX != nil || errY != nil {
			return nil, invalid("fog", fmt.Sprintf("Fog cell %q is out of range", key))
		}
		if err := checkCell("fog", "Fog cell", x, y, gridSize); err != nil {
			return nil, err
		}
		canonical := visibility.CellKey(x, y)
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, nil
}

func validateShareScreen(share *model.ShareScreen) error {
	if share == nil {
		return nil
	}
	u, err := url.Parse(share.ImageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("shareScreen", "Image URL must be an absolute http(s) URL")
	}
	if p := share.Pointer; p != nil {
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			return invalid("shareScreen", "Pointer must be within 0-100 percent")
		}
	}
	return nil
}

func validateMessage(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("content", "Message content is required")
	}
	if utf8.RuneCountInString(content) > constants.MaxMessageLength {
		return "", invalid("content", fmt.Sprintf("Message is longer than %d characters", constants.MaxMessageLength))
	}
	return content, nil
}

// normalizeActionData returns {} for absent or null data and rejects
// anything that is not a JSON object.
func normalizeActionData(data json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("{}"), nil
	}
	if len(trimmed) > constants.MaxActionDataBytes {
		return nil, invalid("data", "Action data is too large")
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, invalid("data", "Action data must be a JSON object")
	}
	return trimmed, nil
}

func validateActionType(actionType string) (string, error) {
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		return "", invalid("type", "Action type is required")
	}
	if len(actionType) > constants.MaxActionTypeLength {
		return "", invalid("type", "Action type is too long")
	}
	return actionType, nil
}

// RollInput dice request
type RollInput struct {
	DiceType string `json:"diceType"`
	Count    int    `json:"count"`
	Modifier int    `json:"modifier"`
}

func (s *GameService) validateRoll(in RollInput) (dice.Spec, error) {
	sides, err := dice.ParseSides(strings.TrimSpace(in.DiceType))
	if err != nil {
		return dice.Spec{}, invalid("diceType", "Dice type must look like d20")
	}
	if sides > s.rules.DiceMaxSides {
		return dice.Spec{}, invalid("diceType", fmt.Sprintf("Dice can have at most %d sides", s.rules.DiceMaxSides))
	}

	count := in.Count
	if count == 0 {
		count = 1
	}
	if count < 1 || count > s.rules.DiceMaxCount {
		return dice.Spec{}, invalid("count", fmt.Sprintf("Count must be between 1 and %d", s.rules.DiceMaxCount))
	}

	if in.Modifier > s.rules.DiceMaxModifier || in.Modifier < -s.rules.DiceMaxModifier {
		return dice.Spec{}, invalid("modifier", fmt.Sprintf("Modifier must be between -%d and %d", s.rules.DiceMaxModifier, s.rules.DiceMaxModifier))
	}

	return dice.Spec{Sides: sides, Count: count, Modifier: in.Modifier}, nil
}

// CreateGameInput new game request
type CreateGameInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPlayers  int    `json:"maxPlayers"`
	GridSize    int    `json:"gridSize"`
}

func (s *GameService) validateCreate(in CreateGameInput) (CreateGameInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "Game name is required")
	}
	if utf8.RuneCountInString(in.Name) > constants.MaxGameNameLength {
		return in, invalid("name", fmt.Sprintf("Game name is longer than %d characters", constants.MaxGameNameLength))
	}
	if utf8.RuneCountInString(in.Description) > constants.MaxDescriptionLength {
		return in, invalid("description", fmt.Sprintf("Description is longer than %d characters", constants.MaxDescriptionLength))
	}

	if in.MaxPlayers == 0 {
		in.MaxPlayers = s.rules.DefaultMaxPlayers
	}
	if in.MaxPlayers < 1 || in.MaxPlayers > s.rules.MaxPlayersLimit {
		return in, invalid("maxPlayers", fmt.Sprintf("maxPlayers must be between 1 and %d", s.rules.MaxPlayersLimit))
	}

	if in.GridSize == 0 {
		in.GridSize = s.rules.DefaultGridSize
	}
	if in.GridSize < 1 || in.GridSize > s.rules.MaxGridSize {
		return in, invalid("gridSize", fmt.Sprintf("gridSize must be between 1 and %d", s.rules.MaxGridSize))
	}
	return in, nil
}

func validateUpload(fileName, contentType string) error {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return invalid("fileName", "File name is required")
	}
	if len(fileName) > constants.MaxFileNameLength {
		return invalid("fileName", "File name is too long")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return invalid("contentType", "Only image uploads are allowed")
	}
	return nil
}
