package model

import (
	"time"

	"gorm.io/datatypes"
)

// Message chat entry
type Message struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement;index:idx_messages_game_seq,priority:2" json:"-"`
	ID        string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"id"`
	GameID    string    `gorm:"type:varchar(36);not null;index:idx_messages_game_seq,priority:1" json:"gameId"`
	UserID    string    `gorm:"type:varchar(36);not null" json:"userId"`
	Username  string    `gorm:"type:varchar(100);not null" json:"username"`
	Avatar    string    `gorm:"type:text" json:"avatar"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// Action audit log entry
type Action struct {
	Seq       int64          `gorm:"primaryKey;autoIncrement;index:idx_actions_game_seq,priority:2" json:"-"`
	ID        string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"id"`
	GameID    string         `gorm:"type:varchar(36);not null;index:idx_actions_game_seq,priority:1" json:"gameId"`
	UserID    string         `gorm:"type:varchar(36);not null" json:"userId"`
	Username  string         `gorm:"type:varchar(100);not null" json:"username"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

func (Action) TableName() string {
	return "actions"
}

// DiceRoll result of one roll request; persisted only as an Action
type DiceRoll struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	DiceType  string    `json:"diceType"`
	Count     int       `json:"count"`
	Modifier  int       `json:"modifier"`
	Rolls     []int     `json:"rolls"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}
