package model

import "time"

// User account
type User struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string       `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	PasswordHash string       `gorm:"type:varchar(100)" json:"-"`
	Email        string       `gorm:"type:varchar(255);index" json:"email"`
	Avatar       string       `gorm:"type:text" json:"avatar"`
	Role         *Role        `gorm:"type:varchar(10)" json:"role"`
	Provider     AuthProvider `gorm:"type:varchar(20);not null;default:'local'" json:"provider"`
	ProviderID   *string      `gorm:"type:varchar(255)" json:"-"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// RoleString returns the selected role or "" when none was chosen.
func (u *User) RoleString() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.String()
}
