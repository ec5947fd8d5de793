package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tabletop-backend/internal/model"
)

// UserStore account storage
type UserStore struct {
	db *gorm.DB
}

// NewUserStore UserStore constructor
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. Usernames compare exactly.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Provider == "" {
		user.Provider = model.ProviderLocal
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&model.User{}).Where("username = ?", user.Username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, ErrUsernameTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID loads a user by id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findBy(ctx, "id = ?", id)
}

// FindByUsername loads a user by username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findBy(ctx, "username = ?", username)
}

// FindByProviderID loads the user bound to an external identity.
func (s *UserStore) FindByProviderID(ctx context.Context, provider model.AuthProvider, providerID string) (*model.User, error) {
	return s.findBy(ctx, "provider = ? AND provider_id = ?", provider, providerID)
}

// FindUnlinkedByEmail loads the oldest provider account with the given email
// that has no provider id recorded yet. Local accounts never match.
func (s *UserStore) FindUnlinkedByEmail(ctx context.Context, provider model.AuthProvider, email string) (*model.User, error) {
	return s.findBy(ctx, "provider = ? AND provider_id IS NULL AND email = ?", provider, email)
}

func (s *UserStore) findBy(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where(query, args...).Order("created_at ASC").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// UsernameExists reports whether the username is taken.
func (s *UserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

// SetRole sets or clears (nil) the selected role and returns the updated user.
func (s *UserStore) SetRole(ctx context.Context, id string, role *model.Role) (*model.User, error) {
	result := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return nil, fmt.Errorf("set role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// LinkGoogle records the Google identity on an unlinked Google account and
// refreshes the avatar. Local accounts and already linked ones are left alone.
func (s *UserStore) LinkGoogle(ctx context.Context, id, providerID, avatar string) error {
	updates := map[string]any{"provider_id": providerID}
	if avatar != "" {
		updates["avatar"] = avatar
	}
	result := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND provider = ? AND provider_id IS NULL", id, model.ProviderGoogle).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("link google: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetUserRole clears the role of the named user so role selection is shown again.
func (s *UserStore) ResetUserRole(ctx context.Context, username string) (*model.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.SetRole(ctx, user.ID, nil)
}
