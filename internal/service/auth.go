package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabletop-backend/internal/auth"
	"tabletop-backend/internal/constants"
	"tabletop-backend/internal/model"
	"tabletop-backend/internal/store"
)

// Session a user together with a freshly issued bearer token
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput sign-up request
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

// AuthService account operations
type AuthService struct {
	users  *store.UserStore
	jwt    *auth.JWTManager
	google auth.GoogleVerifier
	log    *zap.Logger
}

// NewAuthService AuthService constructor. google may be nil, which disables Google sign-in.
func NewAuthService(users *store.UserStore, jwt *auth.JWTManager, google auth.GoogleVerifier, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		jwt:    jwt,
		google: google,
		log:    log.Named("auth"),
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

func (s *AuthService) issue(user *model.User) (*Session, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Username, user.RoleString())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

func parseRole(raw string) (*model.Role, error) {
	role := model.Role(strings.TrimSpace(raw))
	if !role.Valid() {
		return nil, invalid("role", "Invalid role")
	}
	return &role, nil
}

// Register creates a local account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, invalid("username", "Username and password are required")
	}
	if utf8.RuneCountInString(username) > constants.MaxUsernameLength {
		return nil, invalid("username", fmt.Sprintf("Username is longer than %d characters", constants.MaxUsernameLength))
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, invalid("password", fmt.Sprintf("Password is longer than %d bytes", auth.MaxPasswordBytes))
	}

	var role *model.Role
	if in.Role != "" {
		r, err := parseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = fmt.Sprintf(constants.DefaultAvatarURL, username)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		Avatar:       avatar,
		Role:         role,
		Provider:     model.ProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, invalid("username", "Username already exists")
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// Login checks credentials. Unknown users and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, invalid("username", "Username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}
	return s.issue(user)
}

// Me loads the caller's account.
func (s *AuthService) Me(ctx context.Context, caller Caller) (*model.User, error) {
	user, err := s.users.FindByID(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetRole stores the selected role and reissues the token carrying it.
func (s *AuthService) SetRole(ctx context.Context, caller Caller, raw string) (*Session, error) {
	role, err := parseRole(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.users.SetRole(ctx, caller.UserID, role)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("role selected", zap.String("user_id", user.ID), zap.String("role", role.String()))
	return s.issue(user)
}

// GoogleLogin signs in with a Google ID token, creating the account on first use.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if s.google == nil {
		return nil, newError(ErrNotFound, "Google sign-in is not enabled")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, invalid("idToken", "idToken is required")
	}

	info, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.log.Debug("google token rejected", zap.Error(err))
		return nil, newError(ErrUnauthorized, "Invalid Google token")
	}

	user, err := s.findGoogleUser(ctx, info)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		user, err = s.createGoogleUser(ctx, info)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.issue(user)
}

// findGoogleUser resolves the Google subject to an account. A local account
// sharing the email is never taken over: its email was not verified.
func (s *AuthService) findGoogleUser(ctx context.Context, info *auth.GoogleUserInfo) (*model.User, error) {
	user, err := s.users.FindByProviderID(ctx, model.ProviderGoogle, info.ID)
	if !errors.Is(err, store.ErrNotFound) {
		return user, err
	}

	user, err = s.users.FindUnlinkedByEmail(ctx, model.ProviderGoogle, info.Email)
	if err != nil {
		return nil, err
	}
	if err := s.users.LinkGoogle(ctx, user.ID, info.ID, info.Picture); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, user.ID)
}

func (s *AuthService) createGoogleUser(ctx context.Context, info *auth.GoogleUserInfo) (*model.User, error) {
	base, _, _ := strings.Cut(info.Email, "@")
	if base == "" {
		base = "player"
	}
	if utf8.RuneCountInString(base) > constants.MaxUsernameLength-9 {
		base = string([]rune(base)[:constants.MaxUsernameLength-9])
	}

	avatar := info.Picture
	providerID := info.ID
	username := base
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			username = base + "-" + uuid.NewString()[:8]
		}
		if avatar == "" {
			avatar = fmt.Sprintf(constants.DefaultAvatarURL, username)
		}
		user := &model.User{
			Username:   username,
			Email:      info.Email,
			Avatar:     avatar,
			Provider:   model.ProviderGoogle,
			ProviderID: &providerID,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("provider", string(model.ProviderGoogle)))
			return user, nil
		}
		if !errors.Is(err, store.ErrUsernameTaken) {
			return nil, err
		}
	}
	return nil, newError(ErrConflict, "Could not allocate a username")
}
