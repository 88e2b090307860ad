package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AlvinLimo/GrowFrika/internal/auth"
	"github.com/AlvinLimo/GrowFrika/internal/errs"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

// UserStore is the persistence surface the account service needs.
type UserStore interface {
	CreateUser(user *store.User) error
	GetUserByID(userID string) (*store.User, error)
	GetUserByLogin(identifier string) (*store.User, error)
	GetUserByEmail(email string) (*store.User, error)
	GetUserByGoogleID(googleID string) (*store.User, error)
	UpdateUser(user *store.User) error
	UsernameTaken(username, excludeUserID string) (bool, error)
	EmailTaken(email, excludeUserID string) (bool, error)
}

// Mailer sends account emails. A no-op implementation is used when no email
// provider is configured.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, verifyURL string) error
}

// UserService implements registration, email verification, login, Google
// sign-in and profile management.
type UserService struct {
	store       UserStore
	mailer      Mailer
	frontendURL string
	logger      *zap.Logger
}

func NewUserService(st UserStore, mailer Mailer, frontendURL string, logger *zap.Logger) *UserService {
	return &UserService{store: st, mailer: mailer, frontendURL: frontendURL, logger: logger}
}

// Register creates an unverified account and sends the verification email.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, errs.ErrValidation
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	token, err := auth.GenerateVerificationToken(email)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}

	user := &store.User{
		Username:          username,
		Email:             email,
		PasswordHash:      &hash,
		HasPassword:       true,
		VerificationToken: &token,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	verifyURL := fmt.Sprintf("%sverify-email?token=%s", s.frontendURL, token)
	if err := s.mailer.SendVerificationEmail(ctx, email, username, verifyURL); err != nil {
		// The account exists either way; the user can request another email.
		s.logger.Warn("failed to send verification email",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	return user, nil
}

// VerifyEmail marks the account behind a verification token as verified.
func (s *UserService) VerifyEmail(token string) error {
	email, err := auth.ValidateVerificationToken(token)
	if err != nil {
		return errs.ErrValidation
	}
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return err
	}
	user.IsVerified = true
	user.VerificationToken = nil
	return s.store.UpdateUser(user)
}

// Login authenticates by email or username and returns a session token.
func (s *UserService) Login(identifier, password string) (*store.User, string, error) {
	if identifier == "" || password == "" {
		return nil, "", errs.ErrValidation
	}

	user, err := s.store.GetUserByLogin(identifier)
	if err != nil {
		return nil, "", err
	}
	if !user.IsVerified {
		return nil, "", errs.ErrEmailNotVerified
	}
	if user.IsGoogleUser && !user.HasPassword {
		return nil, "", errs.ErrGoogleNoPassword
	}
	if user.PasswordHash == nil || !auth.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, "", errs.ErrUnauthorized
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// GoogleProfile is the subset of the Google userinfo response the service needs.
type GoogleProfile struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// GoogleLogin resolves a Google profile to a local account, creating or
// linking as needed, and returns a session token. Google accounts are
// pre-verified.
func (s *UserService) GoogleLogin(profile GoogleProfile) (*store.User, string, error) {
	if profile.GoogleID == "" || profile.Email == "" {
		return nil, "", errs.ErrValidation
	}

	user, err := s.store.GetUserByGoogleID(profile.GoogleID)
	switch {
	case err == nil:
		if profile.Picture != "" && profile.Picture != user.ProfilePicture {
			user.ProfilePicture = profile.Picture
			if err := s.store.UpdateUser(user); err != nil {
				return nil, "", err
			}
		}
	case errors.Is(err, errs.ErrNotFound):
		user, err = s.linkOrCreateGoogleUser(profile)
		if err != nil {
			return nil, "", err
		}
	default:
		return nil, "", err
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

func (s *UserService) linkOrCreateGoogleUser(profile GoogleProfile) (*store.User, error) {
	// An existing email/password account gets the Google identity attached.
	user, err := s.store.GetUserByEmail(profile.Email)
	if err == nil {
		user.GoogleID = &profile.GoogleID
		user.IsGoogleUser = true
		user.IsVerified = true
		if profile.Picture != "" {
			user.ProfilePicture = profile.Picture
		}
		if err := s.store.UpdateUser(user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	username := profile.Name
	if username == "" {
		username = strings.SplitN(profile.Email, "@", 2)[0]
	}

	user = &store.User{
		Username:       username,
		Email:          profile.Email,
		GoogleID:       &profile.GoogleID,
		IsGoogleUser:   true,
		IsVerified:     true,
		ProfilePicture: profile.Picture,
	}
	err = s.store.CreateUser(user)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// Display-name collision with another account's username.
		user.Username = fmt.Sprintf("%s-%s", username, profile.GoogleID[:minInt(6, len(profile.GoogleID))])
		err = s.store.CreateUser(user)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GetUser loads a user by id.
func (s *UserService) GetUser(userID string) (*store.User, error) {
	return s.store.GetUserByID(userID)
}

// ProfileUpdate carries optional profile changes. Zero-valued fields are
// left untouched.
type ProfileUpdate struct {
	Username        string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies username/email/password changes with uniqueness and
// current-password checks.
func (s *UserService) UpdateProfile(userID string, upd ProfileUpdate) (*store.User, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if upd.NewPassword != "" {
		if user.HasPassword {
			if user.PasswordHash == nil || !auth.CheckPasswordHash(upd.CurrentPassword, *user.PasswordHash) {
				return nil, errs.ErrUnauthorized
			}
		}
		hash, err := auth.HashPassword(upd.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = &hash
		user.HasPassword = true
	}

	if upd.Username != "" && upd.Username != user.Username {
		taken, err := s.store.UsernameTaken(upd.Username, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.ErrAlreadyExists
		}
		user.Username = upd.Username
	}

	if upd.Email != "" && upd.Email != user.Email {
		taken, err := s.store.EmailTaken(upd.Email, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.ErrAlreadyExists
		}
		user.Email = upd.Email
	}

	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPassword lets a Google-only account set its first password.
func (s *UserService) SetPassword(userID, password string) error {
	if password == "" {
		return errs.ErrValidation
	}
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !user.IsGoogleUser {
		return errs.ErrValidation
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = &hash
	user.HasPassword = true
	return s.store.UpdateUser(user)
}
