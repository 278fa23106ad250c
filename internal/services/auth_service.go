package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/utils"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService struct {
	users  UserStore
	audit  *AuditService
	secret []byte
	ttl    time.Duration
}

func NewAuthService(users UserStore, audit *AuditService, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, audit: audit, secret: secret, ttl: ttl}
}

type LoginResult struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *models.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		s.audit.LogAction(nil, models.ActionUserLogin, map[string]any{"email": email}, ip, models.LogStatusFailure, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err := utils.VerifyPassword(user.PasswordHash, password); err != nil {
		s.audit.LogAction(userRef(user.ID), models.ActionUserLogin, nil, ip, models.LogStatusFailure, err.Error())
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(user.ID, user.Role, s.ttl, s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	s.audit.LogAction(userRef(user.ID), models.ActionUserLogin, nil, ip, models.LogStatusSuccess, "")
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(s.ttl.Seconds()),
		User:        user,
	}, nil
}

// Me returns the user behind an access token.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
