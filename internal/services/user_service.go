package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/repositories"
	"topic_importer/internal/utils"
)

const minPasswordLength = 8

type UserService struct {
	users UserStore
	audit *AuditService
}

func NewUserService(users UserStore, audit *AuditService) *UserService {
	return &UserService{users: users, audit: audit}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (s *UserService) CreateUser(ctx context.Context, actorID uuid.UUID, req CreateUserRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("Invalid email address.")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least %d characters.", minPasswordLength)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperrors.Validation("Role must be %q or %q.", models.RoleUser, models.RoleAdmin)
	}

	hash, err := utils.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{Email: email, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Validation("A user with this email already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.LogAction(userRef(actorID), models.ActionUserCreate, map[string]any{
		"userId": user.ID.String(),
		"role":   user.Role,
	}, "", models.LogStatusSuccess, "")
	return user, nil
}

// BootstrapAdmin creates the first admin while no users exist. It does
// nothing when email is empty or users are already present.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	user, err := s.CreateUser(ctx, uuid.Nil, CreateUserRequest{Email: email, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return err
	}
	logger.Log.WithField("email", user.Email).Info("bootstrap admin created")
	return nil
}
