package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

type PermissionService struct {
	users  UserStore
	perms  PermissionStore
	topics TopicStore
	audit  *AuditService
}

func NewPermissionService(users UserStore, perms PermissionStore, topics TopicStore, audit *AuditService) *PermissionService {
	return &PermissionService{users: users, perms: perms, topics: topics, audit: audit}
}

func deniedMessage(c models.Capability) string {
	switch c {
	case models.CapabilityImport:
		return "You do not have permission to import data for this topic or topic not found."
	case models.CapabilityViewData:
		return "You do not have permission to view data for this topic or topic not found."
	case models.CapabilityDelete:
		return "You do not have permission to delete data for this topic or topic not found."
	}
	return "You do not have permission for this topic or topic not found."
}

// Check allows admins unconditionally. Everyone else needs a permission row
// granting the capability.
func (s *PermissionService) Check(ctx context.Context, userID, topicID uuid.UUID, c models.Capability) error {
	return s.CheckAny(ctx, userID, topicID, c)
}

// CheckAny passes when at least one of caps is granted. The denial message is
// the one for the first capability.
func (s *PermissionService) CheckAny(ctx context.Context, userID, topicID uuid.UUID, caps ...models.Capability) error {
	if len(caps) == 0 {
		return apperrors.Permission("%s", deniedMessage(""))
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return apperrors.Permission("%s", deniedMessage(caps[0]))
	}
	if user.IsAdmin() {
		return nil
	}

	perm, err := s.perms.Get(ctx, userID, topicID)
	if err != nil {
		return fmt.Errorf("failed to load permission: %w", err)
	}
	for _, c := range caps {
		if perm.Allows(c) {
			return nil
		}
	}
	return apperrors.Permission("%s", deniedMessage(caps[0]))
}

// IsAdmin reports whether the user exists and has the admin role.
func (s *PermissionService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return user.IsAdmin(), nil
}

type GrantRequest struct {
	UserID        uuid.UUID `json:"user_id" binding:"required"`
	CanImport     bool      `json:"can_import"`
	CanViewData   bool      `json:"can_view_data"`
	CanDeleteData bool      `json:"can_delete_data"`
}

// Grant replaces the user's capability flags on the topic.
func (s *PermissionService) Grant(ctx context.Context, actorID, topicID uuid.UUID, req GrantRequest) (*models.UserTopicPermission, error) {
	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	if topic == nil {
		return nil, apperrors.NotFound("Topic not found.")
	}
	user, err := s.users.FindUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found.")
	}

	perm := &models.UserTopicPermission{
		UserID:        req.UserID,
		TopicID:       topicID,
		CanImport:     req.CanImport,
		CanViewData:   req.CanViewData,
		CanDeleteData: req.CanDeleteData,
	}
	if err := s.perms.Upsert(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to save permission: %w", err)
	}

	s.audit.LogAction(userRef(actorID), models.ActionPermissionGrant, map[string]any{
		"topicId":       topicID.String(),
		"userId":        req.UserID.String(),
		"canImport":     req.CanImport,
		"canViewData":   req.CanViewData,
		"canDeleteData": req.CanDeleteData,
	}, "", models.LogStatusSuccess, "")
	return perm, nil
}

func (s *PermissionService) ListByTopic(ctx context.Context, topicID uuid.UUID) ([]models.UserTopicPermission, error) {
	return s.perms.ListByTopic(ctx, topicID)
}
