package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/repositories"
	"topic_importer/internal/target"
)

type TopicService struct {
	topics TopicStore
	perms  *PermissionService
	engine TargetEngine
	audit  *AuditService
}

func NewTopicService(topics TopicStore, perms *PermissionService, engine TargetEngine, audit *AuditService) *TopicService {
	return &TopicService{topics: topics, perms: perms, engine: engine, audit: audit}
}

type TargetInput struct {
	Dialect  string `json:"dialect"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database" binding:"required"`
	Table    string `json:"table" binding:"required"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type MappingInput struct {
	SourceColumnName string  `json:"source_column_name" binding:"required"`
	TargetColumnName string  `json:"target_column_name" binding:"required"`
	DataType         string  `json:"data_type"`
	IsPrimaryKey     bool    `json:"is_primary_key"`
	IsIndex          bool    `json:"is_index"`
	AllowNull        *bool   `json:"allow_null"`
	DefaultValue     *string `json:"default_value"`
}

type CreateTopicRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description *string        `json:"description,omitempty"`
	Target      TargetInput    `json:"target" binding:"required"`
	Mappings    []MappingInput `json:"mappings" binding:"required"`
}

// UpdateTopicRequest changes only the fields that are present. Mappings, when
// present, replace the stored set.
type UpdateTopicRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Target      *TargetPatch    `json:"target,omitempty"`
	Mappings    *[]MappingInput `json:"mappings,omitempty"`
}

// TargetPatch carries target fields to change. Zero values keep the stored
// value.
type TargetPatch struct {
	Dialect  string `json:"dialect"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Table    string `json:"table"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (p TargetPatch) apply(d *models.TargetDescriptor) {
	if dialect := strings.ToLower(strings.TrimSpace(p.Dialect)); dialect != "" && dialect != d.Dialect {
		d.Dialect = dialect
		d.Port = 0
	}
	if host := strings.TrimSpace(p.Host); host != "" {
		d.Host = host
	}
	if p.Port > 0 {
		d.Port = p.Port
	}
	if db := strings.TrimSpace(p.Database); db != "" {
		d.Database = db
	}
	if table := strings.TrimSpace(p.Table); table != "" {
		d.Table = table
	}
	if p.User != "" {
		d.User = p.User
	}
	if p.Password != "" {
		d.Password = p.Password
	}
}

func (in MappingInput) toModel() models.ColumnMapping {
	allowNull := true
	if in.AllowNull != nil {
		allowNull = *in.AllowNull
	}
	return models.ColumnMapping{
		SourceColumnName: strings.TrimSpace(in.SourceColumnName),
		TargetColumnName: strings.TrimSpace(in.TargetColumnName),
		DataType:         strings.TrimSpace(in.DataType),
		IsPrimaryKey:     in.IsPrimaryKey,
		IsIndex:          in.IsIndex,
		AllowNull:        allowNull,
		DefaultValue:     in.DefaultValue,
	}
}

// Create validates the target and the mappings, then stores the topic and
// its mappings in one transaction. Nothing touches the target database.
func (s *TopicService) Create(ctx context.Context, actorID uuid.UUID, req CreateTopicRequest) (*models.Topic, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("Topic name is required.")
	}

	desc := models.TargetDescriptor{
		Dialect:  req.Target.Dialect,
		Host:     strings.TrimSpace(req.Target.Host),
		Port:     req.Target.Port,
		Database: strings.TrimSpace(req.Target.Database),
		Table:    strings.TrimSpace(req.Target.Table),
		User:     req.Target.User,
		Password: req.Target.Password,
	}
	if err := validateTarget(&desc); err != nil {
		return nil, err
	}

	mappings := make([]models.ColumnMapping, len(req.Mappings))
	for i, in := range req.Mappings {
		mappings[i] = in.toModel()
	}
	if err := target.ValidateMappings(desc.Table, mappings); err != nil {
		return nil, err
	}

	topic := &models.Topic{
		Name:        name,
		Description: req.Description,
		Target:      desc,
		CreatedBy:   actorID,
	}
	if err := s.topics.Create(ctx, topic, mappings); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Validation("A topic named %q already exists.", name)
		}
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	s.audit.LogAction(userRef(actorID), models.ActionTopicCreate, map[string]any{
		"topicId": topic.ID.String(),
		"name":    topic.Name,
		"table":   topic.Target.Table,
	}, "", models.LogStatusSuccess, "")
	return topic, nil
}

// Update changes the fields present in req and returns the stored topic with
// its mappings. Replacing the mappings re-runs the provisioner; a provisioning
// failure is audited as a warning and does not fail the update.
func (s *TopicService) Update(ctx context.Context, actorID, id uuid.UUID, req UpdateTopicRequest) (*models.Topic, error) {
	topic, mappings, err := loadTopic(ctx, s.topics, id)
	if err != nil {
		return nil, err
	}

	var fields []string
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("Topic name cannot be empty.")
		}
		topic.Name = name
		fields = append(fields, "name")
	}
	if req.Description != nil {
		topic.Description = req.Description
		fields = append(fields, "description")
	}
	if req.Target != nil {
		req.Target.apply(&topic.Target)
		fields = append(fields, "target")
	}
	if err := validateTarget(&topic.Target); err != nil {
		return nil, err
	}

	var replaced []models.ColumnMapping
	if req.Mappings != nil {
		replaced = make([]models.ColumnMapping, len(*req.Mappings))
		for i, in := range *req.Mappings {
			replaced[i] = in.toModel()
		}
		mappings = replaced
		fields = append(fields, "mappings")
	}
	if err := target.ValidateMappings(topic.Target.Table, mappings); err != nil {
		return nil, err
	}

	found, err := s.topics.Update(ctx, topic, replaced)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Validation("A topic named %q already exists.", topic.Name)
		}
		return nil, fmt.Errorf("failed to update topic: %w", err)
	}
	if !found {
		return nil, apperrors.NotFound("Topic not found.")
	}
	topic.Mappings = mappings

	if replaced != nil {
		if err := s.engine.EnsureTableExists(ctx, topic.Target, mappings); err != nil {
			logger.Log.WithError(err).WithField("topic_id", id).Warn("target table revalidation failed after topic update")
			s.audit.LogAction(userRef(actorID), models.ActionTopicRevalidateWarn, map[string]any{
				"topicId": id.String(),
				"table":   topic.Target.Table,
			}, "", models.LogStatusFailure, err.Error())
		}
	}

	s.audit.LogAction(userRef(actorID), models.ActionTopicUpdate, map[string]any{
		"topicId":       id.String(),
		"updatedFields": fields,
	}, "", models.LogStatusSuccess, "")
	return topic, nil
}

// Get returns the topic with its mappings in mapping order.
func (s *TopicService) Get(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	topic, mappings, err := loadTopic(ctx, s.topics, id)
	if err != nil {
		return nil, err
	}
	topic.Mappings = mappings
	return topic, nil
}

func (s *TopicService) List(ctx context.Context) ([]models.Topic, error) {
	return s.topics.List(ctx)
}

// ListAvailable returns every topic to admins and the topics with at least
// one granted capability to everyone else.
func (s *TopicService) ListAvailable(ctx context.Context, userID uuid.UUID) ([]models.Topic, error) {
	admin, err := s.perms.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if admin {
		return s.topics.List(ctx)
	}
	return s.topics.ListAvailable(ctx, userID)
}

// Delete removes the topic and, by cascade, its mappings and ledgers. The
// target table is left untouched.
func (s *TopicService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	deleted, err := s.topics.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("Topic not found.")
	}
	s.audit.LogAction(userRef(actorID), models.ActionTopicDelete, map[string]any{"topicId": id.String()}, "", models.LogStatusSuccess, "")
	return nil
}

// Provision runs the schema provisioner for the topic without importing.
func (s *TopicService) Provision(ctx context.Context, actorID, id uuid.UUID) error {
	topic, mappings, err := loadTopic(ctx, s.topics, id)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		return apperrors.Validation("No column mappings configured for this topic.")
	}

	details := map[string]any{"topicId": id.String(), "table": topic.Target.Table}
	if err := s.engine.EnsureTableExists(ctx, topic.Target, mappings); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"topic_id": id,
			"table":    topic.Target.Table,
		}).Error("target provisioning failed")
		s.audit.LogAction(userRef(actorID), models.ActionTargetTableEnsureFailed, details, "", models.LogStatusFailure, err.Error())
		return err
	}
	s.audit.LogAction(userRef(actorID), models.ActionTargetTableEnsure, details, "", models.LogStatusSuccess, "")
	return nil
}

// validateTarget normalizes desc and checks that the dialect is registered
// and the connection fields it needs are present.
func validateTarget(desc *models.TargetDescriptor) error {
	desc.Normalize()
	if _, err := target.LookupDialect(desc.Dialect); err != nil {
		return apperrors.Validation("Unsupported target dialect %q. Supported: %s.", desc.Dialect, strings.Join(target.Dialects(), ", "))
	}
	if desc.Dialect != models.DialectSQLite && desc.Host == "" {
		return apperrors.Validation("Target host is required.")
	}
	if desc.Database == "" {
		return apperrors.Validation("Target database is required.")
	}
	return nil
}

// loadTopic returns NotFound when the topic does not exist.
func loadTopic(ctx context.Context, topics TopicStore, id uuid.UUID) (*models.Topic, []models.ColumnMapping, error) {
	topic, err := topics.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load topic: %w", err)
	}
	if topic == nil {
		return nil, nil, apperrors.NotFound("Topic not found.")
	}
	mappings, err := topics.GetMappings(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load column mappings: %w", err)
	}
	return topic, mappings, nil
}
