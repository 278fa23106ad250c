// Package handlers adapts the services to gin. Each handler depends on a small
// interface so it can be exercised with fakes.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"topic_importer/internal/middlewares"
	"topic_importer/internal/models"
	"topic_importer/internal/responses"
	"topic_importer/internal/services"
	"topic_importer/internal/target"
	"topic_importer/internal/utils"
)

type Authenticator interface {
	Login(ctx context.Context, email, password, ip string) (*services.LoginResult, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type UserCreator interface {
	CreateUser(ctx context.Context, actorID uuid.UUID, req services.CreateUserRequest) (*models.User, error)
}

type TopicManager interface {
	Create(ctx context.Context, actorID uuid.UUID, req services.CreateTopicRequest) (*models.Topic, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Topic, error)
	List(ctx context.Context) ([]models.Topic, error)
	ListAvailable(ctx context.Context, userID uuid.UUID) ([]models.Topic, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	Provision(ctx context.Context, actorID, id uuid.UUID) error
	Update(ctx context.Context, actorID, id uuid.UUID, req services.UpdateTopicRequest) (*models.Topic, error)
}

type PermissionGranter interface {
	Grant(ctx context.Context, actorID, topicID uuid.UUID, req services.GrantRequest) (*models.UserTopicPermission, error)
	ListByTopic(ctx context.Context, topicID uuid.UUID) ([]models.UserTopicPermission, error)
}

type Importer interface {
	Import(ctx context.Context, req services.ImportRequest) (*services.ImportResult, error)
}

type DataManager interface {
	QueryData(ctx context.Context, userID, topicID uuid.UUID, p services.QueryParams, ip string) (*target.QueryResult, error)
	DeleteRecords(ctx context.Context, userID, topicID uuid.UUID, recordIDs []any, ip string) (*services.DeleteOutcome, error)
}

type RollbackRunner interface {
	Rollback(ctx context.Context, userID, topicID uuid.UUID, sel models.RollbackSelector, ip string) (*services.RollbackOutcome, error)
}

type LogReader interface {
	MyImportLogs(ctx context.Context, userID uuid.UUID, f models.ImportLogFilter, page int) (*services.Page[models.ImportLog], error)
	FailedRows(ctx context.Context, userID, importLogID uuid.UUID, limit int) ([]models.FailedImportRow, error)
	DeletionLogs(ctx context.Context, userID uuid.UUID, f models.DeletionLogFilter) ([]models.DeletionLog, error)
	ImportLogs(ctx context.Context, f models.ImportLogFilter, page int) (*services.Page[models.ImportLog], error)
	SystemLogs(ctx context.Context, f models.SystemLogFilter, page int) (*services.Page[models.SystemLog], error)
}

var (
	_ Authenticator     = (*services.AuthService)(nil)
	_ UserCreator       = (*services.UserService)(nil)
	_ TopicManager      = (*services.TopicService)(nil)
	_ PermissionGranter = (*services.PermissionService)(nil)
	_ Importer          = (*services.ImportService)(nil)
	_ DataManager       = (*services.DataService)(nil)
	_ RollbackRunner    = (*services.RollbackService)(nil)
	_ LogReader         = (*services.LogService)(nil)
)

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middlewares.UserID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
	}
	return id, ok
}

// pathUUID parses a uuid route parameter and answers 400 when it is malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(c.Param(name))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
