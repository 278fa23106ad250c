package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/events"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/target"
)

type DataService struct {
	topics    TopicStore
	deletions DeletionLogStore
	perms     *PermissionService
	engine    TargetEngine
	publisher events.Publisher
	audit     *AuditService
}

func NewDataService(topics TopicStore, deletions DeletionLogStore, perms *PermissionService, engine TargetEngine, publisher events.Publisher, audit *AuditService) *DataService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &DataService{
		topics:    topics,
		deletions: deletions,
		perms:     perms,
		engine:    engine,
		publisher: publisher,
		audit:     audit,
	}
}

type QueryParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	// Filters is the raw filters query value: a JSON array of {column, value}.
	Filters string
}

// ParseFilters decodes a JSON filter array. Anything else yields no filters.
func ParseFilters(raw string) []target.Filter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var filters []target.Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		logger.Log.WithField("filters", raw).Debug("ignoring invalid filters")
		return nil
	}
	return filters
}

func (s *DataService) QueryData(ctx context.Context, userID, topicID uuid.UUID, p QueryParams, ip string) (*target.QueryResult, error) {
	if err := s.perms.Check(ctx, userID, topicID, models.CapabilityViewData); err != nil {
		return nil, err
	}
	topic, mappings, err := loadTopic(ctx, s.topics, topicID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, apperrors.Validation("No column mappings configured for this topic. Cannot fetch data.")
	}

	res, err := s.engine.Query(ctx, topic.Target, mappings, target.QueryOptions{
		Page:      p.Page,
		Limit:     p.Limit,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
		Filters:   ParseFilters(p.Filters),
	})
	if err != nil {
		s.audit.LogAction(userRef(userID), models.ActionDataView, map[string]any{"topicId": topicID.String()}, ip, models.LogStatusFailure, err.Error())
		return nil, err
	}

	s.audit.LogAction(userRef(userID), models.ActionDataView, map[string]any{
		"topicId": topicID.String(),
		"page":    res.CurrentPage,
		"count":   len(res.Data),
	}, ip, models.LogStatusSuccess, "")
	return res, nil
}

type DeleteOutcome struct {
	DeletedCount    int64                `json:"deletedCount"`
	Errors          []target.DeleteError `json:"errors"`
	DeletionBatchID *uuid.UUID           `json:"deletionBatchId,omitempty"`
}

func (o *DeleteOutcome) Partial() bool { return len(o.Errors) > 0 }

// DeleteRecords deletes rows by primary key and leaves one deletion log per
// deleted row that could be snapshotted first. A failed snapshot fetch does
// not block the delete, but those rows cannot be rolled back.
func (s *DataService) DeleteRecords(ctx context.Context, userID, topicID uuid.UUID, recordIDs []any, ip string) (*DeleteOutcome, error) {
	if len(recordIDs) == 0 {
		return nil, apperrors.Validation("Please provide an array of recordIds to delete.")
	}
	if err := s.perms.Check(ctx, userID, topicID, models.CapabilityDelete); err != nil {
		return nil, err
	}
	topic, mappings, err := loadTopic(ctx, s.topics, topicID)
	if err != nil {
		return nil, err
	}
	pks := models.PrimaryKeys(mappings)
	if len(pks) == 0 {
		s.audit.LogAction(userRef(userID), models.ActionDataDeleteFailure, map[string]any{
			"topicId": topicID.String(),
			"reason":  "No primary key defined for this topic.",
		}, ip, models.LogStatusFailure, "")
		return nil, apperrors.Validation("No primary key defined for this topic. Cannot delete records.")
	}
	pkColumn := pks[0].TargetColumnName

	entry := logger.Log.WithFields(logrus.Fields{
		"topic_id": topicID,
		"user_id":  userID,
		"table":    topic.Target.Table,
	})

	snapshots, fetchErr := s.engine.FetchByPK(ctx, topic.Target, mappings, pkColumn, recordIDs)
	if fetchErr != nil {
		entry.WithError(fetchErr).Warn("could not snapshot records before delete; they will not be recoverable")
		s.audit.LogAction(userRef(userID), models.ActionDataDeleteFailure, map[string]any{
			"topicId":        topicID.String(),
			"recordIdsCount": len(recordIDs),
			"reason":         "snapshot fetch failed",
		}, ip, models.LogStatusFailure, fetchErr.Error())
	}

	res, err := s.engine.DeleteByPK(ctx, topic.Target, mappings, pkColumn, recordIDs)
	if err != nil {
		s.audit.LogAction(userRef(userID), models.ActionDataDeleteFailure, map[string]any{"topicId": topicID.String()}, ip, models.LogStatusFailure, err.Error())
		return nil, err
	}

	outcome := &DeleteOutcome{DeletedCount: res.DeletedCount, Errors: res.Errors}
	if len(res.Deleted) > 0 {
		batchID := uuid.New()
		outcome.DeletionBatchID = &batchID

		logs := make([]models.DeletionLog, 0, len(res.Deleted))
		for _, value := range res.Deleted {
			key := target.PKKey(value)
			snap, ok := snapshots[key]
			if !ok {
				continue
			}
			logs = append(logs, models.DeletionLog{
				TopicID:               topicID,
				UserID:                userID,
				TargetTableName:       topic.Target.Table,
				RecordPrimaryKeyValue: target.PKKey(snap[pkColumn]),
				DeletedRecordData:     snap,
				DeletionBatchID:       batchID,
			})
		}
		if len(logs) > 0 {
			if err := s.deletions.CreateMany(ledgerContext(ctx), logs); err != nil {
				entry.WithError(err).Error("failed to store deletion logs")
				return nil, fmt.Errorf("records were deleted but the deletion logs could not be stored: %w", err)
			}
		}

		event := events.NewEvent(events.TypeRecordsDeleted, topicID, userID, map[string]any{
			"deletionBatchId": batchID.String(),
			"deletedCount":    res.DeletedCount,
			"loggedCount":     len(logs),
		})
		if err := s.publisher.Publish(ledgerContext(ctx), event); err != nil {
			entry.WithError(err).Warn("failed to publish deletion event")
		}
	}

	status := models.LogStatusSuccess
	if outcome.Partial() {
		status = models.LogStatusFailure
	}
	s.audit.LogAction(userRef(userID), models.ActionDataDelete, map[string]any{
		"topicId":      topicID.String(),
		"deletedCount": res.DeletedCount,
		"failedCount":  len(res.Errors),
	}, ip, status, "")

	entry.WithFields(logrus.Fields{
		"deleted": res.DeletedCount,
		"failed":  len(res.Errors),
	}).Info("records deleted")
	return outcome, nil
}
