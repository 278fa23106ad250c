package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/events"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/target"
)

type RollbackService struct {
	topics    TopicStore
	deletions DeletionLogStore
	perms     *PermissionService
	engine    TargetEngine
	publisher events.Publisher
	audit     *AuditService
}

func NewRollbackService(topics TopicStore, deletions DeletionLogStore, perms *PermissionService, engine TargetEngine, publisher events.Publisher, audit *AuditService) *RollbackService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &RollbackService{
		topics:    topics,
		deletions: deletions,
		perms:     perms,
		engine:    engine,
		publisher: publisher,
		audit:     audit,
	}
}

type RollbackError struct {
	DeletionLogID         uuid.UUID      `json:"deletionLogId"`
	RecordPrimaryKeyValue string         `json:"recordPrimaryKeyValue"`
	RowData               map[string]any `json:"row_data,omitempty"`
	ErrorMessage          string         `json:"error_message"`
}

type RollbackOutcome struct {
	RestoredCount int             `json:"restoredCount"`
	Errors        []RollbackError `json:"errors"`
}

func (o *RollbackOutcome) Partial() bool { return len(o.Errors) > 0 }

// Rollback re-inserts the snapshots of the selected deletion logs that are not
// rolled back yet. Only logs whose row was re-inserted are flipped; the rest
// stay eligible. The replay and the flip are separate transactions on
// separate databases, so a flip failure after a successful replay is reported
// as an error for that log.
func (s *RollbackService) Rollback(ctx context.Context, userID, topicID uuid.UUID, sel models.RollbackSelector, ip string) (*RollbackOutcome, error) {
	if sel.Empty() {
		return nil, apperrors.Validation("Please provide either deletionLogIds or a deletionBatchId to rollback.")
	}
	if err := s.perms.Check(ctx, userID, topicID, models.CapabilityDelete); err != nil {
		return nil, err
	}
	topic, mappings, err := loadTopic(ctx, s.topics, topicID)
	if err != nil {
		return nil, err
	}

	logs, err := s.deletions.FindEligible(ctx, topicID, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to load deletion logs: %w", err)
	}
	if len(logs) == 0 {
		s.audit.LogAction(userRef(userID), models.ActionDataRollbackFailure, map[string]any{
			"topicId": topicID.String(),
			"reason":  "No eligible deletion logs found for rollback.",
		}, ip, models.LogStatusFailure, "")
		return nil, apperrors.NotFound("No eligible deletion logs found for rollback.")
	}
	if len(mappings) == 0 {
		return nil, apperrors.Validation("Column mappings for this topic are missing. Cannot perform rollback.")
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"topic_id": topicID,
		"user_id":  userID,
		"logs":     len(logs),
	})

	// Row numbers are 1-based positions in logs.
	rows := make([]models.SourceRow, len(logs))
	for i, l := range logs {
		rows[i] = models.SourceRow{
			RowNumber: i + 1,
			Values:    target.ReformatSnapshot(l.DeletedRecordData, mappings),
		}
	}

	batch, err := s.engine.InsertBatch(ctx, topic.Target, rows, models.IdentityMappings(mappings))
	if err != nil {
		entry.WithError(err).Error("rollback replay could not start")
		s.audit.LogAction(userRef(userID), models.ActionDataRollbackFailure, map[string]any{"topicId": topicID.String()}, ip, models.LogStatusFailure, err.Error())
		return nil, err
	}

	outcome := &RollbackOutcome{Errors: []RollbackError{}}
	failed := make(map[int]struct{}, len(batch.Failures))
	for _, f := range batch.Failures {
		failed[f.RowNumber] = struct{}{}
		if f.RowNumber < 1 || f.RowNumber > len(logs) {
			continue
		}
		l := logs[f.RowNumber-1]
		outcome.Errors = append(outcome.Errors, RollbackError{
			DeletionLogID:         l.ID,
			RecordPrimaryKeyValue: l.RecordPrimaryKeyValue,
			RowData:               f.RowData,
			ErrorMessage:          f.ErrorMessage,
		})
	}

	var restored []uuid.UUID
	for i, l := range logs {
		if _, ok := failed[i+1]; !ok {
			restored = append(restored, l.ID)
		}
	}

	if len(restored) > 0 {
		flipped, err := s.deletions.MarkRolledBack(ledgerContext(ctx), restored, userID)
		if err != nil {
			entry.WithError(err).Error("rows were restored but the deletion logs could not be marked")
			for i, l := range logs {
				if _, ok := failed[i+1]; ok {
					continue
				}
				outcome.Errors = append(outcome.Errors, RollbackError{
					DeletionLogID:         l.ID,
					RecordPrimaryKeyValue: l.RecordPrimaryKeyValue,
					ErrorMessage:          "Row restored but the deletion log could not be marked as rolled back: " + err.Error(),
				})
			}
		} else {
			s.reportUnflipped(entry, logs, restored, flipped, outcome)
		}
	}
	outcome.RestoredCount = batch.SuccessCount

	if outcome.RestoredCount > 0 {
		event := events.NewEvent(events.TypeDeletionRolledBack, topicID, userID, map[string]any{
			"restoredCount": outcome.RestoredCount,
			"failedCount":   batch.FailCount,
			"deletionLogs":  uuidStrings(restored),
		})
		if err := s.publisher.Publish(ledgerContext(ctx), event); err != nil {
			entry.WithError(err).Warn("failed to publish rollback event")
		}
	}

	status := models.LogStatusSuccess
	if outcome.Partial() {
		status = models.LogStatusFailure
	}
	s.audit.LogAction(userRef(userID), models.ActionDataRollback, map[string]any{
		"topicId":       topicID.String(),
		"restoredCount": outcome.RestoredCount,
		"failedCount":   len(outcome.Errors),
	}, ip, status, batch.BatchError)

	entry.WithFields(logrus.Fields{
		"restored": outcome.RestoredCount,
		"failed":   len(outcome.Errors),
	}).Info("deletion rollback finished")
	return outcome, nil
}

// reportUnflipped covers logs another request rolled back between selection
// and flip. Their rows were inserted again by this call.
func (s *RollbackService) reportUnflipped(entry *logrus.Entry, logs []models.DeletionLog, restored, flipped []uuid.UUID, outcome *RollbackOutcome) {
	if len(flipped) == len(restored) {
		return
	}
	done := make(map[uuid.UUID]struct{}, len(flipped))
	for _, id := range flipped {
		done[id] = struct{}{}
	}
	byID := make(map[uuid.UUID]models.DeletionLog, len(logs))
	for _, l := range logs {
		byID[l.ID] = l
	}
	for _, id := range restored {
		if _, ok := done[id]; ok {
			continue
		}
		l := byID[id]
		entry.WithField("deletion_log_id", id).Warn("deletion log was already rolled back by another request")
		outcome.Errors = append(outcome.Errors, RollbackError{
			DeletionLogID:         id,
			RecordPrimaryKeyValue: l.RecordPrimaryKeyValue,
			ErrorMessage:          "Deletion log was already rolled back by another request.",
		})
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
