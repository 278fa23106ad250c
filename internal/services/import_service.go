package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/events"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/parser"
)

const failedSampleSize = 5

type ImportService struct {
	topics       TopicStore
	importLogs   ImportLogStore
	failedRows   FailedRowStore
	perms        *PermissionService
	engine       TargetEngine
	publisher    events.Publisher
	audit        *AuditService
	schemaStrict bool
}

type ImportServiceConfig struct {
	Topics       TopicStore
	ImportLogs   ImportLogStore
	FailedRows   FailedRowStore
	Permissions  *PermissionService
	Engine       TargetEngine
	Publisher    events.Publisher
	Audit        *AuditService
	SchemaStrict bool
}

func NewImportService(cfg ImportServiceConfig) *ImportService {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ImportService{
		topics:       cfg.Topics,
		importLogs:   cfg.ImportLogs,
		failedRows:   cfg.FailedRows,
		perms:        cfg.Permissions,
		engine:       cfg.Engine,
		publisher:    publisher,
		audit:        cfg.Audit,
		schemaStrict: cfg.SchemaStrict,
	}
}

type ImportRequest struct {
	UserID       uuid.UUID
	TopicID      uuid.UUID
	FilePath     string
	OriginalName string
	IP           string
}

type ImportResult struct {
	ImportLogID          uuid.UUID           `json:"importLogId"`
	Status               models.ImportStatus `json:"status"`
	Message              string              `json:"message"`
	SuccessfullyImported int                 `json:"successfullyImported"`
	FailedCount          int                 `json:"failedCount"`
	FailedSamples        []models.RowFailure `json:"failedSamples"`
}

// Rejected reports whether nothing was imported and everything failed.
func (r *ImportResult) Rejected() bool {
	return r.Status == models.ImportFailed && r.SuccessfullyImported == 0
}

// importRun tracks the ledger entry of one upload so every exit path can
// finalize it from the status it is actually in.
type importRun struct {
	log       *models.ImportLog
	status    models.ImportStatus
	finalized bool
}

// Import runs one upload end to end. Once the ledger entry exists, every
// returned error has already been recorded on it as FAILED. The caller owns
// the uploaded file and removes it.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (result *ImportResult, err error) {
	entry := logger.Log.WithFields(logrus.Fields{
		"topic_id": req.TopicID,
		"user_id":  req.UserID,
		"file":     req.OriginalName,
	})

	if err := s.perms.Check(ctx, req.UserID, req.TopicID, models.CapabilityImport); err != nil {
		s.audit.LogAction(userRef(req.UserID), models.ActionFileImportFailure, map[string]any{
			"topicId": req.TopicID.String(),
			"reason":  "Permission denied or topic not found",
		}, req.IP, models.LogStatusFailure, err.Error())
		return nil, err
	}

	topic, mappings, err := loadTopic(ctx, s.topics, req.TopicID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, apperrors.Validation("No column mappings configured for this topic. Cannot proceed with import.")
	}

	run := &importRun{log: &models.ImportLog{
		TopicID:          topic.ID,
		UserID:           req.UserID,
		OriginalFileName: req.OriginalName,
	}}
	if err := s.importLogs.Create(ctx, run.log); err != nil {
		return nil, fmt.Errorf("failed to create import log: %w", err)
	}
	run.status = run.log.Status
	entry = entry.WithField("import_log_id", run.log.ID)

	defer func() {
		if err != nil && !run.finalized {
			s.fail(ctx, run, &models.ErrorDetails{Message: "Critical error: " + apperrors.Message(err)})
			s.audit.LogAction(userRef(req.UserID), models.ActionFileImportFailure, map[string]any{
				"topicId":     topic.ID.String(),
				"importLogId": run.log.ID.String(),
			}, req.IP, models.LogStatusFailure, err.Error())
		}
	}()

	if err := s.advance(ctx, run, models.ImportProcessing, nil); err != nil {
		return nil, err
	}

	rows, headers, err := parser.ParseFile(req.FilePath, req.OriginalName)
	switch {
	case errors.Is(err, parser.ErrEmptyFile) || (err == nil && len(rows) == 0):
		s.fail(ctx, run, &models.ErrorDetails{Message: "File is empty or could not be parsed correctly."})
		return nil, apperrors.Validation("The uploaded file is empty or could not be parsed.")
	case err != nil:
		s.fail(ctx, run, &models.ErrorDetails{Message: "File parsing error: " + err.Error()})
		return nil, apperrors.Validation("Error parsing file: %v", err)
	}

	total := len(rows)
	if err := s.advance(ctx, run, models.ImportProcessing, &models.ImportLogUpdate{TotalRows: &total}); err != nil {
		return nil, err
	}

	if missing := missingHeaders(headers, mappings); len(missing) > 0 {
		msg := fmt.Sprintf("Schema mismatch: Required source columns missing in file: %s.", strings.Join(missing, ", "))
		if s.schemaStrict {
			s.fail(ctx, run, &models.ErrorDetails{Message: msg, MissingHeaders: missing})
			return nil, apperrors.Validation("%s", msg)
		}
		entry.WithField("missing", missing).Warn("mapped source columns missing in file")
		s.audit.LogAction(userRef(req.UserID), models.ActionImportSchemaWarning, map[string]any{
			"topicId":        topic.ID.String(),
			"importLogId":    run.log.ID.String(),
			"missingColumns": missing,
		}, req.IP, models.LogStatusFailure, "")
	}

	if err := s.engine.EnsureTableExists(ctx, topic.Target, mappings); err != nil {
		entry.WithError(err).Error("failed to ensure target table")
		s.fail(ctx, run, &models.ErrorDetails{Message: "Failed to ensure target DB/Table: " + err.Error()})
		s.audit.LogAction(userRef(req.UserID), models.ActionTargetTableEnsureFailed, map[string]any{
			"topicId":     topic.ID.String(),
			"importLogId": run.log.ID.String(),
		}, req.IP, models.LogStatusFailure, err.Error())
		return nil, err
	}

	batch, err := s.engine.InsertBatch(ctx, topic.Target, rows, mappings)
	if err != nil {
		entry.WithError(err).Error("batch insert could not start")
		return nil, err
	}

	status := models.FinalImportStatus(batch.SuccessCount, batch.FailCount)
	samples := batch.Failures
	if len(samples) > failedSampleSize {
		samples = samples[:failedSampleSize]
	}
	var details *models.ErrorDetails
	if batch.FailCount > 0 {
		details = &models.ErrorDetails{
			Message:      fmt.Sprintf("%d records failed to import.", batch.FailCount),
			SampleErrors: samples,
		}
		if batch.BatchError != "" {
			details.Message += " Batch transaction error: " + batch.BatchError
		}
	}
	if err := s.advance(ctx, run, status, &models.ImportLogUpdate{
		SuccessfulRows: &batch.SuccessCount,
		FailedRows:     &batch.FailCount,
		ErrorDetails:   details,
	}); err != nil {
		return nil, err
	}

	if len(batch.Failures) > 0 {
		if _, err := s.failedRows.InsertMany(ledgerContext(ctx), run.log.ID, batch.Failures); err != nil {
			entry.WithError(err).Error("failed to store failed import rows")
		}
	}

	event := events.NewEvent(events.TypeImportFinalized, topic.ID, req.UserID, map[string]any{
		"importLogId":          run.log.ID.String(),
		"status":               string(status),
		"totalRows":            total,
		"successfullyImported": batch.SuccessCount,
		"failedCount":          batch.FailCount,
	})
	if err := s.publisher.Publish(ledgerContext(ctx), event); err != nil {
		entry.WithError(err).Warn("failed to publish import event")
	}

	auditStatus := models.LogStatusSuccess
	if batch.FailCount > 0 {
		auditStatus = models.LogStatusFailure
	}
	s.audit.LogAction(userRef(req.UserID), models.ActionFileImport, map[string]any{
		"topicId":              topic.ID.String(),
		"importLogId":          run.log.ID.String(),
		"status":               string(status),
		"successfullyImported": batch.SuccessCount,
		"failedCount":          batch.FailCount,
	}, req.IP, auditStatus, batch.BatchError)

	entry.WithFields(logrus.Fields{
		"status":  status,
		"success": batch.SuccessCount,
		"failed":  batch.FailCount,
	}).Info("import finished")

	if samples == nil {
		samples = []models.RowFailure{}
	}
	return &ImportResult{
		ImportLogID:          run.log.ID,
		Status:               status,
		Message:              importMessage(status, batch.SuccessCount, batch.FailCount),
		SuccessfullyImported: batch.SuccessCount,
		FailedCount:          batch.FailCount,
		FailedSamples:        samples,
	}, nil
}

// advance moves the ledger entry to status. A guarded update that matches no
// row means the entry left the expected state elsewhere.
func (s *ImportService) advance(ctx context.Context, run *importRun, status models.ImportStatus, u *models.ImportLogUpdate) error {
	update := models.ImportLogUpdate{}
	if u != nil {
		update = *u
	}
	update.ID = run.log.ID
	update.FromStatus = run.status
	update.Status = status

	ok, err := s.importLogs.Update(ledgerContext(ctx), update)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	if !ok {
		return apperrors.Internal(nil, "import log %s is no longer %s", run.log.ID, run.status)
	}
	run.status = status
	run.finalized = status.IsTerminal()
	return nil
}

// fail finalizes the entry as FAILED. Errors are logged; the caller already
// has a more useful error to return.
func (s *ImportService) fail(ctx context.Context, run *importRun, details *models.ErrorDetails) {
	if run.finalized {
		return
	}
	if err := s.advance(ctx, run, models.ImportFailed, &models.ImportLogUpdate{ErrorDetails: details}); err != nil {
		logger.Log.WithError(err).WithField("import_log_id", run.log.ID).Error("failed to finalize import log")
		run.finalized = true
	}
}

// ledgerContext keeps ledger writes alive after the client disconnects, so an
// aborted request still leaves a terminal entry behind.
func ledgerContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func missingHeaders(headers []string, mappings []models.ColumnMapping) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, m := range mappings {
		if _, ok := present[m.SourceColumnName]; !ok {
			missing = append(missing, m.SourceColumnName)
		}
	}
	return missing
}

func importMessage(status models.ImportStatus, success, failed int) string {
	if status == models.ImportCompleted {
		return fmt.Sprintf("Import completed successfully. %d records imported.", success)
	}
	return fmt.Sprintf("Import %s. %d records imported, %d records failed.", strings.ToLower(string(status)), success, failed)
}
