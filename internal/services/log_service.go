package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

const (
	defaultLogLimit       = 10
	defaultAdminLogLimit  = 20
	defaultFailedRowLimit = 100
)

type LogService struct {
	importLogs ImportLogStore
	failedRows FailedRowStore
	deletions  DeletionLogStore
	systemLogs SystemLogStore
	perms      *PermissionService
}

func NewLogService(importLogs ImportLogStore, failedRows FailedRowStore, deletions DeletionLogStore, systemLogs SystemLogStore, perms *PermissionService) *LogService {
	return &LogService{importLogs: importLogs, failedRows: failedRows, deletions: deletions, systemLogs: systemLogs, perms: perms}
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	Count       int64 `json:"count"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
}

func pageOf[T any](items []T, count int64, page, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:       items,
		Count:       count,
		TotalPages:  (count + int64(limit) - 1) / int64(limit),
		CurrentPage: page,
	}
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

// MyImportLogs lists the caller's own import logs, newest first unless asked otherwise.
func (s *LogService) MyImportLogs(ctx context.Context, userID uuid.UUID, f models.ImportLogFilter, page int) (*Page[models.ImportLog], error) {
	page, f.Limit = normalizePage(page, f.Limit, defaultLogLimit)
	f.UserID = userID
	f.Offset = (page - 1) * f.Limit

	logs, count, err := s.importLogs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	return pageOf(logs, count, page, f.Limit), nil
}

// ImportLogs lists every user's import logs unless f.UserID narrows it.
// Callers are admins; the route enforces that.
func (s *LogService) ImportLogs(ctx context.Context, f models.ImportLogFilter, page int) (*Page[models.ImportLog], error) {
	page, f.Limit = normalizePage(page, f.Limit, defaultAdminLogLimit)
	f.Offset = (page - 1) * f.Limit

	logs, count, err := s.importLogs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	return pageOf(logs, count, page, f.Limit), nil
}

// SystemLogs pages through the audit trail.
func (s *LogService) SystemLogs(ctx context.Context, f models.SystemLogFilter, page int) (*Page[models.SystemLog], error) {
	page, f.Limit = normalizePage(page, f.Limit, defaultAdminLogLimit)
	f.Offset = (page - 1) * f.Limit

	logs, count, err := s.systemLogs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list system logs: %w", err)
	}
	return pageOf(logs, count, page, f.Limit), nil
}

// FailedRows returns the failed rows of an import log in file order. Only the
// log's owner and admins may read them; anyone else gets NotFound.
func (s *LogService) FailedRows(ctx context.Context, userID, importLogID uuid.UUID, limit int) ([]models.FailedImportRow, error) {
	notFound := apperrors.NotFound("Import log not found or access denied.")

	log, err := s.importLogs.GetByID(ctx, importLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import log: %w", err)
	}
	if log == nil {
		return nil, notFound
	}
	if log.UserID != userID {
		admin, err := s.perms.IsAdmin(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, notFound
		}
	}

	if limit < 1 {
		limit = defaultFailedRowLimit
	}
	rows, err := s.failedRows.ListByImportLog(ctx, importLogID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed rows: %w", err)
	}
	if rows == nil {
		rows = []models.FailedImportRow{}
	}
	return rows, nil
}

// DeletionLogs needs view or delete permission on the topic.
func (s *LogService) DeletionLogs(ctx context.Context, userID uuid.UUID, f models.DeletionLogFilter) ([]models.DeletionLog, error) {
	if err := s.perms.CheckAny(ctx, userID, f.TopicID, models.CapabilityViewData, models.CapabilityDelete); err != nil {
		return nil, err
	}
	logs, err := s.deletions.ListByTopic(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list deletion logs: %w", err)
	}
	if logs == nil {
		logs = []models.DeletionLog{}
	}
	return logs, nil
}
