package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

const auditTimeout = 5 * time.Second

// AuditService writes system log entries in the background. A failed write is
// logged and otherwise ignored.
type AuditService struct {
	store   SystemLogStore
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAuditService(store SystemLogStore) *AuditService {
	return &AuditService{store: store, timeout: auditTimeout}
}

func (s *AuditService) LogAction(userID *uuid.UUID, action string, details map[string]any, ip, status, errMsg string) {
	if s == nil || s.store == nil {
		return
	}

	entry := &models.SystemLog{
		UserID:     userID,
		ActionType: action,
		Details:    details,
		Status:     status,
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithField("action", action).Errorf("audit write panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.Create(ctx, entry); err != nil {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"action": action,
				"status": status,
			}).Warn("failed to write audit log")
		}
	}()
}

// Wait blocks until every pending write has finished. Called on shutdown.
func (s *AuditService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func userRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
