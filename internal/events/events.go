// Package events publishes ledger changes (finished imports, deletions,
// rollbacks) for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeImportFinalized    = "import.finalized"
	TypeRecordsDeleted     = "records.deleted"
	TypeDeletionRolledBack = "deletion.rolled_back"
)

const source = "topic-importer"

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	TopicID   uuid.UUID      `json:"topic_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEvent(eventType string, topicID, userID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		TopicID:   topicID,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
