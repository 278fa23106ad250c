package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DialectMySQL     = "mysql"
	DialectPostgres  = "postgres"
	DialectSQLServer = "sqlserver"
	DialectSQLite    = "sqlite"
)

// TargetDescriptor fully determines where a topic's imports land.
type TargetDescriptor struct {
	Dialect  string `json:"dialect"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Table    string `json:"table"`
	User     string `json:"user"`
	Password string `json:"-"`
}

// Normalize fills the dialect and port defaults.
func (d *TargetDescriptor) Normalize() {
	d.Dialect = strings.ToLower(strings.TrimSpace(d.Dialect))
	if d.Dialect == "" {
		d.Dialect = DialectMySQL
	}
	if d.Port == 0 {
		switch d.Dialect {
		case DialectMySQL:
			d.Port = 3306
		case DialectPostgres:
			d.Port = 5432
		case DialectSQLServer:
			d.Port = 1433
		}
	}
}

type Topic struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Target      TargetDescriptor `json:"target"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Mappings    []ColumnMapping  `json:"mappings,omitempty"`
}

func (t *Topic) Prepare() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Name = strings.TrimSpace(t.Name)
	t.Target.Normalize()
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}
