package models

import (
	"strings"

	"github.com/google/uuid"
)

const DefaultDataType = "VARCHAR(255)"

// ColumnMapping binds one source header to one target column. The ordered
// mappings of a topic are the target table's schema.
type ColumnMapping struct {
	ID               uuid.UUID `json:"id"`
	TopicID          uuid.UUID `json:"topic_id"`
	SourceColumnName string    `json:"source_column_name"`
	TargetColumnName string    `json:"target_column_name"`
	DataType         string    `json:"data_type"`
	IsPrimaryKey     bool      `json:"is_primary_key"`
	IsIndex          bool      `json:"is_index"`
	AllowNull        bool      `json:"allow_null"`
	DefaultValue     *string   `json:"default_value,omitempty"`
	Position         int       `json:"position"`
}

func (m *ColumnMapping) Prepare() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.SourceColumnName = strings.TrimSpace(m.SourceColumnName)
	m.TargetColumnName = strings.TrimSpace(m.TargetColumnName)
	if strings.TrimSpace(m.DataType) == "" {
		m.DataType = DefaultDataType
	}
}

// ColumnType returns the declared type, falling back to VARCHAR(255).
func (m ColumnMapping) ColumnType() string {
	if t := strings.TrimSpace(m.DataType); t != "" {
		return t
	}
	return DefaultDataType
}

// PrimaryKeys returns the PK mappings in mapping order.
func PrimaryKeys(mappings []ColumnMapping) []ColumnMapping {
	var pks []ColumnMapping
	for _, m := range mappings {
		if m.IsPrimaryKey {
			pks = append(pks, m)
		}
	}
	return pks
}

// TargetColumns returns the target column names in mapping order.
func TargetColumns(mappings []ColumnMapping) []string {
	cols := make([]string, len(mappings))
	for i, m := range mappings {
		cols[i] = m.TargetColumnName
	}
	return cols
}

// IdentityMappings maps every target column onto itself, keeping types and
// constraints. Used to replay stored snapshots.
func IdentityMappings(mappings []ColumnMapping) []ColumnMapping {
	out := make([]ColumnMapping, len(mappings))
	for i, m := range mappings {
		m.SourceColumnName = m.TargetColumnName
		out[i] = m
	}
	return out
}
