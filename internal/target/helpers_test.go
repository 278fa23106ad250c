package target

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

func init() {
	logger.Silence()
}

func strPtr(s string) *string { return &s }

func newTestEngine() *Engine {
	return NewEngine(Options{ConnectTimeout: 5 * time.Second})
}

func sqliteTarget(t *testing.T, table string) models.TargetDescriptor {
	t.Helper()
	return models.TargetDescriptor{
		Dialect:  models.DialectSQLite,
		Database: filepath.Join(t.TempDir(), "target.db"),
		Table:    table,
	}
}

// orderMappings is the ID/Amount example plus a date and an indexed column.
func orderMappings() []models.ColumnMapping {
	return []models.ColumnMapping{
		{SourceColumnName: "ID", TargetColumnName: "id", DataType: "INT", IsPrimaryKey: true},
		{SourceColumnName: "Amount", TargetColumnName: "amount", DataType: "DECIMAL(10,2)", AllowNull: true},
		{SourceColumnName: "Order Date", TargetColumnName: "order_date", DataType: "DATE", AllowNull: true},
		{SourceColumnName: "Customer", TargetColumnName: "customer", DataType: "VARCHAR(100)", IsIndex: true, AllowNull: true},
	}
}

func row(n int, values map[string]any) models.SourceRow {
	return models.SourceRow{RowNumber: n, Values: values}
}

func provision(t *testing.T, e *Engine, desc models.TargetDescriptor, mappings []models.ColumnMapping) {
	t.Helper()
	require.NoError(t, e.EnsureTableExists(context.Background(), desc, mappings))
}

func countRows(t *testing.T, e *Engine, desc models.TargetDescriptor, mappings []models.ColumnMapping) int64 {
	t.Helper()
	res, err := e.Query(context.Background(), desc, mappings, QueryOptions{Limit: 1})
	require.NoError(t, err)
	return res.Total
}
