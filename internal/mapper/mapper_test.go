package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topic_importer/internal/models"
)

func strPtr(s string) *string { return &s }

func testMappings() []models.ColumnMapping {
	return []models.ColumnMapping{
		{SourceColumnName: "ID", TargetColumnName: "id", DataType: "INT", IsPrimaryKey: true},
		{SourceColumnName: "Name", TargetColumnName: "name", AllowNull: true},
		{SourceColumnName: "Code", TargetColumnName: "code", AllowNull: false},
	}
}

func TestMapOrdersValuesByMapping(t *testing.T) {
	t.Parallel()

	rows := []models.SourceRow{
		{RowNumber: 1, Values: map[string]any{"Code": "A", "Name": "Alpha", "ID": "1"}},
	}

	prepared, rejected := Map(rows, testMappings())

	require.Empty(t, rejected)
	require.Len(t, prepared, 1)
	assert.Equal(t, []any{"1", "Alpha", "A"}, prepared[0].Values)
	assert.Equal(t, 1, prepared[0].RowNumber)
}

func TestMapEmptyStringBecomesNullOnlyWhenAllowed(t *testing.T) {
	t.Parallel()

	rows := []models.SourceRow{
		{RowNumber: 4, Values: map[string]any{"ID": "2", "Name": "", "Code": ""}},
	}

	prepared, rejected := Map(rows, testMappings())

	require.Empty(t, rejected)
	assert.Nil(t, prepared[0].Values[1], "nullable column gets nil")
	assert.Equal(t, "", prepared[0].Values[2], "NOT NULL column keeps the empty string")
}

func TestMapRejectsMissingPrimaryKey(t *testing.T) {
	t.Parallel()

	rows := []models.SourceRow{
		{RowNumber: 1, Values: map[string]any{"ID": "1", "Name": "ok", "Code": "A"}},
		{RowNumber: 2, Values: map[string]any{"Name": "no id", "Code": "B"}},
	}

	prepared, rejected := Map(rows, testMappings())

	require.Len(t, prepared, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].RowNumber)
	assert.Equal(t, "Missing value for required (PK) source column: ID", rejected[0].ErrorMessage)
	assert.Equal(t, "no id", rejected[0].RowData["Name"])
}

func TestMapPrimaryKeyWithDefaultPassesThrough(t *testing.T) {
	t.Parallel()

	mappings := testMappings()
	mappings[0].DefaultValue = strPtr("0")
	rows := []models.SourceRow{{Values: map[string]any{"Code": "C"}}}

	prepared, rejected := Map(rows, mappings)

	assert.Empty(t, rejected)
	require.Len(t, prepared, 1)
	assert.Nil(t, prepared[0].Values[0])
	assert.Equal(t, 1, prepared[0].RowNumber, "row number falls back to position")
}

func TestMapMissingNonKeyPassesNil(t *testing.T) {
	t.Parallel()

	rows := []models.SourceRow{{RowNumber: 3, Values: map[string]any{"ID": "3"}}}

	prepared, rejected := Map(rows, testMappings())

	assert.Empty(t, rejected)
	assert.Equal(t, []any{"3", nil, nil}, prepared[0].Values)
}
