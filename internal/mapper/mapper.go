// Package mapper turns parsed file rows into ordered target-column values.
package mapper

import (
	"fmt"

	"topic_importer/internal/models"
)

// PreparedRow holds one row's values in mapping order.
type PreparedRow struct {
	RowNumber int
	Values    []any
	Source    models.SourceRow
}

// Map converts rows by the mappings. A row missing a primary-key value that
// has no default is rejected here and never reaches the database.
func Map(rows []models.SourceRow, mappings []models.ColumnMapping) ([]PreparedRow, []models.RowFailure) {
	prepared := make([]PreparedRow, 0, len(rows))
	var rejected []models.RowFailure

	for i, row := range rows {
		rowNumber := row.RowNumber
		if rowNumber == 0 {
			rowNumber = i + 1
		}

		values, missing := mapRow(row, mappings)
		if missing != "" {
			rejected = append(rejected, models.RowFailure{
				RowNumber:    rowNumber,
				RowData:      row.Values,
				ErrorMessage: fmt.Sprintf("Missing value for required (PK) source column: %s", missing),
			})
			continue
		}

		prepared = append(prepared, PreparedRow{RowNumber: rowNumber, Values: values, Source: row})
	}
	return prepared, rejected
}

// mapRow returns the values, or the name of the first missing PK source column.
func mapRow(row models.SourceRow, mappings []models.ColumnMapping) ([]any, string) {
	values := make([]any, len(mappings))
	for i, m := range mappings {
		value, present := row.Values[m.SourceColumnName]
		if !present && m.IsPrimaryKey && m.DefaultValue == nil {
			return nil, m.SourceColumnName
		}
		if s, ok := value.(string); ok && s == "" && m.AllowNull {
			value = nil
		}
		values[i] = value
	}
	return values, ""
}
