package target

import (
	"strings"
	"time"

	"topic_importer/internal/models"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var snapshotTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	dateTimeLayout,
	dateLayout,
}

// ReformatSnapshot prepares a stored snapshot for re-insertion: DATE columns
// become YYYY-MM-DD and DATETIME/TIMESTAMP columns become YYYY-MM-DD HH:MM:SS.
// Values that do not parse as times are kept unchanged.
func ReformatSnapshot(snapshot models.RowSnapshot, mappings []models.ColumnMapping) map[string]any {
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}

	for _, m := range mappings {
		value, ok := out[m.TargetColumnName]
		if !ok || value == nil {
			continue
		}
		upper := strings.ToUpper(m.ColumnType())
		switch {
		case strings.Contains(upper, "DATETIME") || strings.Contains(upper, "TIMESTAMP"):
			out[m.TargetColumnName] = formatTime(value, dateTimeLayout)
		case strings.Contains(upper, "DATE"):
			out[m.TargetColumnName] = formatTime(value, dateLayout)
		}
	}
	return out
}

// formatTime keeps the wall clock of the stored value; it does not shift zones.
func formatTime(value any, layout string) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format(layout)
	case string:
		s := strings.TrimSpace(v)
		for _, l := range snapshotTimeLayouts {
			if t, err := time.Parse(l, s); err == nil {
				return t.Format(layout)
			}
		}
	}
	return value
}
