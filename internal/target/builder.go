package target

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

const maxIdentifierLength = 64

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)
	dataTypePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*( [A-Za-z][A-Za-z0-9_]*)*(\(\s*\d+\s*(,\s*\d+\s*)?\))?( [A-Za-z][A-Za-z0-9_]*)*$`)
)

// ValidIdentifier checks a table or column name before it is ever interpolated.
func ValidIdentifier(name string) bool {
	return name != "" && len(name) <= maxIdentifierLength && identifierPattern.MatchString(name)
}

// ValidDataType accepts forms like INT, VARCHAR(255), DECIMAL(10,2),
// DOUBLE PRECISION and INT UNSIGNED.
func ValidDataType(dataType string) bool {
	return dataTypePattern.MatchString(strings.TrimSpace(dataType))
}

// ValidateMappings checks the identifier and uniqueness rules of a mapping set.
func ValidateMappings(table string, mappings []models.ColumnMapping) error {
	if !ValidIdentifier(table) {
		return apperrors.Validation("invalid target table name %q", table)
	}
	if len(mappings) == 0 {
		return apperrors.Validation("no column mappings defined")
	}
	sources := make(map[string]struct{}, len(mappings))
	targets := make(map[string]struct{}, len(mappings))
	for i, m := range mappings {
		if m.SourceColumnName == "" {
			return apperrors.Validation("mapping %d: source column name is required", i+1)
		}
		if !ValidIdentifier(m.TargetColumnName) {
			return apperrors.Validation("mapping %d: invalid target column name %q", i+1, m.TargetColumnName)
		}
		if !ValidDataType(m.ColumnType()) {
			return apperrors.Validation("mapping %d: invalid data type %q", i+1, m.DataType)
		}
		if _, dup := sources[m.SourceColumnName]; dup {
			return apperrors.Validation("duplicate source column %q", m.SourceColumnName)
		}
		if _, dup := targets[m.TargetColumnName]; dup {
			return apperrors.Validation("duplicate target column %q", m.TargetColumnName)
		}
		sources[m.SourceColumnName] = struct{}{}
		targets[m.TargetColumnName] = struct{}{}
	}
	return nil
}

// builder is the only place that writes identifiers into SQL. It only accepts
// the table and columns of a validated mapping set; values are always bound.
type builder struct {
	d        Dialect
	table    string
	mappings []models.ColumnMapping
	allowed  map[string]struct{}
}

func newBuilder(d Dialect, table string, mappings []models.ColumnMapping) (*builder, error) {
	if err := ValidateMappings(table, mappings); err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		allowed[m.TargetColumnName] = struct{}{}
	}
	return &builder{d: d, table: table, mappings: mappings, allowed: allowed}, nil
}

func (b *builder) allows(column string) bool {
	_, ok := b.allowed[column]
	return ok
}

func (b *builder) quotedTable() string {
	return b.d.QuoteIdent(b.table)
}

func (b *builder) columnList() string {
	cols := make([]string, len(b.mappings))
	for i, m := range b.mappings {
		cols[i] = b.d.QuoteIdent(m.TargetColumnName)
	}
	return strings.Join(cols, ", ")
}

func (b *builder) placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = b.d.Placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}

func (b *builder) createTable() string {
	var defs []string
	var pks []string
	for _, m := range b.mappings {
		def := fmt.Sprintf("  %s %s", b.d.QuoteIdent(m.TargetColumnName), m.ColumnType())
		if !m.AllowNull {
			def += " NOT NULL"
		}
		if m.DefaultValue != nil {
			def += " DEFAULT " + b.defaultLiteral(m)
		}
		defs = append(defs, def)
		if m.IsPrimaryKey {
			pks = append(pks, b.d.QuoteIdent(m.TargetColumnName))
		}
	}
	if len(pks) > 0 {
		defs = append(defs, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	body := "(\n" + strings.Join(defs, ",\n") + "\n)"
	return b.d.CreateTableSQL(b.quotedTable(), body)
}

// defaultLiteral leaves numbers bare for numeric columns and quotes everything else.
func (b *builder) defaultLiteral(m models.ColumnMapping) string {
	value := *m.DefaultValue
	if isNumericType(m.ColumnType()) {
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return strings.TrimSpace(value)
		}
	}
	return b.d.QuoteString(value)
}

func isNumericType(dataType string) bool {
	upper := strings.ToUpper(dataType)
	for _, t := range []string{"INT", "DECIMAL", "FLOAT", "DOUBLE"} {
		if strings.Contains(upper, t) {
			return true
		}
	}
	return false
}

type indexDDL struct {
	name   string
	column string
	sql    string
}

func indexName(table, column string) string {
	name := "idx_" + table + "_" + column
	if len(name) > maxIdentifierLength {
		name = name[:maxIdentifierLength]
	}
	return name
}

func (b *builder) indexes() []indexDDL {
	var out []indexDDL
	for _, m := range b.mappings {
		if !m.IsIndex || m.IsPrimaryKey {
			continue
		}
		name := indexName(b.table, m.TargetColumnName)
		out = append(out, indexDDL{
			name:   name,
			column: m.TargetColumnName,
			sql:    b.d.CreateIndexSQL(b.quotedTable(), b.d.QuoteIdent(name), b.d.QuoteIdent(m.TargetColumnName)),
		})
	}
	return out
}

func (b *builder) insert() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.quotedTable(), b.columnList(), b.placeholders(1, len(b.mappings)))
}

// where builds the AND-combined LIKE clause for allowed filters. Unknown
// columns are dropped.
func (b *builder) where(filters []Filter) (string, []any) {
	var clauses []string
	var args []any
	for _, f := range filters {
		if !b.allows(f.Column) {
			continue
		}
		args = append(args, "%"+f.Value+"%")
		clauses = append(clauses, fmt.Sprintf("%s LIKE %s", b.d.TextExpr(b.d.QuoteIdent(f.Column)), b.d.Placeholder(len(args))))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *builder) orderBy(sortBy, sortOrder string) string {
	if sortBy == "" || !b.allows(sortBy) {
		return ""
	}
	dir := "ASC"
	if sortOrder == "DESC" {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", b.d.QuoteIdent(sortBy), dir)
}

func (b *builder) selectPage(opts QueryOptions) (string, []any) {
	where, args := b.where(opts.Filters)
	order := b.orderBy(opts.SortBy, opts.SortOrder)
	page, pageArgs, needsOrder := b.d.Paginate(len(args)+1, opts.Limit, (opts.Page-1)*opts.Limit)
	if order == "" && needsOrder {
		order = " ORDER BY (SELECT NULL)"
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s%s %s", b.columnList(), b.quotedTable(), where, order, page)
	return query, append(args, pageArgs...)
}

func (b *builder) count(filters []Filter) (string, []any) {
	where, args := b.where(filters)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.quotedTable(), where), args
}

func (b *builder) deleteByPK(pkColumn string) (string, error) {
	if !b.allows(pkColumn) {
		return "", apperrors.Validation("column %q is not mapped", pkColumn)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		b.quotedTable(), b.d.QuoteIdent(pkColumn), b.d.Placeholder(1)), nil
}

func (b *builder) selectByPK(pkColumn string, n int) (string, error) {
	if !b.allows(pkColumn) {
		return "", apperrors.Validation("column %q is not mapped", pkColumn)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		b.columnList(), b.quotedTable(), b.d.QuoteIdent(pkColumn), b.placeholders(1, n)), nil
}
