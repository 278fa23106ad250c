package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

// sqliteDialect targets a database file. The descriptor's Database is the
// file path; host, port and credentials are ignored.
type sqliteDialect struct{}

func init() {
	RegisterDialect(sqliteDialect{})
}

func (sqliteDialect) Name() string       { return models.DialectSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DSN(desc models.TargetDescriptor, opts Options, _ bool) (string, error) {
	if desc.Database == "" {
		return "", errors.New("sqlite target needs a database file path")
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", desc.Database, opts.connectTimeout().Milliseconds()), nil
}

// QuoteIdent uses backticks: SQLite reads an unresolvable double-quoted name
// as a string literal.
func (sqliteDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (sqliteDialect) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) TextExpr(quotedColumn string) string { return quotedColumn }

// EnsureDatabase is a no-op: opening the file creates it.
func (sqliteDialect) EnsureDatabase(context.Context, *sql.Conn, string) error { return nil }

func (sqliteDialect) CreateTableSQL(quotedTable, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", quotedTable, body)
}

func (sqliteDialect) CreateIndexSQL(quotedTable, quotedIndex, quotedColumn string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quotedIndex, quotedTable, quotedColumn)
}

func (sqliteDialect) IsDuplicateIndex(error) bool { return false }

func (sqliteDialect) Paginate(next, limit, offset int) (string, []any, bool) {
	return "LIMIT ? OFFSET ?", []any{limit, offset}, false
}

func (sqliteDialect) SavepointSQL(string) string           { return "" }
func (sqliteDialect) RollbackToSavepointSQL(string) string { return "" }
func (sqliteDialect) ReleaseSavepointSQL(string) string    { return "" }

func (sqliteDialect) Classify(err error) apperrors.Kind {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_AUTH:
			return apperrors.KindTargetConnection
		}
	}
	if msg := err.Error(); strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		return apperrors.KindTargetSchema
	}
	return apperrors.KindInternal
}

func (sqliteDialect) TxAborted(error) bool { return false }
