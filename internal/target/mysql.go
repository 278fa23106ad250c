package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

// MySQL server error numbers.
const (
	mysqlErrDBAccessDenied = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrBadDB          = 1049
	mysqlErrBadField       = 1054
	mysqlErrDupKeyName     = 1061
	mysqlErrNoSuchTable    = 1146
	mysqlErrLockWait       = 1205
	mysqlErrDeadlock       = 1213
)

type mysqlDialect struct{}

func init() {
	RegisterDialect(mysqlDialect{})
}

func (mysqlDialect) Name() string       { return models.DialectMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(desc models.TargetDescriptor, opts Options, withDatabase bool) (string, error) {
	if desc.Host == "" {
		return "", errors.New("target host is required")
	}
	cfg := mysql.NewConfig()
	cfg.User = desc.User
	cfg.Passwd = desc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(desc.Host, strconv.Itoa(desc.Port))
	cfg.Timeout = opts.connectTimeout()
	cfg.Collation = "utf8mb4_unicode_ci"
	if withDatabase {
		cfg.DBName = desc.Database
	}
	return cfg.FormatDSN(), nil
}

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) QuoteString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) TextExpr(quotedColumn string) string { return quotedColumn }

func (d mysqlDialect) EnsureDatabase(ctx context.Context, conn *sql.Conn, name string) error {
	if !ValidIdentifier(name) {
		return apperrors.Validation("invalid target database name %q", name)
	}
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", d.QuoteIdent(name))
	_, err := conn.ExecContext(ctx, query)
	return err
}

func (mysqlDialect) CreateTableSQL(quotedTable, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci", quotedTable, body)
}

func (mysqlDialect) CreateIndexSQL(quotedTable, quotedIndex, quotedColumn string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s)", quotedTable, quotedIndex, quotedColumn)
}

func (mysqlDialect) IsDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupKeyName
}

func (mysqlDialect) Paginate(next, limit, offset int) (string, []any, bool) {
	return "LIMIT ? OFFSET ?", []any{limit, offset}, false
}

func (mysqlDialect) SavepointSQL(string) string           { return "" }
func (mysqlDialect) RollbackToSavepointSQL(string) string { return "" }
func (mysqlDialect) ReleaseSavepointSQL(string) string    { return "" }

func (mysqlDialect) Classify(err error) apperrors.Kind {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrAccessDenied, mysqlErrDBAccessDenied, mysqlErrBadDB:
			return apperrors.KindTargetConnection
		case mysqlErrNoSuchTable, mysqlErrBadField:
			return apperrors.KindTargetSchema
		}
		return apperrors.KindInternal
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return apperrors.KindTargetConnection
	}
	return apperrors.KindInternal
}

// TxAborted covers deadlocks, and lock wait timeouts for servers running with
// innodb_rollback_on_timeout. InnoDB rolls the whole transaction back for both.
func (mysqlDialect) TxAborted(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWait
}
