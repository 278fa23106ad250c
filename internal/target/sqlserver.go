package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

// SQL Server error numbers.
const (
	mssqlErrInvalidObject  = 208
	mssqlErrInvalidColumn  = 207
	mssqlErrDeadlock       = 1205
	mssqlErrDuplicateIndex = 1913
	mssqlErrCannotOpenDB   = 4060
	mssqlErrLoginFailed    = 18456
)

type sqlServerDialect struct{}

func init() {
	RegisterDialect(sqlServerDialect{})
}

func (sqlServerDialect) Name() string       { return models.DialectSQLServer }
func (sqlServerDialect) DriverName() string { return "sqlserver" }

func (sqlServerDialect) DSN(desc models.TargetDescriptor, opts Options, withDatabase bool) (string, error) {
	if desc.Host == "" {
		return "", errors.New("target host is required")
	}
	q := url.Values{}
	q.Set("connection timeout", strconv.Itoa(int(opts.connectTimeout().Seconds())))
	if withDatabase {
		q.Set("database", desc.Database)
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(desc.User, desc.Password),
		Host:     net.JoinHostPort(desc.Host, strconv.Itoa(desc.Port)),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (sqlServerDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlServerDialect) QuoteString(value string) string {
	return "N'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (sqlServerDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlServerDialect) TextExpr(quotedColumn string) string {
	return "CAST(" + quotedColumn + " AS NVARCHAR(MAX))"
}

func (sqlServerDialect) EnsureDatabase(ctx context.Context, conn *sql.Conn, name string) error {
	if !ValidIdentifier(name) {
		return apperrors.Validation("invalid target database name %q", name)
	}
	const query = `DECLARE @db sysname = @p1;
IF DB_ID(@db) IS NULL
BEGIN
  DECLARE @stmt nvarchar(max) = N'CREATE DATABASE ' + QUOTENAME(@db);
  EXEC (@stmt);
END`
	_, err := conn.ExecContext(ctx, query, name)
	return err
}

// CreateTableSQL guards with OBJECT_ID since SQL Server lacks CREATE TABLE IF NOT EXISTS.
func (sqlServerDialect) CreateTableSQL(quotedTable, body string) string {
	literal := strings.ReplaceAll(quotedTable, "'", "''")
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s", literal, quotedTable, body)
}

func (sqlServerDialect) CreateIndexSQL(quotedTable, quotedIndex, quotedColumn string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quotedIndex, quotedTable, quotedColumn)
}

func (sqlServerDialect) IsDuplicateIndex(err error) bool {
	var msErr mssql.Error
	return errors.As(err, &msErr) && msErr.Number == mssqlErrDuplicateIndex
}

func (d sqlServerDialect) Paginate(next, limit, offset int) (string, []any, bool) {
	clause := fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", d.Placeholder(next), d.Placeholder(next+1))
	return clause, []any{offset, limit}, true
}

func (sqlServerDialect) SavepointSQL(name string) string { return "SAVE TRANSACTION " + name }
func (sqlServerDialect) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TRANSACTION " + name
}
func (sqlServerDialect) ReleaseSavepointSQL(string) string { return "" }

func (sqlServerDialect) Classify(err error) apperrors.Kind {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case mssqlErrLoginFailed, mssqlErrCannotOpenDB:
			return apperrors.KindTargetConnection
		case mssqlErrInvalidObject, mssqlErrInvalidColumn:
			return apperrors.KindTargetSchema
		}
	}
	return apperrors.KindInternal
}

// TxAborted reports a deadlock victim, whose transaction SQL Server rolls back.
func (sqlServerDialect) TxAborted(err error) bool {
	var msErr mssql.Error
	return errors.As(err, &msErr) && msErr.Number == mssqlErrDeadlock
}
