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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

const (
	pgUndefinedTable    = "42P01"
	pgUndefinedColumn   = "42703"
	pgDuplicateDatabase = "42P04"
	pgInvalidCatalog    = "3D000"
)

type postgresDialect struct{}

func init() {
	RegisterDialect(postgresDialect{})
}

func (postgresDialect) Name() string       { return models.DialectPostgres }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) DSN(desc models.TargetDescriptor, opts Options, withDatabase bool) (string, error) {
	if desc.Host == "" {
		return "", errors.New("target host is required")
	}
	database := "postgres"
	if withDatabase {
		database = desc.Database
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	q.Set("connect_timeout", strconv.Itoa(int(opts.connectTimeout().Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(desc.User, desc.Password),
		Host:     net.JoinHostPort(desc.Host, strconv.Itoa(desc.Port)),
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (postgresDialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (postgresDialect) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) TextExpr(quotedColumn string) string { return quotedColumn + "::text" }

// EnsureDatabase checks pg_database first because CREATE DATABASE has no IF NOT EXISTS.
func (d postgresDialect) EnsureDatabase(ctx context.Context, conn *sql.Conn, name string) error {
	if !ValidIdentifier(name) {
		return apperrors.Validation("invalid target database name %q", name)
	}
	var exists bool
	err := conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if exists {
		return nil
	}
	_, err = conn.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s ENCODING 'UTF8'", d.QuoteIdent(name)))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
		return nil
	}
	return err
}

func (postgresDialect) CreateTableSQL(quotedTable, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", quotedTable, body)
}

func (postgresDialect) CreateIndexSQL(quotedTable, quotedIndex, quotedColumn string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quotedIndex, quotedTable, quotedColumn)
}

func (postgresDialect) IsDuplicateIndex(error) bool { return false }

func (d postgresDialect) Paginate(next, limit, offset int) (string, []any, bool) {
	return fmt.Sprintf("LIMIT %s OFFSET %s", d.Placeholder(next), d.Placeholder(next+1)), []any{limit, offset}, false
}

func (postgresDialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }
func (postgresDialect) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}
func (postgresDialect) ReleaseSavepointSQL(name string) string { return "RELEASE SAVEPOINT " + name }

func (postgresDialect) Classify(err error) apperrors.Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUndefinedTable, pgErr.Code == pgUndefinedColumn:
			return apperrors.KindTargetSchema
		case pgErr.Code == pgInvalidCatalog, strings.HasPrefix(pgErr.Code, "28"), strings.HasPrefix(pgErr.Code, "08"):
			return apperrors.KindTargetConnection
		}
		return apperrors.KindInternal
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return apperrors.KindTargetConnection
	}
	return apperrors.KindInternal
}

// TxAborted is always false: rows run under savepoints, so a failed statement
// leaves the transaction usable.
func (postgresDialect) TxAborted(error) bool { return false }
