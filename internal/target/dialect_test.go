package target

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

func TestLookupDialect(t *testing.T) {
	t.Parallel()

	for _, name := range []string{models.DialectMySQL, models.DialectPostgres, models.DialectSQLServer, models.DialectSQLite} {
		d, err := LookupDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name())
		assert.Contains(t, Dialects(), name)
	}

	_, err := LookupDialect("oracle")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDSN(t *testing.T) {
	t.Parallel()

	desc := models.TargetDescriptor{Host: "db.local", Port: 1234, Database: "sales", User: "app", Password: "p@ss:word"}
	opts := Options{ConnectTimeout: 7 * time.Second}

	t.Run("mysql", func(t *testing.T) {
		dsn, err := mysqlDialect{}.DSN(desc, opts, true)
		require.NoError(t, err)
		cfg, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "db.local:1234", cfg.Addr)
		assert.Equal(t, "sales", cfg.DBName)
		assert.Equal(t, "p@ss:word", cfg.Passwd)
		assert.Equal(t, 7*time.Second, cfg.Timeout)

		dsn, err = mysqlDialect{}.DSN(desc, opts, false)
		require.NoError(t, err)
		cfg, err = mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Empty(t, cfg.DBName)
	})

	t.Run("postgres", func(t *testing.T) {
		dsn, err := postgresDialect{}.DSN(desc, opts, false)
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "/postgres", u.Path)
		assert.Equal(t, "7", u.Query().Get("connect_timeout"))
		pw, _ := u.User.Password()
		assert.Equal(t, "p@ss:word", pw)
	})

	t.Run("sqlserver", func(t *testing.T) {
		dsn, err := sqlServerDialect{}.DSN(desc, opts, true)
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "sales", u.Query().Get("database"))
		assert.Equal(t, "db.local:1234", u.Host)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := mysqlDialect{}.DSN(models.TargetDescriptor{}, opts, true)
		assert.Error(t, err)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn, err := sqliteDialect{}.DSN(models.TargetDescriptor{Database: "/tmp/x.db"}, opts, true)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(dsn, "/tmp/x.db?_pragma=busy_timeout(7000)"), dsn)
	})
}

func TestQuoting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`a``b`", mysqlDialect{}.QuoteIdent("a`b"))
	assert.Equal(t, `"a""b"`, postgresDialect{}.QuoteIdent(`a"b`))
	assert.Equal(t, "[a]]b]", sqlServerDialect{}.QuoteIdent("a]b"))
	assert.Equal(t, "`a``b`", sqliteDialect{}.QuoteIdent("a`b"))
	assert.Equal(t, "N'it''s'", sqlServerDialect{}.QuoteString("it's"))
	assert.Equal(t, "$3", postgresDialect{}.Placeholder(3))
	assert.Equal(t, "@p2", sqlServerDialect{}.Placeholder(2))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Dialect
		err  error
		want apperrors.Kind
	}{
		{"mysql access denied", mysqlDialect{}, &mysql.MySQLError{Number: 1045}, apperrors.KindTargetConnection},
		{"mysql unknown db", mysqlDialect{}, &mysql.MySQLError{Number: 1049}, apperrors.KindTargetConnection},
		{"mysql no table", mysqlDialect{}, fmt.Errorf("query: %w", &mysql.MySQLError{Number: 1146}), apperrors.KindTargetSchema},
		{"mysql duplicate", mysqlDialect{}, &mysql.MySQLError{Number: 1062}, apperrors.KindInternal},
		{"mysql invalid conn", mysqlDialect{}, mysql.ErrInvalidConn, apperrors.KindTargetConnection},
		{"postgres undefined table", postgresDialect{}, &pgconn.PgError{Code: "42P01"}, apperrors.KindTargetSchema},
		{"postgres auth", postgresDialect{}, &pgconn.PgError{Code: "28P01"}, apperrors.KindTargetConnection},
		{"postgres unknown db", postgresDialect{}, &pgconn.PgError{Code: "3D000"}, apperrors.KindTargetConnection},
		{"postgres unique", postgresDialect{}, &pgconn.PgError{Code: "23505"}, apperrors.KindInternal},
		{"sqlite no table", sqliteDialect{}, errors.New("SQL logic error: no such table: x (1)"), apperrors.KindTargetSchema},
		{"sqlite no column", sqliteDialect{}, errors.New("SQL logic error: no such column: amount (1)"), apperrors.KindTargetSchema},
		{"mysql unknown column", mysqlDialect{}, &mysql.MySQLError{Number: 1054}, apperrors.KindTargetSchema},
		{"postgres undefined column", postgresDialect{}, &pgconn.PgError{Code: "42703"}, apperrors.KindTargetSchema},
		{"sqlserver invalid column", sqlServerDialect{}, mssql.Error{Number: 207}, apperrors.KindTargetSchema},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.d.Classify(tt.err))
		})
	}
}

func TestClassifyFallsBackAndDetectsConnectionLoss(t *testing.T) {
	t.Parallel()

	err := classify(sqliteDialect{}, errors.New("boom"), apperrors.KindProvisioning, "create %s", "t")
	assert.ErrorIs(t, err, apperrors.ErrProvisioning)

	err = classify(sqliteDialect{}, fmt.Errorf("write: %w", io.ErrUnexpectedEOF), apperrors.KindInternal, "read")
	assert.ErrorIs(t, err, apperrors.ErrTargetConnection)

	assert.True(t, isConnectionLoss(fmt.Errorf("exec: %w", driver.ErrBadConn)))
	assert.False(t, isConnectionLoss(errors.New("UNIQUE constraint failed")))
	assert.Nil(t, classify(sqliteDialect{}, nil, apperrors.KindInternal, "noop"))
}

func TestTxAbortedIsBatchFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		d    Dialect
		err  error
		want bool
	}{
		{"mysql deadlock", mysqlDialect{}, &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait timeout", mysqlDialect{}, fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1205}), true},
		{"mysql duplicate key", mysqlDialect{}, &mysql.MySQLError{Number: 1062}, false},
		{"sqlserver deadlock victim", sqlServerDialect{}, mssql.Error{Number: 1205}, true},
		{"sqlserver duplicate key", sqlServerDialect{}, mssql.Error{Number: 2627}, false},
		{"postgres deadlock under savepoint", postgresDialect{}, &pgconn.PgError{Code: "40P01"}, false},
		{"sqlite constraint", sqliteDialect{}, errors.New("UNIQUE constraint failed: orders.id"), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.d.TxAborted(tt.err))
			assert.Equal(t, tt.want, isBatchFatal(ctx, tt.d, tt.err))
		})
	}
}
