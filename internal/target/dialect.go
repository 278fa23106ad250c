// Package target runs every operation against a topic's external table:
// schema provisioning, batch inserts, paginated reads, batch deletes and
// snapshot fetches. Each call opens its own connection from the topic's
// descriptor and closes it before returning.
package target

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

// Dialect hides the SQL and driver differences between target engines.
type Dialect interface {
	Name() string
	DriverName() string
	// DSN builds the driver connection string. withDatabase=false connects to
	// the server without selecting the topic's database.
	DSN(desc models.TargetDescriptor, opts Options, withDatabase bool) (string, error)

	QuoteIdent(name string) string
	QuoteString(value string) string
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string
	// TextExpr renders a column as text so LIKE filters work on any type.
	TextExpr(quotedColumn string) string

	EnsureDatabase(ctx context.Context, conn *sql.Conn, name string) error
	CreateTableSQL(quotedTable, body string) string
	CreateIndexSQL(quotedTable, quotedIndex, quotedColumn string) string
	IsDuplicateIndex(err error) bool

	// Paginate returns the clause that follows ORDER BY, its arguments, and
	// whether the dialect needs an ORDER BY to be present.
	Paginate(next, limit, offset int) (clause string, args []any, needsOrder bool)

	// Savepoint statements isolate a failed row in engines whose transactions
	// abort on the first statement error. Empty strings mean not needed.
	SavepointSQL(name string) string
	RollbackToSavepointSQL(name string) string
	ReleaseSavepointSQL(name string) string

	// Classify maps a driver error to an error kind, KindInternal when unknown.
	Classify(err error) apperrors.Kind
	// TxAborted reports statement errors after which the server has already
	// rolled back the whole transaction.
	TxAborted(err error) bool
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes a dialect available by name. Dialect files call it from init.
func RegisterDialect(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[d.Name()] = d
}

func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, apperrors.Validation("unsupported target dialect %q", name)
	}
	return d, nil
}

// Dialects lists the registered dialect names.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func savepointName(i int) string {
	return fmt.Sprintf("row_%d", i)
}
