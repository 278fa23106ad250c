package target

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

type Options struct {
	ConnectTimeout time.Duration
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return o.ConnectTimeout
}

// Engine executes target operations. It holds no connections between calls.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// session is one short-lived connection to a topic target.
type session struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect
	desc    models.TargetDescriptor
}

func (s *session) Close() error {
	var connErr error
	if s.conn != nil {
		connErr = s.conn.Close()
	}
	return errors.Join(connErr, s.db.Close())
}

func (e *Engine) dialectFor(desc models.TargetDescriptor) (Dialect, models.TargetDescriptor, error) {
	desc.Normalize()
	d, err := LookupDialect(desc.Dialect)
	if err != nil {
		return nil, desc, err
	}
	return d, desc, nil
}

// open acquires a dedicated connection. Callers must defer Close.
func (e *Engine) open(ctx context.Context, desc models.TargetDescriptor, withDatabase bool) (*session, error) {
	d, desc, err := e.dialectFor(desc)
	if err != nil {
		return nil, err
	}

	dsn, err := d.DSN(desc, e.opts, withDatabase)
	if err != nil {
		return nil, apperrors.TargetConnection(err, "invalid target connection settings")
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, apperrors.TargetConnection(err, "failed to open %s target %s:%d", d.Name(), desc.Host, desc.Port)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	dialCtx, cancel := context.WithTimeout(ctx, e.opts.connectTimeout())
	defer cancel()

	conn, err := db.Conn(dialCtx)
	if err == nil {
		err = conn.PingContext(dialCtx)
	}
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		db.Close()
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"dialect":  d.Name(),
			"host":     desc.Host,
			"port":     desc.Port,
			"database": desc.Database,
		}).Warn("target connection failed")
		return nil, apperrors.TargetConnection(err, "failed to connect to %s target %s:%d", d.Name(), desc.Host, desc.Port)
	}

	return &session{db: db, conn: conn, dialect: d, desc: desc}, nil
}

func (s *session) close() {
	if err := s.Close(); err != nil {
		logger.Log.WithError(err).WithField("table", s.desc.Table).Warn("failed to close target connection")
	}
}

// classify wraps err into the taxonomy. fallback applies to errors neither
// the dialect nor the generic checks recognise.
func classify(d Dialect, err error, fallback apperrors.Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := d.Classify(err)
	if kind == apperrors.KindInternal && isConnectionLoss(err) {
		kind = apperrors.KindTargetConnection
	}
	if kind == apperrors.KindInternal {
		kind = fallback
	}
	msg := fmt.Sprintf(format, args...)
	switch kind {
	case apperrors.KindTargetConnection:
		return apperrors.TargetConnection(err, "%s", msg)
	case apperrors.KindTargetSchema:
		return apperrors.TargetSchema(err, "%s", msg)
	case apperrors.KindProvisioning:
		return apperrors.Provisioning(err, "%s", msg)
	default:
		return apperrors.Internal(err, "%s", msg)
	}
}

// isConnectionLoss reports errors after which the transaction cannot continue.
func isConnectionLoss(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isBatchFatal reports whether a statement error must abort the whole batch.
func isBatchFatal(ctx context.Context, d Dialect, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isConnectionLoss(err) || d.TxAborted(err) || d.Classify(err) == apperrors.KindTargetConnection
}
