package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"topic_importer/internal/logger"
)

const gormSlowQuery = 200 * time.Millisecond

// OpenGorm returns a gorm handle that borrows connections from pool, so the
// gorm repositories and the pgx repositories share one connection budget.
// Driver errors are translated, so unique violations surface as
// gorm.ErrDuplicatedKey.
func OpenGorm(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         NewGormLogger(logger.Log, gormlogger.Warn),
		TranslateError: true,
	})
}

// GormLogger writes gorm's statement log through logrus.
type GormLogger struct {
	log   *logrus.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewGormLogger(log *logrus.Logger, level gormlogger.LogLevel) *GormLogger {
	return &GormLogger{log: log, level: level, slow: gormSlowQuery}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Errorf(msg, args...)
	}
}

// Trace logs failed statements at error level and slow ones at warn level.
// Record-not-found is a normal lookup outcome and is not logged.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	entry := func() *logrus.Entry {
		sql, rows := fc()
		return l.log.WithContext(ctx).WithFields(logrus.Fields{
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		entry().WithError(err).Error("gorm query failed")
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		entry().Warn("gorm slow query")
	case l.level >= gormlogger.Info:
		entry().Debug("gorm query")
	}
}
