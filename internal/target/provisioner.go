package target

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

// EnsureDatabaseExists creates the topic's database when it is missing.
func (e *Engine) EnsureDatabaseExists(ctx context.Context, desc models.TargetDescriptor) error {
	sess, err := e.open(ctx, desc, false)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.dialect.EnsureDatabase(ctx, sess.conn, sess.desc.Database); err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return classify(sess.dialect, err, apperrors.KindProvisioning, "failed to create database %s", sess.desc.Database)
	}

	logger.Log.WithFields(logrus.Fields{
		"dialect":  sess.dialect.Name(),
		"host":     sess.desc.Host,
		"database": sess.desc.Database,
	}).Debug("target database ensured")
	return nil
}

// EnsureTableExists creates the database and table if missing, then adds the
// secondary indexes. Existing columns are never altered, so repeated calls
// with the same mappings change nothing.
func (e *Engine) EnsureTableExists(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping) error {
	d, desc, err := e.dialectFor(desc)
	if err != nil {
		return err
	}
	b, err := newBuilder(d, desc.Table, mappings)
	if err != nil {
		return err
	}

	if err := e.EnsureDatabaseExists(ctx, desc); err != nil {
		return err
	}

	sess, err := e.open(ctx, desc, true)
	if err != nil {
		return err
	}
	defer sess.close()

	if _, err := sess.conn.ExecContext(ctx, b.createTable()); err != nil {
		return ddlError(d, err, "failed to create table %s", desc.Table)
	}

	for _, idx := range b.indexes() {
		_, err := sess.conn.ExecContext(ctx, idx.sql)
		if err == nil {
			continue
		}
		if d.IsDuplicateIndex(err) {
			logger.Log.WithFields(logrus.Fields{"table": desc.Table, "index": idx.name}).Debug("index already exists")
			continue
		}
		return ddlError(d, err, "failed to create index %s on %s", idx.name, desc.Table)
	}

	logger.Log.WithFields(logrus.Fields{
		"dialect": d.Name(),
		"table":   desc.Table,
		"columns": len(mappings),
	}).Info("target table ensured")
	return nil
}

// ddlError keeps connection failures distinct and reports every other DDL
// failure, a column missing from an older table included, as provisioning.
func ddlError(d Dialect, err error, format string, args ...any) error {
	if d.Classify(err) == apperrors.KindTargetSchema {
		return apperrors.Provisioning(err, format, args...)
	}
	return classify(d, err, apperrors.KindProvisioning, format, args...)
}
