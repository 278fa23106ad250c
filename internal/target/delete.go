package target

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

const (
	recordNotFoundMessage = "Record not found or already deleted."
	fetchChunkSize        = 500
)

type DeleteError struct {
	Value   any    `json:"pkValue"`
	Message string `json:"message"`
}

type DeleteResult struct {
	DeletedCount int64         `json:"deletedCount"`
	Deleted      []any         `json:"-"`
	Errors       []DeleteError `json:"errors"`
}

// PKKey renders a primary key value the same way whether it came from a
// request or from a scanned row.
func PKKey(value any) string {
	switch v := normalizeValue(value).(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprint(int64(v))
		}
		return fmt.Sprint(v)
	case float32:
		return PKKey(float64(v))
	default:
		return fmt.Sprint(v)
	}
}

// DeleteByPK deletes one row per value inside a single transaction. A value
// that matches nothing is a per-value error. If the transaction fails, every
// value is reported failed and nothing is deleted.
func (e *Engine) DeleteByPK(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, pkColumn string, values []any) (*DeleteResult, error) {
	result := &DeleteResult{Errors: []DeleteError{}}
	if len(values) == 0 {
		return result, nil
	}

	d, desc, err := e.dialectFor(desc)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(d, desc.Table, mappings)
	if err != nil {
		return nil, err
	}
	query, err := b.deleteByPK(pkColumn)
	if err != nil {
		return nil, err
	}

	sess, err := e.open(ctx, desc, true)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	if fatal := deleteRows(ctx, sess, query, values, result); fatal != nil {
		logger.Log.WithError(fatal).WithFields(logrus.Fields{
			"table":  desc.Table,
			"values": len(values),
		}).Error("batch delete transaction failed")

		msg := fmt.Sprintf("Batch delete transaction error: %v", fatal)
		failed := &DeleteResult{Errors: make([]DeleteError, len(values))}
		for i, v := range values {
			failed.Errors[i] = DeleteError{Value: v, Message: msg}
		}
		return failed, nil
	}
	return result, nil
}

func deleteRows(ctx context.Context, sess *session, query string, values []any, result *DeleteResult) error {
	d := sess.dialect

	tx, err := sess.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, value := range values {
		if err := ctx.Err(); err != nil {
			return err
		}

		var affected int64
		rowErr, fatal := execIsolated(ctx, tx, d, savepointName(i), func() error {
			res, err := tx.ExecContext(ctx, query, value)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			return err
		})
		if fatal != nil {
			return fatal
		}
		switch {
		case rowErr != nil:
			result.Errors = append(result.Errors, DeleteError{Value: value, Message: rowErr.Error()})
		case affected == 0:
			result.Errors = append(result.Errors, DeleteError{Value: value, Message: recordNotFoundMessage})
		default:
			result.DeletedCount += affected
			result.Deleted = append(result.Deleted, value)
		}
	}

	return tx.Commit()
}

// FetchByPK returns the current mapped rows for the given key values, keyed by PKKey.
func (e *Engine) FetchByPK(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, pkColumn string, values []any) (map[string]models.RowSnapshot, error) {
	snapshots := make(map[string]models.RowSnapshot, len(values))
	if len(values) == 0 {
		return snapshots, nil
	}

	d, desc, err := e.dialectFor(desc)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(d, desc.Table, mappings)
	if err != nil {
		return nil, err
	}

	sess, err := e.open(ctx, desc, true)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	for start := 0; start < len(values); start += fetchChunkSize {
		end := start + fetchChunkSize
		if end > len(values) {
			end = len(values)
		}
		chunk := values[start:end]

		query, err := b.selectByPK(pkColumn, len(chunk))
		if err != nil {
			return nil, err
		}
		rows, err := sess.conn.QueryContext(ctx, query, chunk...)
		if err != nil {
			return nil, classify(d, err, apperrors.KindInternal, "failed to fetch records from %s", desc.Table)
		}
		data, err := scanRows(rows)
		rows.Close()
		if err != nil {
			return nil, classify(d, err, apperrors.KindInternal, "failed to fetch records from %s", desc.Table)
		}
		for _, row := range data {
			snapshots[PKKey(row[pkColumn])] = models.RowSnapshot(row)
		}
	}
	return snapshots, nil
}
