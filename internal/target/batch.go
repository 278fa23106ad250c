package target

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"topic_importer/internal/logger"
	"topic_importer/internal/mapper"
	"topic_importer/internal/models"
)

// BatchResult is the outcome of one InsertBatch call. Row failures are
// expected output, not errors.
type BatchResult struct {
	SuccessCount int                 `json:"successCount"`
	FailCount    int                 `json:"failCount"`
	Failures     []models.RowFailure `json:"failedDetails"`
	// BatchError is set when the whole transaction was rolled back.
	BatchError string `json:"batchError,omitempty"`
}

// InsertBatch inserts rows in a single transaction on a single connection.
// A failing row is recorded and skipped; a failure of the transaction itself
// rolls everything back and reports every row as failed. The returned error is
// non-nil only when the mappings are invalid or the target cannot be reached.
func (e *Engine) InsertBatch(ctx context.Context, desc models.TargetDescriptor, rows []models.SourceRow, mappings []models.ColumnMapping) (*BatchResult, error) {
	if len(rows) == 0 {
		return &BatchResult{}, nil
	}

	d, desc, err := e.dialectFor(desc)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(d, desc.Table, mappings)
	if err != nil {
		return nil, err
	}

	prepared, rejected := mapper.Map(rows, mappings)

	sess, err := e.open(ctx, desc, true)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	inserted, failures, fatal := insertRows(ctx, sess, b.insert(), prepared)
	if fatal != nil {
		logger.Log.WithError(fatal).WithFields(logrus.Fields{
			"table": desc.Table,
			"rows":  len(rows),
		}).Error("batch insert transaction failed")
		return batchFailed(rows, fatal), nil
	}

	failures = append(rejected, failures...)
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].RowNumber < failures[j].RowNumber })

	return &BatchResult{
		SuccessCount: inserted,
		FailCount:    len(failures),
		Failures:     failures,
	}, nil
}

func insertRows(ctx context.Context, sess *session, query string, rows []mapper.PreparedRow) (int, []models.RowFailure, error) {
	d := sess.dialect

	tx, err := sess.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, nil, err
	}
	defer stmt.Close()

	inserted := 0
	var failures []models.RowFailure
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		rowErr, fatal := execIsolated(ctx, tx, d, savepointName(i), func() error {
			_, err := stmt.ExecContext(ctx, row.Values...)
			return err
		})
		if fatal != nil {
			return 0, nil, fatal
		}
		if rowErr != nil {
			failures = append(failures, models.RowFailure{
				RowNumber:    row.RowNumber,
				RowData:      row.Source.Values,
				ErrorMessage: rowErr.Error(),
			})
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return inserted, failures, nil
}

// execIsolated runs one statement so that its failure does not poison the
// transaction. rowErr is the statement's own error; fatal means the
// transaction is unusable.
func execIsolated(ctx context.Context, tx *sql.Tx, d Dialect, savepoint string, exec func() error) (rowErr, fatal error) {
	useSavepoint := d.SavepointSQL(savepoint) != ""
	if useSavepoint {
		if _, err := tx.ExecContext(ctx, d.SavepointSQL(savepoint)); err != nil {
			return nil, err
		}
	}

	if err := exec(); err != nil {
		if isBatchFatal(ctx, d, err) {
			return nil, err
		}
		if useSavepoint {
			if _, rbErr := tx.ExecContext(ctx, d.RollbackToSavepointSQL(savepoint)); rbErr != nil {
				return nil, rbErr
			}
		}
		return err, nil
	}

	if release := d.ReleaseSavepointSQL(savepoint); useSavepoint && release != "" {
		if _, err := tx.ExecContext(ctx, release); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func batchFailed(rows []models.SourceRow, cause error) *BatchResult {
	msg := fmt.Sprintf("Batch transaction error: %v", cause)
	failures := make([]models.RowFailure, len(rows))
	for i, row := range rows {
		rowNumber := row.RowNumber
		if rowNumber == 0 {
			rowNumber = i + 1
		}
		failures[i] = models.RowFailure{RowNumber: rowNumber, RowData: row.Values, ErrorMessage: msg}
	}
	return &BatchResult{
		SuccessCount: 0,
		FailCount:    len(rows),
		Failures:     failures,
		BatchError:   msg,
	}
}
