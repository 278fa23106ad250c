package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topic_importer/internal/models"
)

type FailedRowRepository struct {
	pool *pgxpool.Pool
}

func NewFailedRowRepository(pool *pgxpool.Pool) *FailedRowRepository {
	return &FailedRowRepository{pool: pool}
}

// InsertMany bulk-loads the failures of one import with COPY.
func (r *FailedRowRepository) InsertMany(ctx context.Context, importLogID uuid.UUID, failures []models.RowFailure) (int64, error) {
	if len(failures) == 0 {
		return 0, nil
	}

	now := time.Now()
	rows := make([][]any, 0, len(failures))
	for _, f := range failures {
		data, err := models.MarshalRowData(f.RowData)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{uuid.New(), importLogID, f.RowNumber, data, f.ErrorMessage, now})
	}

	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"failed_import_rows"},
		[]string{"id", "import_log_id", "row_number_in_file", "row_data", "error_message", "created_at"},
		pgx.CopyFromRows(rows),
	)
}

func (r *FailedRowRepository) ListByImportLog(ctx context.Context, importLogID uuid.UUID, limit int) ([]models.FailedImportRow, error) {
	query := `
		SELECT id, import_log_id, row_number_in_file, row_data, error_message, created_at
		FROM failed_import_rows WHERE import_log_id = $1
		ORDER BY row_number_in_file
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, importLogID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.FailedImportRow{}
	for rows.Next() {
		var (
			row  models.FailedImportRow
			data []byte
		)
		if err := rows.Scan(&row.ID, &row.ImportLogID, &row.RowNumberInFile, &data, &row.ErrorMessage, &row.CreatedAt); err != nil {
			return nil, err
		}
		if row.RowData, err = models.UnmarshalRowData(data); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
