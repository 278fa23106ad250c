package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topic_importer/internal/models"
)

type ImportLogRepository struct {
	pool *pgxpool.Pool
}

func NewImportLogRepository(pool *pgxpool.Pool) *ImportLogRepository {
	return &ImportLogRepository{pool: pool}
}

func (r *ImportLogRepository) Create(ctx context.Context, log *models.ImportLog) error {
	log.Prepare()

	details, err := log.ErrorDetails.Marshal()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO import_logs (id, topic_id, user_id, original_file_name, status, total_rows,
			successful_rows, failed_rows, error_details, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		log.ID,
		log.TopicID,
		log.UserID,
		log.OriginalFileName,
		string(log.Status),
		log.TotalRows,
		log.SuccessfulRows,
		log.FailedRows,
		details,
		log.StartedAt,
	)
	return err
}

// Update applies u only while the stored status equals u.FromStatus, so a
// finalized log is never rewritten. It reports whether a row changed.
func (r *ImportLogRepository) Update(ctx context.Context, u models.ImportLogUpdate) (bool, error) {
	details, err := u.ErrorDetails.Marshal()
	if err != nil {
		return false, err
	}

	query := `
		UPDATE import_logs SET
			status = $2,
			total_rows = COALESCE($3, total_rows),
			successful_rows = COALESCE($4, successful_rows),
			failed_rows = COALESCE($5, failed_rows),
			error_details = COALESCE($6, error_details),
			completed_at = CASE WHEN $7 THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = $8
	`
	tag, err := r.pool.Exec(ctx, query,
		u.ID,
		string(u.Status),
		u.TotalRows,
		u.SuccessfulRows,
		u.FailedRows,
		details,
		u.Status.IsTerminal(),
		string(u.FromStatus),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const importLogColumns = `l.id, l.topic_id, t.name, l.user_id, l.original_file_name, l.status,
	l.total_rows, l.successful_rows, l.failed_rows, l.error_details, l.started_at, l.completed_at`

func scanImportLog(row pgx.Row) (*models.ImportLog, error) {
	var (
		log     models.ImportLog
		status  string
		details []byte
	)
	err := row.Scan(
		&log.ID,
		&log.TopicID,
		&log.TopicName,
		&log.UserID,
		&log.OriginalFileName,
		&status,
		&log.TotalRows,
		&log.SuccessfulRows,
		&log.FailedRows,
		&details,
		&log.StartedAt,
		&log.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	log.Status = models.ImportStatus(status)
	if log.ErrorDetails, err = models.UnmarshalErrorDetails(details); err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *ImportLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportLog, error) {
	query := `SELECT ` + importLogColumns + `
		FROM import_logs l JOIN topics t ON t.id = l.topic_id
		WHERE l.id = $1`

	log, err := scanImportLog(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// List returns one page of logs and the total matching count. A zero
// f.UserID lists every user's logs.
func (r *ImportLogRepository) List(ctx context.Context, f models.ImportLogFilter) ([]models.ImportLog, int64, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != uuid.Nil {
		add("l.user_id = $%d", f.UserID)
	}
	if f.TopicID != nil {
		add("l.topic_id = $%d", *f.TopicID)
	}
	if f.Status != nil {
		add("l.status = $%d", string(*f.Status))
	}
	if f.StartDate != nil {
		add("l.started_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("l.started_at <= $%d", *f.EndDate)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM import_logs l` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM import_logs l JOIN topics t ON t.id = l.topic_id%s
		ORDER BY l.started_at %s LIMIT $%d OFFSET $%d`,
		importLogColumns, where, order, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []models.ImportLog{}
	for rows.Next() {
		log, err := scanImportLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, *log)
	}
	return logs, total, rows.Err()
}
