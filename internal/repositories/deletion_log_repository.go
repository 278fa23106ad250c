package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topic_importer/internal/database"
	"topic_importer/internal/models"
)

type DeletionLogRepository struct {
	pool *pgxpool.Pool
}

func NewDeletionLogRepository(pool *pgxpool.Pool) *DeletionLogRepository {
	return &DeletionLogRepository{pool: pool}
}

// CreateMany inserts the logs of one delete request atomically.
func (r *DeletionLogRepository) CreateMany(ctx context.Context, logs []models.DeletionLog) error {
	if len(logs) == 0 {
		return nil
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range logs {
			l := &logs[i]
			l.Prepare()
			data, err := l.DeletedRecordData.Marshal()
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO deletion_logs (id, topic_id, user_id, target_table_name, record_primary_key_value,
					deleted_record_data, deletion_batch_id, deleted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, l.ID, l.TopicID, l.UserID, l.TargetTableName, l.RecordPrimaryKeyValue, data, l.DeletionBatchID, l.DeletedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

const deletionLogColumns = `id, topic_id, user_id, target_table_name, record_primary_key_value,
	deleted_record_data, deletion_batch_id, deleted_at, is_rolled_back, rolled_back_at, rolled_back_by_id`

func (r *DeletionLogRepository) query(ctx context.Context, query string, args ...any) ([]models.DeletionLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.DeletionLog{}
	for rows.Next() {
		var (
			l    models.DeletionLog
			data []byte
		)
		err := rows.Scan(
			&l.ID,
			&l.TopicID,
			&l.UserID,
			&l.TargetTableName,
			&l.RecordPrimaryKeyValue,
			&data,
			&l.DeletionBatchID,
			&l.DeletedAt,
			&l.IsRolledBack,
			&l.RolledBackAt,
			&l.RolledBackByID,
		)
		if err != nil {
			return nil, err
		}
		if l.DeletedRecordData, err = models.UnmarshalRowSnapshot(data); err != nil {
			return nil, fmt.Errorf("deletion log %s: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// FindEligible returns the topic's not yet rolled back logs matching sel,
// oldest first.
func (r *DeletionLogRepository) FindEligible(ctx context.Context, topicID uuid.UUID, sel models.RollbackSelector) ([]models.DeletionLog, error) {
	query := `SELECT ` + deletionLogColumns + ` FROM deletion_logs
		WHERE topic_id = $1 AND is_rolled_back = FALSE AND `
	var arg any
	if len(sel.DeletionLogIDs) > 0 {
		query += `id = ANY($2)`
		arg = sel.DeletionLogIDs
	} else {
		query += `deletion_batch_id = $2`
		arg = *sel.DeletionBatchID
	}
	return r.query(ctx, query+` ORDER BY deleted_at, id`, topicID, arg)
}

// MarkRolledBack flips the given logs and returns the ids that actually
// changed. A log that is already rolled back is left untouched.
func (r *DeletionLogRepository) MarkRolledBack(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE deletion_logs
		SET is_rolled_back = TRUE, rolled_back_at = NOW(), rolled_back_by_id = $2
		WHERE id = ANY($1) AND is_rolled_back = FALSE
		RETURNING id
	`
	rows, err := r.pool.Query(ctx, query, ids, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *DeletionLogRepository) ListByTopic(ctx context.Context, f models.DeletionLogFilter) ([]models.DeletionLog, error) {
	conds := []string{"topic_id = $1"}
	args := []any{f.TopicID}
	if f.IsRolledBack != nil {
		args = append(args, *f.IsRolledBack)
		conds = append(conds, fmt.Sprintf("is_rolled_back = $%d", len(args)))
	}

	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM deletion_logs WHERE %s ORDER BY deleted_at %s`,
		deletionLogColumns, strings.Join(conds, " AND "), order)
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return r.query(ctx, query, args...)
}
