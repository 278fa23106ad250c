package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topic_importer/internal/database"
	"topic_importer/internal/models"
)

type TopicRepository struct {
	pool *pgxpool.Pool
}

func NewTopicRepository(pool *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{pool: pool}
}

const topicColumns = `t.id, t.name, t.description, t.target_dialect, t.target_host, t.target_port,
	t.target_database, t.target_table, t.target_user, t.target_password,
	t.created_by, t.created_at, t.updated_at`

func scanTopic(row pgx.Row) (*models.Topic, error) {
	var topic models.Topic
	err := row.Scan(
		&topic.ID,
		&topic.Name,
		&topic.Description,
		&topic.Target.Dialect,
		&topic.Target.Host,
		&topic.Target.Port,
		&topic.Target.Database,
		&topic.Target.Table,
		&topic.Target.User,
		&topic.Target.Password,
		&topic.CreatedBy,
		&topic.CreatedAt,
		&topic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// Create stores the topic and its mappings in one transaction.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic, mappings []models.ColumnMapping) error {
	topic.Prepare()

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO topics (id, name, description, target_dialect, target_host, target_port,
				target_database, target_table, target_user, target_password, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.Exec(ctx, query,
			topic.ID,
			topic.Name,
			topic.Description,
			topic.Target.Dialect,
			topic.Target.Host,
			topic.Target.Port,
			topic.Target.Database,
			topic.Target.Table,
			topic.Target.User,
			topic.Target.Password,
			topic.CreatedBy,
			topic.CreatedAt,
			topic.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}

		if err := insertMappings(ctx, tx, topic.ID, mappings); err != nil {
			return err
		}
		topic.Mappings = mappings
		return nil
	})
	return translate(err)
}

// Update rewrites the topic's name, description and target. A non-nil
// mappings replaces the stored mappings in the same transaction. It reports
// false when the topic does not exist.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic, mappings []models.ColumnMapping) (bool, error) {
	topic.UpdatedAt = time.Now().UTC()

	found := false
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE topics SET name = $2, description = $3, target_dialect = $4, target_host = $5,
				target_port = $6, target_database = $7, target_table = $8, target_user = $9,
				target_password = $10, updated_at = $11
			WHERE id = $1
		`,
			topic.ID,
			topic.Name,
			topic.Description,
			topic.Target.Dialect,
			topic.Target.Host,
			topic.Target.Port,
			topic.Target.Database,
			topic.Target.Table,
			topic.Target.User,
			topic.Target.Password,
			topic.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update topic: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		found = true

		if mappings == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM column_mappings WHERE topic_id = $1`, topic.ID); err != nil {
			return fmt.Errorf("clear mappings: %w", err)
		}
		if err := insertMappings(ctx, tx, topic.ID, mappings); err != nil {
			return err
		}
		topic.Mappings = mappings
		return nil
	})
	if err != nil {
		return false, translate(err)
	}
	return found, nil
}

func insertMappings(ctx context.Context, tx pgx.Tx, topicID uuid.UUID, mappings []models.ColumnMapping) error {
	for i := range mappings {
		m := &mappings[i]
		m.Prepare()
		m.TopicID = topicID
		m.Position = i
		_, err := tx.Exec(ctx, `
			INSERT INTO column_mappings (id, topic_id, source_column_name, target_column_name, data_type,
				is_primary_key, is_index, allow_null, default_value, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			m.ID, m.TopicID, m.SourceColumnName, m.TargetColumnName, m.DataType,
			m.IsPrimaryKey, m.IsIndex, m.AllowNull, m.DefaultValue, m.Position,
		)
		if err != nil {
			return fmt.Errorf("insert mapping %s: %w", m.SourceColumnName, err)
		}
	}
	return nil
}

func (r *TopicRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics t WHERE t.id = $1`

	topic, err := scanTopic(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return topic, nil
}

// GetMappings returns the topic's mappings in declaration order.
func (r *TopicRepository) GetMappings(ctx context.Context, topicID uuid.UUID) ([]models.ColumnMapping, error) {
	query := `
		SELECT id, topic_id, source_column_name, target_column_name, data_type,
			is_primary_key, is_index, allow_null, default_value, position
		FROM column_mappings WHERE topic_id = $1
		ORDER BY position, source_column_name
	`

	rows, err := r.pool.Query(ctx, query, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.ColumnMapping
	for rows.Next() {
		var m models.ColumnMapping
		err := rows.Scan(
			&m.ID,
			&m.TopicID,
			&m.SourceColumnName,
			&m.TargetColumnName,
			&m.DataType,
			&m.IsPrimaryKey,
			&m.IsIndex,
			&m.AllowNull,
			&m.DefaultValue,
			&m.Position,
		)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (r *TopicRepository) List(ctx context.Context) ([]models.Topic, error) {
	return r.list(ctx, `SELECT `+topicColumns+` FROM topics t ORDER BY t.name`)
}

// ListAvailable returns the topics on which the user holds at least one capability.
func (r *TopicRepository) ListAvailable(ctx context.Context, userID uuid.UUID) ([]models.Topic, error) {
	query := `
		SELECT ` + topicColumns + `
		FROM topics t
		JOIN user_topic_permissions p ON p.topic_id = t.id
		WHERE p.user_id = $1 AND (p.can_import OR p.can_view_data OR p.can_delete_data)
		ORDER BY t.name
	`
	return r.list(ctx, query, userID)
}

func (r *TopicRepository) list(ctx context.Context, query string, args ...any) ([]models.Topic, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *topic)
	}
	return topics, rows.Err()
}

// Delete removes the topic; mappings, permissions and ledgers cascade.
func (r *TopicRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
