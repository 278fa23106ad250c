package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"topic_importer/internal/logger"
)

func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		createUsersTable,
		createTopicsTable,
		createColumnMappingsTable,
		createUserTopicPermissionsTable,
		createImportLogsTable,
		createFailedImportRowsTable,
		createDeletionLogsTable,
		createSystemLogsTable,
	}

	for i, migration := range migrations {
		logger.Log.Debugf("Running migration %d/%d", i+1, len(migrations))
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logger.Log.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  last_login_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`

// Target credentials are stored as given; the metadata database is trusted.
const createTopicsTable = `
CREATE TABLE IF NOT EXISTS topics (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  target_dialect TEXT NOT NULL DEFAULT 'mysql',
  target_host TEXT NOT NULL DEFAULT '',
  target_port INTEGER NOT NULL DEFAULT 0,
  target_database TEXT NOT NULL,
  target_table TEXT NOT NULL,
  target_user TEXT NOT NULL DEFAULT '',
  target_password TEXT NOT NULL DEFAULT '',
  created_by UUID NOT NULL REFERENCES users(id),
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const createColumnMappingsTable = `
CREATE TABLE IF NOT EXISTS column_mappings (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
  source_column_name TEXT NOT NULL,
  target_column_name TEXT NOT NULL,
  data_type TEXT NOT NULL DEFAULT 'VARCHAR(255)',
  is_primary_key BOOLEAN NOT NULL DEFAULT FALSE,
  is_index BOOLEAN NOT NULL DEFAULT FALSE,
  allow_null BOOLEAN NOT NULL DEFAULT TRUE,
  default_value TEXT,
  position INTEGER NOT NULL DEFAULT 0,
  UNIQUE (topic_id, source_column_name),
  UNIQUE (topic_id, target_column_name)
);

CREATE INDEX IF NOT EXISTS idx_column_mappings_topic ON column_mappings(topic_id, position);
`

const createUserTopicPermissionsTable = `
CREATE TABLE IF NOT EXISTS user_topic_permissions (
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
  can_import BOOLEAN NOT NULL DEFAULT TRUE,
  can_view_data BOOLEAN NOT NULL DEFAULT TRUE,
  can_delete_data BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  PRIMARY KEY (user_id, topic_id)
);
`

const createImportLogsTable = `
CREATE TABLE IF NOT EXISTS import_logs (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  original_file_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING'
    CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'PARTIALLY_COMPLETED', 'FAILED', 'CANCELLED')),
  total_rows INTEGER NOT NULL DEFAULT 0,
  successful_rows INTEGER NOT NULL DEFAULT 0,
  failed_rows INTEGER NOT NULL DEFAULT 0,
  error_details JSONB,
  started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  completed_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_import_logs_user ON import_logs(user_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_import_logs_topic ON import_logs(topic_id);
`

const createFailedImportRowsTable = `
CREATE TABLE IF NOT EXISTS failed_import_rows (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  import_log_id UUID NOT NULL REFERENCES import_logs(id) ON DELETE CASCADE,
  row_number_in_file INTEGER NOT NULL,
  row_data JSONB NOT NULL,
  error_message TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_failed_import_rows_log ON failed_import_rows(import_log_id, row_number_in_file);
`

const createDeletionLogsTable = `
CREATE TABLE IF NOT EXISTS deletion_logs (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  target_table_name TEXT NOT NULL,
  record_primary_key_value TEXT NOT NULL,
  deleted_record_data JSONB NOT NULL,
  deletion_batch_id UUID NOT NULL,
  deleted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  is_rolled_back BOOLEAN NOT NULL DEFAULT FALSE,
  rolled_back_at TIMESTAMP WITH TIME ZONE,
  rolled_back_by_id UUID REFERENCES users(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_deletion_logs_topic ON deletion_logs(topic_id, deleted_at DESC);
CREATE INDEX IF NOT EXISTS idx_deletion_logs_batch ON deletion_logs(deletion_batch_id);
`

const createSystemLogsTable = `
CREATE TABLE IF NOT EXISTS system_logs (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  user_id UUID REFERENCES users(id) ON DELETE SET NULL,
  action_type TEXT NOT NULL,
  details JSONB,
  ip_address TEXT,
  status TEXT NOT NULL,
  error_message TEXT,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_system_logs_action ON system_logs(action_type, created_at DESC);
`
