package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"topic_importer/internal/config"
	"topic_importer/internal/database"
	"topic_importer/internal/logger"
	"topic_importer/internal/models"
)

func setupMetadataStore(t *testing.T) (*pgxpool.Pool, *gorm.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	logger.Silence()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("postgres"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:          host,
		Port:          port.Port(),
		User:          "postgres",
		Password:      "secret",
		Name:          "importer_meta",
		AdminUser:     "postgres",
		AdminPassword: "secret",
		MaxConns:      4,
		MinConns:      1,
	}
	require.NoError(t, database.EnsureDatabaseExists(ctx, cfg))
	require.NoError(t, database.EnsureDatabaseExists(ctx, cfg), "second call is a no-op")

	pool, err := database.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool))
	require.NoError(t, database.RunMigrations(ctx, pool), "migrations are idempotent")

	db, err := database.OpenGorm(pool)
	require.NoError(t, err)
	return pool, db
}

func TestMetadataStoreIntegration(t *testing.T) {
	pool, db := setupMetadataStore(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	topics := NewTopicRepository(pool)
	perms := NewPermissionRepository(db)
	importLogs := NewImportLogRepository(pool)
	failedRows := NewFailedRowRepository(pool)
	deletions := NewDeletionLogRepository(pool)
	systemLogs := NewSystemLogRepository(db)

	owner := &models.User{Email: "owner@example.com", PasswordHash: "hash", Role: models.RoleAdmin}
	require.NoError(t, users.Create(ctx, owner))
	assert.ErrorIs(t, users.Create(ctx, &models.User{Email: "owner@example.com", PasswordHash: "x"}), ErrDuplicate)

	count, err := users.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := users.FindUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, owner.ID, found.ID)
	missing, err := users.FindUserByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	t.Run("topics", func(t *testing.T) {
		topic := &models.Topic{
			Name:      "orders",
			Target:    models.TargetDescriptor{Dialect: models.DialectPostgres, Host: "db", Port: 5432, Database: "d", Table: "orders"},
			CreatedBy: owner.ID,
		}
		mappings := []models.ColumnMapping{
			{SourceColumnName: "ID", TargetColumnName: "id", DataType: "INT", IsPrimaryKey: true},
			{SourceColumnName: "Customer", TargetColumnName: "customer", DataType: "VARCHAR(100)", AllowNull: true},
		}
		require.NoError(t, topics.Create(ctx, topic, mappings))

		dup := &models.Topic{Name: "orders", Target: topic.Target, CreatedBy: owner.ID}
		assert.ErrorIs(t, topics.Create(ctx, dup, nil), ErrDuplicate)

		got, err := topics.GetMappings(ctx, topic.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "id", got[0].TargetColumnName)
		assert.Equal(t, 1, got[1].Position)

		available, err := topics.ListAvailable(ctx, owner.ID)
		require.NoError(t, err)
		assert.Empty(t, available)

		require.NoError(t, perms.Upsert(ctx, &models.UserTopicPermission{UserID: owner.ID, TopicID: topic.ID, CanViewData: true}))
		require.NoError(t, perms.Upsert(ctx, &models.UserTopicPermission{UserID: owner.ID, TopicID: topic.ID, CanImport: true}))
		perm, err := perms.Get(ctx, owner.ID, topic.ID)
		require.NoError(t, err)
		require.NotNil(t, perm)
		assert.True(t, perm.CanImport)
		assert.False(t, perm.CanViewData, "upsert replaces the flags")

		available, err = topics.ListAvailable(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, available, 1)

		topic.Name = "sales"
		topic.Target.Table = "sales"
		ok, err := topics.Update(ctx, topic, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		got, err = topics.GetMappings(ctx, topic.ID)
		require.NoError(t, err)
		assert.Len(t, got, 2, "nil mappings keep the stored set")

		ok, err = topics.Update(ctx, topic, []models.ColumnMapping{
			{SourceColumnName: "Code", TargetColumnName: "code", DataType: "VARCHAR(10)", IsPrimaryKey: true},
		})
		require.NoError(t, err)
		assert.True(t, ok)
		stored, err := topics.GetByID(ctx, topic.ID)
		require.NoError(t, err)
		assert.Equal(t, "sales", stored.Name)
		assert.Equal(t, "sales", stored.Target.Table)
		got, err = topics.GetMappings(ctx, topic.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "code", got[0].TargetColumnName)

		ok, err = topics.Update(ctx, &models.Topic{ID: uuid.New(), Name: "ghost"}, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		deleted, err := topics.Delete(ctx, topic.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		perm, err = perms.Get(ctx, owner.ID, topic.ID)
		require.NoError(t, err)
		assert.Nil(t, perm, "permissions cascade with the topic")
	})

	topic := &models.Topic{
		Name:      "ledger",
		Target:    models.TargetDescriptor{Dialect: models.DialectPostgres, Host: "db", Port: 5432, Database: "d", Table: "ledger"},
		CreatedBy: owner.ID,
	}
	require.NoError(t, topics.Create(ctx, topic, []models.ColumnMapping{
		{SourceColumnName: "ID", TargetColumnName: "id", DataType: "INT", IsPrimaryKey: true},
	}))

	t.Run("import log transitions are guarded", func(t *testing.T) {
		log := &models.ImportLog{TopicID: topic.ID, UserID: owner.ID, OriginalFileName: "a.csv"}
		require.NoError(t, importLogs.Create(ctx, log))

		ok, err := importLogs.Update(ctx, models.ImportLogUpdate{ID: log.ID, FromStatus: models.ImportPending, Status: models.ImportProcessing})
		require.NoError(t, err)
		require.True(t, ok)

		success, failed := 1, 1
		ok, err = importLogs.Update(ctx, models.ImportLogUpdate{
			ID:             log.ID,
			FromStatus:     models.ImportProcessing,
			Status:         models.ImportPartiallyCompleted,
			SuccessfulRows: &success,
			FailedRows:     &failed,
			ErrorDetails:   &models.ErrorDetails{Message: "1 records failed to import."},
		})
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = importLogs.Update(ctx, models.ImportLogUpdate{ID: log.ID, FromStatus: models.ImportProcessing, Status: models.ImportFailed})
		require.NoError(t, err)
		assert.False(t, ok, "a finalized log is never rewritten")

		stored, err := importLogs.GetByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportPartiallyCompleted, stored.Status)
		assert.Equal(t, "ledger", stored.TopicName)
		assert.NotNil(t, stored.CompletedAt)
		require.NotNil(t, stored.ErrorDetails)
		assert.Equal(t, "1 records failed to import.", stored.ErrorDetails.Message)

		n, err := failedRows.InsertMany(ctx, log.ID, []models.RowFailure{
			{RowNumber: 3, RowData: map[string]any{"ID": "x"}, ErrorMessage: "bad"},
			{RowNumber: 2, RowData: map[string]any{"ID": ""}, ErrorMessage: "missing"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		rows, err := failedRows.ListByImportLog(ctx, log.ID, 100)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].RowNumberInFile)

		status := models.ImportPartiallyCompleted
		list, total, err := importLogs.List(ctx, models.ImportLogFilter{UserID: owner.ID, Status: &status, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, list, 1)

		list, total, err = importLogs.List(ctx, models.ImportLogFilter{SortDesc: true, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "a zero user id lists every user's logs")
		assert.Len(t, list, 1)
	})

	t.Run("deletion logs", func(t *testing.T) {
		batch := uuid.New()
		logs := []models.DeletionLog{
			{TopicID: topic.ID, UserID: owner.ID, TargetTableName: "ledger", RecordPrimaryKeyValue: "1",
				DeletedRecordData: models.RowSnapshot{"id": int64(1)}, DeletionBatchID: batch},
			{TopicID: topic.ID, UserID: owner.ID, TargetTableName: "ledger", RecordPrimaryKeyValue: "2",
				DeletedRecordData: models.RowSnapshot{"id": int64(2)}, DeletionBatchID: batch},
		}
		require.NoError(t, deletions.CreateMany(ctx, logs))

		eligible, err := deletions.FindEligible(ctx, topic.ID, models.RollbackSelector{DeletionBatchID: &batch})
		require.NoError(t, err)
		require.Len(t, eligible, 2)

		flipped, err := deletions.MarkRolledBack(ctx, []uuid.UUID{logs[0].ID}, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{logs[0].ID}, flipped)

		flipped, err = deletions.MarkRolledBack(ctx, []uuid.UUID{logs[0].ID}, owner.ID)
		require.NoError(t, err)
		assert.Empty(t, flipped, "already rolled back")

		eligible, err = deletions.FindEligible(ctx, topic.ID, models.RollbackSelector{DeletionLogIDs: []uuid.UUID{logs[0].ID, logs[1].ID}})
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "2", eligible[0].RecordPrimaryKeyValue)

		rolledBack := true
		listed, err := deletions.ListByTopic(ctx, models.DeletionLogFilter{TopicID: topic.ID, IsRolledBack: &rolledBack})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.NotNil(t, listed[0].RolledBackByID)
		assert.Equal(t, owner.ID, *listed[0].RolledBackByID)
	})

	t.Run("system log", func(t *testing.T) {
		ip := "10.0.0.1"
		entry := &models.SystemLog{UserID: &owner.ID, ActionType: models.ActionFileImport, Status: models.LogStatusSuccess,
			IPAddress: &ip, Details: map[string]any{"rows": 2}}
		require.NoError(t, systemLogs.Create(ctx, entry))
		assert.NotEqual(t, uuid.Nil, entry.ID)
		require.NoError(t, systemLogs.Create(ctx, &models.SystemLog{ActionType: models.ActionUserLogin, Status: models.LogStatusFailure}))

		listed, total, err := systemLogs.List(ctx, models.SystemLogFilter{ActionType: "IMPORT", SortDesc: true, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, listed, 1)
		assert.Equal(t, entry.ID, listed[0].ID)

		listed, total, err = systemLogs.List(ctx, models.SystemLogFilter{Status: models.LogStatusFailure, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, listed, 1)
		assert.Nil(t, listed[0].UserID)

		listed, total, err = systemLogs.List(ctx, models.SystemLogFilter{UserID: &owner.ID, Limit: 10, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, listed)
	})
}
