package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
	"topic_importer/internal/target"
)

func TestParseFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []target.Filter
	}{
		{"", nil},
		{"not json", nil},
		{`{"column":"id"}`, nil},
		{`[{"column":"customer","value":"ac"}]`, []target.Filter{{Column: "customer", Value: "ac"}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseFilters(tt.raw), tt.raw)
	}
}

func TestQueryDataFiltersAndIgnoresInjection(t *testing.T) {
	h := newHarness(t)
	h.importCSV(t, ordersCSV)

	res, err := h.dataService().QueryData(context.Background(), h.member, h.topic.ID, QueryParams{
		SortBy:  "x; DROP TABLE y",
		Filters: `[{"column":"customer","value":"acme"}]`,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, "acme", res.Data[0]["customer"])
}

func TestQueryDataPermissionAndMissingTable(t *testing.T) {
	h := newHarness(t)
	svc := h.dataService()

	_, err := svc.QueryData(context.Background(), h.outsider, h.topic.ID, QueryParams{}, "")
	assert.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = svc.QueryData(context.Background(), h.member, h.topic.ID, QueryParams{}, "")
	assert.ErrorIs(t, err, apperrors.ErrTargetSchema)

	_, err = svc.QueryData(context.Background(), h.admin, uuid.New(), QueryParams{}, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteRecordsWritesDeletionLogs(t *testing.T) {
	h := newHarness(t)
	h.importCSV(t, ordersCSV)

	out, err := h.dataService().DeleteRecords(context.Background(), h.member, h.topic.ID, []any{int64(2), int64(99)}, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.DeletedCount)
	assert.True(t, out.Partial())
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Record not found or already deleted.", out.Errors[0].Message)
	require.NotNil(t, out.DeletionBatchID)

	require.Len(t, h.deletions.logs, 1)
	l := h.deletions.logs[0]
	assert.Equal(t, "2", l.RecordPrimaryKeyValue)
	assert.Equal(t, *out.DeletionBatchID, l.DeletionBatchID)
	assert.Equal(t, "orders", l.TargetTableName)
	assert.Equal(t, "initech", l.DeletedRecordData["customer"])
	assert.False(t, l.IsRolledBack)
}

func TestDeleteRecordsValidation(t *testing.T) {
	h := newHarness(t)
	svc := h.dataService()

	_, err := svc.DeleteRecords(context.Background(), h.member, h.topic.ID, nil, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.DeleteRecords(context.Background(), h.outsider, h.topic.ID, []any{1}, "")
	assert.ErrorIs(t, err, apperrors.ErrPermission)

	noPK, err := h.topicService().Create(context.Background(), h.admin, CreateTopicRequest{
		Name:   "notes",
		Target: h.topicTargetInput("notes"),
		Mappings: []MappingInput{
			{SourceColumnName: "Note", TargetColumnName: "note"},
		},
	})
	require.NoError(t, err)

	_, err = svc.DeleteRecords(context.Background(), h.admin, noPK.ID, []any{1}, "")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "No primary key defined for this topic. Cannot delete records.", apperrors.Message(err))
}

func (h *harness) topicTargetInput(table string) TargetInput {
	return TargetInput{
		Dialect:  h.topic.Target.Dialect,
		Database: h.topic.Target.Database,
		Table:    table,
	}
}

func TestDeleteThenRollbackRestoresRow(t *testing.T) {
	h := newHarness(t)
	h.importCSV(t, "ID,Amount,Order Date,Customer\n5,10.50,2024-03-09,acme\n6,1.00,2024-03-10,globex\n")
	ctx := context.Background()

	before, err := h.engine.FetchByPK(ctx, h.topic.Target, h.topic.Mappings, "id", []any{int64(5)})
	require.NoError(t, err)
	require.Contains(t, before, "5")

	_, err = h.dataService().DeleteRecords(ctx, h.member, h.topic.ID, []any{int64(5)}, "")
	require.NoError(t, err)
	logID := h.deletions.byPK("5").ID

	out, err := h.rollbackService().Rollback(ctx, h.member, h.topic.ID, models.RollbackSelector{DeletionLogIDs: []uuid.UUID{logID}}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.RestoredCount)
	assert.Empty(t, out.Errors)

	after, err := h.engine.FetchByPK(ctx, h.topic.Target, h.topic.Mappings, "id", []any{int64(5)})
	require.NoError(t, err)
	assert.Equal(t, before["5"], after["5"])

	l := h.deletions.byPK("5")
	assert.True(t, l.IsRolledBack)
	require.NotNil(t, l.RolledBackByID)
	assert.Equal(t, h.member, *l.RolledBackByID)

	_, err = h.rollbackService().Rollback(ctx, h.member, h.topic.ID, models.RollbackSelector{DeletionLogIDs: []uuid.UUID{logID}}, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "No eligible deletion logs found for rollback.", apperrors.Message(err))
}

func TestRollbackByBatchKeepsFailedLogsEligible(t *testing.T) {
	h := newHarness(t)
	h.importCSV(t, ordersCSV)
	ctx := context.Background()

	del, err := h.dataService().DeleteRecords(ctx, h.member, h.topic.ID, []any{int64(1), int64(2)}, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), del.DeletedCount)

	// Someone re-imports id 1 before the rollback, so its replay collides.
	h.importCSV(t, "ID,Amount\n1,99.00\n")

	out, err := h.rollbackService().Rollback(ctx, h.member, h.topic.ID, models.RollbackSelector{DeletionBatchID: del.DeletionBatchID}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, out.RestoredCount)
	assert.True(t, out.Partial())
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "1", out.Errors[0].RecordPrimaryKeyValue)

	assert.False(t, h.deletions.byPK("1").IsRolledBack, "failed replay stays eligible")
	assert.True(t, h.deletions.byPK("2").IsRolledBack)
}

func TestRollbackFlipFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.importCSV(t, ordersCSV)
	ctx := context.Background()

	del, err := h.dataService().DeleteRecords(ctx, h.member, h.topic.ID, []any{int64(2)}, "")
	require.NoError(t, err)
	h.deletions.flipErr = errFlip

	out, err := h.rollbackService().Rollback(ctx, h.member, h.topic.ID, models.RollbackSelector{DeletionBatchID: del.DeletionBatchID}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, out.RestoredCount)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0].ErrorMessage, "could not be marked as rolled back")
}

func TestRollbackValidation(t *testing.T) {
	h := newHarness(t)
	svc := h.rollbackService()

	_, err := svc.Rollback(context.Background(), h.member, h.topic.ID, models.RollbackSelector{}, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	batch := uuid.New()
	_, err = svc.Rollback(context.Background(), h.outsider, h.topic.ID, models.RollbackSelector{DeletionBatchID: &batch}, "")
	assert.ErrorIs(t, err, apperrors.ErrPermission)
}
