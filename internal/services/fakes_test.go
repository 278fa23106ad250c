package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"topic_importer/internal/logger"
	"topic_importer/internal/models"
	"topic_importer/internal/repositories"
	"topic_importer/internal/target"
)

func init() {
	logger.Silence()
}

type fakeTopics struct {
	mu        sync.Mutex
	topics    map[uuid.UUID]*models.Topic
	mappings  map[uuid.UUID][]models.ColumnMapping
	available map[uuid.UUID][]uuid.UUID
}

func newFakeTopics() *fakeTopics {
	return &fakeTopics{
		topics:    map[uuid.UUID]*models.Topic{},
		mappings:  map[uuid.UUID][]models.ColumnMapping{},
		available: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeTopics) Create(_ context.Context, topic *models.Topic, mappings []models.ColumnMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	topic.Prepare()
	for _, t := range f.topics {
		if t.Name == topic.Name {
			return repositories.ErrDuplicate
		}
	}
	for i := range mappings {
		mappings[i].Prepare()
		mappings[i].TopicID = topic.ID
		mappings[i].Position = i
	}
	stored := *topic
	f.topics[topic.ID] = &stored
	f.mappings[topic.ID] = append([]models.ColumnMapping(nil), mappings...)
	topic.Mappings = mappings
	return nil
}

func (f *fakeTopics) GetByID(_ context.Context, id uuid.UUID) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (f *fakeTopics) GetMappings(_ context.Context, id uuid.UUID) ([]models.ColumnMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ColumnMapping(nil), f.mappings[id]...), nil
}

func (f *fakeTopics) List(context.Context) ([]models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Topic, 0, len(f.topics))
	for _, t := range f.topics {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeTopics) ListAvailable(_ context.Context, userID uuid.UUID) ([]models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Topic
	for _, id := range f.available[userID] {
		out = append(out, *f.topics[id])
	}
	return out, nil
}

func (f *fakeTopics) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[id]; !ok {
		return false, nil
	}
	delete(f.topics, id)
	delete(f.mappings, id)
	return true, nil
}

func (f *fakeTopics) Update(_ context.Context, topic *models.Topic, mappings []models.ColumnMapping) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[topic.ID]; !ok {
		return false, nil
	}
	for _, t := range f.topics {
		if t.ID != topic.ID && t.Name == topic.Name {
			return false, repositories.ErrDuplicate
		}
	}
	stored := *topic
	f.topics[topic.ID] = &stored
	if mappings != nil {
		for i := range mappings {
			mappings[i].Prepare()
			mappings[i].TopicID = topic.ID
			mappings[i].Position = i
		}
		f.mappings[topic.ID] = append([]models.ColumnMapping(nil), mappings...)
		topic.Mappings = mappings
	}
	return true, nil
}

type fakeImportLogs struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*models.ImportLog
	// history records every status a log moved through.
	history map[uuid.UUID][]models.ImportStatus
}

func newFakeImportLogs() *fakeImportLogs {
	return &fakeImportLogs{logs: map[uuid.UUID]*models.ImportLog{}, history: map[uuid.UUID][]models.ImportStatus{}}
}

func (f *fakeImportLogs) Create(_ context.Context, log *models.ImportLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	log.Prepare()
	stored := *log
	f.logs[log.ID] = &stored
	f.history[log.ID] = []models.ImportStatus{log.Status}
	return nil
}

func (f *fakeImportLogs) Update(_ context.Context, u models.ImportLogUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.logs[u.ID]
	if !ok || l.Status != u.FromStatus {
		return false, nil
	}
	l.Status = u.Status
	if u.TotalRows != nil {
		l.TotalRows = *u.TotalRows
	}
	if u.SuccessfulRows != nil {
		l.SuccessfulRows = *u.SuccessfulRows
	}
	if u.FailedRows != nil {
		l.FailedRows = *u.FailedRows
	}
	if u.ErrorDetails != nil {
		l.ErrorDetails = u.ErrorDetails
	}
	if u.Status.IsTerminal() {
		now := time.Now()
		l.CompletedAt = &now
	}
	if h := f.history[u.ID]; h[len(h)-1] != u.Status {
		f.history[u.ID] = append(h, u.Status)
	}
	return true, nil
}

func (f *fakeImportLogs) GetByID(_ context.Context, id uuid.UUID) (*models.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.logs[id]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

func (f *fakeImportLogs) List(_ context.Context, filter models.ImportLogFilter) ([]models.ImportLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.ImportLog
	for _, l := range f.logs {
		if filter.UserID == uuid.Nil || l.UserID == filter.UserID {
			all = append(all, *l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.Before(all[j].StartedAt) })
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

// only returns the single stored log; tests create one import at a time.
func (f *fakeImportLogs) only(t *testing.T) *models.ImportLog {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.logs, 1)
	for _, l := range f.logs {
		out := *l
		return &out
	}
	return nil
}

type fakeFailedRows struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]models.FailedImportRow
}

func newFakeFailedRows() *fakeFailedRows {
	return &fakeFailedRows{rows: map[uuid.UUID][]models.FailedImportRow{}}
}

func (f *fakeFailedRows) InsertMany(_ context.Context, logID uuid.UUID, failures []models.RowFailure) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range failures {
		f.rows[logID] = append(f.rows[logID], models.FailedImportRow{
			ID:              uuid.New(),
			ImportLogID:     logID,
			RowNumberInFile: r.RowNumber,
			RowData:         r.RowData,
			ErrorMessage:    r.ErrorMessage,
			CreatedAt:       time.Now(),
		})
	}
	return int64(len(failures)), nil
}

func (f *fakeFailedRows) ListByImportLog(_ context.Context, logID uuid.UUID, limit int) ([]models.FailedImportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[logID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]models.FailedImportRow(nil), rows...), nil
}

type fakeDeletions struct {
	mu      sync.Mutex
	logs    []models.DeletionLog
	flipErr error
}

func (f *fakeDeletions) CreateMany(_ context.Context, logs []models.DeletionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range logs {
		l.Prepare()
		f.logs = append(f.logs, l)
	}
	return nil
}

func (f *fakeDeletions) FindEligible(_ context.Context, topicID uuid.UUID, sel models.RollbackSelector) ([]models.DeletionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[uuid.UUID]bool, len(sel.DeletionLogIDs))
	for _, id := range sel.DeletionLogIDs {
		ids[id] = true
	}
	var out []models.DeletionLog
	for _, l := range f.logs {
		if l.TopicID != topicID || l.IsRolledBack {
			continue
		}
		if len(ids) > 0 && ids[l.ID] || len(ids) == 0 && sel.DeletionBatchID != nil && *sel.DeletionBatchID == l.DeletionBatchID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeDeletions) MarkRolledBack(_ context.Context, ids []uuid.UUID, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flipErr != nil {
		return nil, f.flipErr
	}
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var flipped []uuid.UUID
	now := time.Now()
	for i := range f.logs {
		l := &f.logs[i]
		if want[l.ID] && !l.IsRolledBack {
			l.IsRolledBack = true
			l.RolledBackAt = &now
			l.RolledBackByID = &userID
			flipped = append(flipped, l.ID)
		}
	}
	return flipped, nil
}

func (f *fakeDeletions) ListByTopic(_ context.Context, filter models.DeletionLogFilter) ([]models.DeletionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeletionLog
	for _, l := range f.logs {
		if l.TopicID != filter.TopicID {
			continue
		}
		if filter.IsRolledBack != nil && l.IsRolledBack != *filter.IsRolledBack {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeDeletions) byPK(pk string) models.DeletionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.RecordPrimaryKeyValue == pk {
			return l
		}
	}
	return models.DeletionLog{}
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Prepare()
	for _, u := range f.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUsers) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (f *fakeUsers) CountUsers(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

func (f *fakeUsers) add(role string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.users[id] = &models.User{ID: id, Email: id.String() + "@example.com", Role: role}
	return id
}

type fakePermissions struct {
	mu    sync.Mutex
	perms map[[2]uuid.UUID]models.UserTopicPermission
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{perms: map[[2]uuid.UUID]models.UserTopicPermission{}}
}

func (f *fakePermissions) Get(_ context.Context, userID, topicID uuid.UUID) (*models.UserTopicPermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[[2]uuid.UUID{userID, topicID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakePermissions) Upsert(_ context.Context, perm *models.UserTopicPermission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms[[2]uuid.UUID{perm.UserID, perm.TopicID}] = *perm
	return nil
}

func (f *fakePermissions) ListByTopic(_ context.Context, topicID uuid.UUID) ([]models.UserTopicPermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserTopicPermission
	for k, p := range f.perms {
		if k[1] == topicID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSystemLogs struct {
	mu      sync.Mutex
	entries []models.SystemLog
	err     error
}

func (f *fakeSystemLogs) Create(_ context.Context, entry *models.SystemLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	entry.Prepare()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeSystemLogs) List(_ context.Context, filter models.SystemLogFilter) ([]models.SystemLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SystemLog
	for _, e := range f.entries {
		if filter.ActionType != "" && !strings.Contains(e.ActionType, filter.ActionType) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	total := int64(len(out))
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	end := min(filter.Offset+filter.Limit, len(out))
	return out[filter.Offset:end], total, nil
}

func (f *fakeSystemLogs) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.ActionType
	}
	return out
}

var errFlip = errors.New("ledger unavailable")

// harness wires the services to in-memory ledgers and a sqlite target.
type harness struct {
	topics     *fakeTopics
	importLogs *fakeImportLogs
	failedRows *fakeFailedRows
	deletions  *fakeDeletions
	users      *fakeUsers
	perms      *fakePermissions
	systemLogs *fakeSystemLogs

	audit  *AuditService
	access *PermissionService
	engine *target.Engine

	admin    uuid.UUID
	member   uuid.UUID
	outsider uuid.UUID
	topic    *models.Topic
}

func orderMappingInputs() []MappingInput {
	no := false
	return []MappingInput{
		{SourceColumnName: "ID", TargetColumnName: "id", DataType: "INT", IsPrimaryKey: true, AllowNull: &no},
		{SourceColumnName: "Amount", TargetColumnName: "amount", DataType: "DECIMAL(10,2)"},
		{SourceColumnName: "Order Date", TargetColumnName: "order_date", DataType: "DATE"},
		{SourceColumnName: "Customer", TargetColumnName: "customer", DataType: "VARCHAR(100)", IsIndex: true},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		topics:     newFakeTopics(),
		importLogs: newFakeImportLogs(),
		failedRows: newFakeFailedRows(),
		deletions:  &fakeDeletions{},
		users:      newFakeUsers(),
		perms:      newFakePermissions(),
		systemLogs: &fakeSystemLogs{},
		engine:     target.NewEngine(target.Options{ConnectTimeout: 5 * time.Second}),
	}
	h.audit = NewAuditService(h.systemLogs)
	h.access = NewPermissionService(h.users, h.perms, h.topics, h.audit)
	t.Cleanup(h.audit.Wait)

	h.admin = h.users.add(models.RoleAdmin)
	h.member = h.users.add(models.RoleUser)
	h.outsider = h.users.add(models.RoleUser)

	topic, err := h.topicService().Create(context.Background(), h.admin, CreateTopicRequest{
		Name: "orders",
		Target: TargetInput{
			Dialect:  models.DialectSQLite,
			Database: filepath.Join(t.TempDir(), "target.db"),
			Table:    "orders",
		},
		Mappings: orderMappingInputs(),
	})
	require.NoError(t, err)
	h.topic = topic

	_, err = h.access.Grant(context.Background(), h.admin, topic.ID, GrantRequest{
		UserID:        h.member,
		CanImport:     true,
		CanViewData:   true,
		CanDeleteData: true,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) topicService() *TopicService {
	return NewTopicService(h.topics, h.access, h.engine, h.audit)
}

func (h *harness) importService(strict bool) *ImportService {
	return NewImportService(ImportServiceConfig{
		Topics:       h.topics,
		ImportLogs:   h.importLogs,
		FailedRows:   h.failedRows,
		Permissions:  h.access,
		Engine:       h.engine,
		Audit:        h.audit,
		SchemaStrict: strict,
	})
}

func (h *harness) dataService() *DataService {
	return NewDataService(h.topics, h.deletions, h.access, h.engine, nil, h.audit)
}

func (h *harness) rollbackService() *RollbackService {
	return NewRollbackService(h.topics, h.deletions, h.access, h.engine, nil, h.audit)
}

func (h *harness) logService() *LogService {
	return NewLogService(h.importLogs, h.failedRows, h.deletions, h.systemLogs, h.access)
}

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// importCSV imports content as the member and fails the test on error.
func (h *harness) importCSV(t *testing.T, content string) *ImportResult {
	t.Helper()
	res, err := h.importService(false).Import(context.Background(), ImportRequest{
		UserID:       h.member,
		TopicID:      h.topic.ID,
		FilePath:     writeUpload(t, "upload", content),
		OriginalName: "orders.csv",
	})
	require.NoError(t, err)
	return res
}
