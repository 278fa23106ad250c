package target

import (
	"context"

	"topic_importer/internal/apperrors"
	"topic_importer/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

type QueryOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Filters   []Filter
}

func (o *QueryOptions) normalize() {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
}

type QueryResult struct {
	Data        []map[string]any `json:"data"`
	Total       int64            `json:"total"`
	TotalPages  int64            `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

// Query reads one page of mapped columns. Sort and filter columns that are not
// mapped are ignored.
func (e *Engine) Query(ctx context.Context, desc models.TargetDescriptor, mappings []models.ColumnMapping, opts QueryOptions) (*QueryResult, error) {
	opts.normalize()

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

	query, args := b.selectPage(opts)
	rows, err := sess.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(d, err, apperrors.KindInternal, "failed to read %s", desc.Table)
	}
	data, err := scanRows(rows)
	rows.Close()
	if err != nil {
		return nil, classify(d, err, apperrors.KindInternal, "failed to read %s", desc.Table)
	}

	countQuery, countArgs := b.count(opts.Filters)
	var total int64
	if err := sess.conn.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, classify(d, err, apperrors.KindInternal, "failed to count %s", desc.Table)
	}

	totalPages := total / int64(opts.Limit)
	if total%int64(opts.Limit) != 0 {
		totalPages++
	}

	return &QueryResult{
		Data:        data,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: opts.Page,
	}, nil
}
