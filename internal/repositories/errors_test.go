package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		dup  bool
	}{
		{name: "pgx unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), dup: true},
		{name: "gorm translated duplicate", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), dup: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "23503"}},
		{name: "plain error", err: other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			assert.Equal(t, tt.dup, errors.Is(got, ErrDuplicate))
			if !tt.dup {
				assert.Same(t, tt.err, got)
			}
		})
	}
	assert.NoError(t, translate(nil))
}
