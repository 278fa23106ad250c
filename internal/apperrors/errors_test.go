package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("no mappings"), http.StatusBadRequest},
		{"permission", Permission("cannot import"), http.StatusForbidden},
		{"not found", NotFound("topic not found"), http.StatusNotFound},
		{"provisioning", Provisioning(cause, "create table"), http.StatusInternalServerError},
		{"target connection", TargetConnection(cause, "open target"), http.StatusServiceUnavailable},
		{"target schema", TargetSchema(cause, "select"), http.StatusNotFound},
		{"wrapped", fmt.Errorf("query data: %w", TargetConnection(cause, "open")), http.StatusServiceUnavailable},
		{"plain", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorsIsMatchesKindSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("ensure table: %w", Provisioning(errors.New("syntax"), "create table orders"))

	assert.True(t, errors.Is(err, ErrProvisioning))
	assert.False(t, errors.Is(err, ErrTargetConnection))
	assert.Equal(t, "PROV", KindOf(err).code())
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("access denied")
	err := TargetConnection(cause, "open target %s", "sales")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "open target sales: access denied", err.Error())
	assert.Contains(t, Message(err), "Check the topic configuration")
	assert.Equal(t, "Internal server error", Message(cause))
	assert.Equal(t, "no mappings", Message(Validation("no mappings")))
}
