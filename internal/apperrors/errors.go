// Package apperrors defines the error taxonomy shared by the import engine,
// the services and the HTTP handlers.
//
// Error codes are grouped by kind so that a user can quote them to support:
//
//	VAL   - request or mapping validation (400)
//	PERM  - missing topic capability (403)
//	NF    - metadata or deletion log not found (404)
//	PROV  - DDL provisioning failure on the target (500)
//	TCON  - target unreachable or credentials rejected (503)
//	TSCH  - target table missing (404)
//	INT   - anything else (500)
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPermission
	KindNotFound
	KindProvisioning
	KindTargetConnection
	KindTargetSchema
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindProvisioning:
		return "provisioning"
	case KindTargetConnection:
		return "target_connection"
	case KindTargetSchema:
		return "target_schema"
	default:
		return "internal"
	}
}

func (k Kind) code() string {
	switch k {
	case KindValidation:
		return "VAL"
	case KindPermission:
		return "PERM"
	case KindNotFound:
		return "NF"
	case KindProvisioning:
		return "PROV"
	case KindTargetConnection:
		return "TCON"
	case KindTargetSchema:
		return "TSCH"
	default:
		return "INT"
	}
}

// Error is a classified failure. Err may be nil when the message says it all.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrTargetSchema) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrPermission       = &Error{Kind: KindPermission}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrProvisioning     = &Error{Kind: KindProvisioning}
	ErrTargetConnection = &Error{Kind: KindTargetConnection}
	ErrTargetSchema     = &Error{Kind: KindTargetSchema}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.code(),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func Permission(format string, args ...any) *Error {
	return newError(KindPermission, nil, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func Provisioning(err error, format string, args ...any) *Error {
	return newError(KindProvisioning, err, format, args...)
}

func TargetConnection(err error, format string, args ...any) *Error {
	return newError(KindTargetConnection, err, format, args...)
}

func TargetSchema(err error, format string, args ...any) *Error {
	return newError(KindTargetSchema, err, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return newError(KindInternal, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the API contract assigns its kind.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound, KindTargetSchema:
		return http.StatusNotFound
	case KindTargetConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a user-facing message for err. Classified errors expose their
// own message; unclassified ones get a generic text so driver details stay in logs.
func Message(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "Internal server error"
	}
	switch appErr.Kind {
	case KindTargetConnection:
		return "Could not connect to the topic's target database. Check the topic configuration."
	case KindTargetSchema:
		return "Target table not found. It may need to be created by an import first."
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	return appErr.Kind.String()
}
