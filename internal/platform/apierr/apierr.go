package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUpstream     = "upstream_error"
	CodeUnavailable  = "upstream_unavailable"
	CodeInternal     = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e != nil && (e.Code == CodeUpstream || e.Code == CodeUnavailable)
}

// Public reports whether the message is safe to return to the caller verbatim.
func (e *Error) Public() bool {
	return e != nil && e.Status < http.StatusInternalServerError
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, errors.New(msg))
}

func Forbidden(msg string) *Error {
	return New(http.StatusForbidden, CodeForbidden, errors.New(msg))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

// Upstream wraps a failure of an external dependency. Timeouts and an open
// circuit map to 503, everything else to 502.
func Upstream(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return New(http.StatusServiceUnavailable, CodeUnavailable, err)
	}
	return New(http.StatusBadGateway, CodeUpstream, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// ErrUnavailable marks an upstream that refused work without being called
// (open breaker, exhausted limiter).
var ErrUnavailable = errors.New("upstream unavailable")

// From classifies any error into an *Error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return New(http.StatusNotFound, CodeNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return New(http.StatusConflict, CodeConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return New(http.StatusConflict, CodeConflict, err)
		case "23503", "23514": // foreign_key_violation, check_violation
			return New(http.StatusBadRequest, CodeValidation, err)
		case "40001", "40P01", "55P03": // serialization, deadlock, lock_not_available
			return New(http.StatusServiceUnavailable, CodeUnavailable, err)
		}
	}
	return Internal(err)
}
