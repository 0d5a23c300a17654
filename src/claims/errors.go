package claims

import "errors"

type ErrorCode string

const (
	ErrorInvalid     ErrorCode = "invalid"
	ErrorNotFound    ErrorCode = "not_found"
	ErrorConflict    ErrorCode = "conflict"
	ErrorForbidden   ErrorCode = "forbidden"
	ErrorRateLimited ErrorCode = "rate_limited"
)

// Error is the client-facing failure taxonomy of the claims engine. External
// dependency failures (AI scorer, evidence store) never surface here; they
// are always recovered locally.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewInvalidError(msg string) error     { return &Error{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error    { return &Error{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error    { return &Error{Code: ErrorConflict, Message: msg} }
func NewForbiddenError(msg string) error   { return &Error{Code: ErrorForbidden, Message: msg} }
func NewRateLimitedError(msg string) error { return &Error{Code: ErrorRateLimited, Message: msg} }

func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
