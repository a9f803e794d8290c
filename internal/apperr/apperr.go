package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindUnauthorized
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// Error is a failure that carries a user-facing message and the HTTP class it maps to.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error      { return &Error{Kind: KindValidation, Msg: msg} }
func InvalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Msg: msg} }
func NotFound(msg string) error        { return &Error{Kind: KindNotFound, Msg: msg} }
func Conflict(msg string) error        { return &Error{Kind: KindConflict, Msg: msg} }
func Unauthorized(msg string) error    { return &Error{Kind: KindUnauthorized, Msg: msg} }

func ExternalService(msg string, cause error) error {
	return &Error{Kind: KindExternalService, Msg: msg, Err: cause}
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// Message returns the user-facing message. Internal errors get a generic one so
// driver details never reach the client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindExternalService && e.Err != nil {
			return e.Error()
		}
		return e.Msg
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
