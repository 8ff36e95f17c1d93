package apperrors

import (
	"errors"
	"net/http"

	"kazi/translator"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindAuthorization
	KindNotFound
	KindConflict
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	default:
		return "internal"
	}
}

// Error is the error type returned across service boundaries. MessageID keys
// the translation bundles; Message is the English text.
type Error struct {
	Kind      Kind
	MessageID string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, id string) *Error {
	return &Error{Kind: kind, MessageID: id, Message: DefaultMessage(id)}
}

func Wrap(kind Kind, id string, cause error) *Error {
	e := New(kind, id)
	e.Err = cause
	return e
}

func Validation(id string) *Error      { return New(KindValidation, id) }
func Unauthenticated(id string) *Error { return New(KindUnauthenticated, id) }
func Authorization(id string) *Error   { return New(KindAuthorization, id) }
func NotFound(id string) *Error        { return New(KindNotFound, id) }
func Conflict(id string) *Error        { return New(KindConflict, id) }

func Gateway(id string, cause error) *Error {
	return Wrap(KindGateway, id, cause)
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, MsgInternal, cause)
}

// KindOf reports the kind of err; anything that is not an *Error is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// LocalizedMessage renders err for a client in lang. Internal errors never
// leak their cause.
func LocalizedMessage(err error, lang string) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return translator.Localize(lang, MsgInternal, DefaultMessage(MsgInternal))
	}
	return translator.Localize(lang, e.MessageID, e.Message)
}

// Message localizes a bare message id.
func Message(id, lang string) string {
	return translator.Localize(lang, id, DefaultMessage(id))
}
