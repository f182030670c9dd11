package domain

import "errors"

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindConflict
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by coordinators and stores.
// Match it with errors.Is against the Err* sentinels.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = e.Kind.String()
	}
	if e.Err != nil {
		return reason + ": " + e.Err.Error()
	}
	return reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
// A target with a reason also has to match the reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrStorage      = &Error{Kind: KindStorage}

	// ErrCursor is returned by DecodeCursor. It never leaves the pager.
	ErrCursor = errors.New("malformed cursor")
)

func Validation(reason string) error   { return &Error{Kind: KindValidation, Reason: reason} }
func NotFound(reason string) error     { return &Error{Kind: KindNotFound, Reason: reason} }
func Unauthorized(reason string) error { return &Error{Kind: KindUnauthorized, Reason: reason} }
func Conflict(reason string) error     { return &Error{Kind: KindConflict, Reason: reason} }

func Storage(reason string, err error) error {
	return &Error{Kind: KindStorage, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns a client-safe reason for err.
func ReasonOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal_error"
	}
	if e.Kind == KindStorage {
		return e.Kind.String()
	}
	if e.Reason == "" {
		return e.Kind.String()
	}
	return e.Reason
}
