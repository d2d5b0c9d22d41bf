// Package errs defines the typed error taxonomy surfaced to callers of the
// provider façade (§7 of the specification). Every error the core raises,
// whether from the item-ID algebra, the HTTP error translator, or a
// handler's own bookkeeping, is a *Error with one of the Kind values below.
package errs

import "fmt"

// Kind classifies an Error so callers (and the IPC boundary that maps
// these onto the framework's own exception taxonomy) can branch on it
// without string matching.
type Kind int

const (
	// Unknown is used for anything that doesn't fit another kind; its
	// message is conventionally "HTTP <code>: <message>".
	Unknown Kind = iota
	// InvalidArgument: malformed ID or name, illegal page token.
	InvalidArgument
	// RemoteComms: transport failure, 400, malformed Multi-Status,
	// unexpected PROPFIND status, short transfer.
	RemoteComms
	// Permission: 401, 403, 451.
	Permission
	// NotExists: 404, 410. Carries the item ID that was not found.
	NotExists
	// Exists: 405 on MKCOL over an existing resource.
	Exists
	// Conflict: 409, 412.
	Conflict
	// Quota: 507.
	Quota
	// Resource: local pipe I/O error.
	Resource
	// Logic: misuse, e.g. finish() called before streaming completed.
	Logic
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case RemoteComms:
		return "RemoteComms"
	case Permission:
		return "Permission"
	case NotExists:
		return "NotExists"
	case Exists:
		return "Exists"
	case Conflict:
		return "Conflict"
	case Quota:
		return "Quota"
	case Resource:
		return "Resource"
	case Logic:
		return "Logic"
	default:
		return "Unknown"
	}
}

// Error is the single error type the core ever returns. ItemID is set
// when the error carries an item-id key (NotExists, Exists).
type Error struct {
	Kind    Kind
	Message string
	ItemID  string
	cause   error
}

func (e *Error) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: %s (item %s)", e.Kind, e.Message, e.ItemID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a plain message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithItemID attaches an item ID to an Error, returning it for chaining.
func (e *Error) WithItemID(id string) *Error {
	e.ItemID = id
	return e
}

// Wrap builds an Error of the given kind, recording err as its cause so
// that errors.Is/errors.As can still see through to the original error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether err is an *Error of kind k, so callers can write
// errs.Is(err, errs.NotExists) instead of type-asserting by hand.
func Is(err error, k Kind) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == k
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
