package flowtable

import "errors"

// ErrorKind closes the engine's error taxonomy: NONE, EXISTS,
// NOT_FOUND, RESOURCE, UNKNOWN. NONE has no Go representation — a
// successful call simply returns a nil error.
type ErrorKind int

const (
	// KindExists marks a duplicate flow id on Add.
	KindExists ErrorKind = iota

	// KindNotFound marks a missing id or a FirstMatch query (in any
	// mode) that matches no entry.
	KindNotFound

	// KindResource marks a full pool or an allocation failure.
	KindResource

	// KindUnknown marks an internal inconsistency, such as Delete
	// being called on an already-invalid entry.
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindExists:
		return "EXISTS"
	case KindNotFound:
		return "NOT_FOUND"
	case KindResource:
		return "RESOURCE"
	case KindUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN_KIND"
	}
}

// Error is returned by every engine operation that fails. Op names the
// operation that failed (e.g. "Add", "DeleteID").
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "flowtable: " + e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "flowtable: " + e.Op + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for errors.Is comparisons against a bare kind,
// e.g. errors.Is(err, flowtable.ErrNotFound).
var (
	ErrExists   = &Error{Kind: KindExists}
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrResource = &Error{Kind: KindResource}
	ErrUnknown  = &Error{Kind: KindUnknown}
)

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var errDoubleDelete = errors.New("entry id already invalid")
