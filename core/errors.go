package core

import (
	"errors"
	"strings"
)

// ErrConfiguration groups every failure raised while resolving sets and backends.
var ErrConfiguration = errors.New("accesslog: configuration error")

var (
	ErrUnknownStoreBackend = configError("unknown store backend")
	ErrMissingStoreOption  = configError("missing store option")
	ErrInvalidStoreOption  = configError("invalid store option")
	ErrUnknownAttribute    = configError("unknown attribute source")
	ErrInvalidSet          = configError("invalid set")
)

// Per-event and backend failures.
var (
	ErrMissingIdentityField = errors.New("missing identity field")
	ErrMissingServiceField  = errors.New("missing service field")
	ErrConnection           = errors.New("store connection failed")
	ErrBind                 = errors.New("store parameter binding failed")
	ErrExecution            = errors.New("store statement execution failed")
)

type kindError struct{ msg string }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(msg string) error { return &kindError{msg: msg} }

// Error carries the failing operation, set and table next to the taxonomy kind and
// the underlying cause (usually the backend's native error).
type Error struct {
	Op    string
	Set   string
	Table string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("accesslog")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	if e.Set != "" {
		b.WriteString(" set=" + e.Set)
	}
	if e.Table != "" {
		b.WriteString(" table=" + e.Table)
	}
	if e.Kind != nil {
		b.WriteString(": " + e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WithSet returns err annotated with the set name when it is an *Error without one.
func WithSet(err error, set string) error {
	var e *Error
	if errors.As(err, &e) && e.Set == "" {
		cp := *e
		cp.Set = set
		return &cp
	}
	return err
}
