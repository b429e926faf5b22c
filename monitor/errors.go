package monitor

import (
	"fmt"

	"github.com/go-errors/errors"
)

// ErrorKind classifies the failure modes described in spec.md §7. Policy
// (what's retried, what's fatal) lives in the engine; this type just lets
// callers branch on what went wrong.
type ErrorKind int

const (
	ErrKindIndexerTransient ErrorKind = iota
	ErrKindIndexerFatal
	ErrKindStore
	ErrKindDeepReorg
	ErrKindSchema
	ErrKindDuplicateActive
	ErrKindNotFound
	ErrKindNotMonitored
	ErrKindBusy
	ErrKindInterrupted
	ErrKindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindIndexerTransient:
		return "IndexerTransient"
	case ErrKindIndexerFatal:
		return "IndexerFatal"
	case ErrKindStore:
		return "Store"
	case ErrKindDeepReorg:
		return "DeepReorg"
	case ErrKindSchema:
		return "SchemaError"
	case ErrKindDuplicateActive:
		return "DuplicateActive"
	case ErrKindNotFound:
		return "NotFound"
	case ErrKindNotMonitored:
		return "NotMonitored"
	case ErrKindBusy:
		return "Busy"
	case ErrKindInterrupted:
		return "Interrupted"
	case ErrKindConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a classification and a stack trace
// (via go-errors/errors, the teacher's own error library) so operators get
// a useful trace out of a failed tick without the engine needing its own
// tracing machinery.
type Error struct {
	Kind  ErrorKind
	cause *errors.Error
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  kind,
		cause: errors.Wrap(fmt.Errorf(format, args...), 1),
	}
}

func WrapError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, 1)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.cause.Error())
}

func (e *Error) Unwrap() error {
	return e.cause.Err
}

// ErrorStack returns the underlying go-errors stack trace, useful for
// operator-facing diagnostics on a failed tick.
func (e *Error) ErrorStack() string {
	return e.cause.ErrorStack()
}

// Is supports errors.Is against any *Error by comparing Kind alone, letting
// callers write `errors.Is(err, monitor.ErrBusy)`.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel errors for the fixed-kind cases callers commonly branch on.
var (
	ErrBusy         = &Error{Kind: ErrKindBusy, cause: errors.Wrap(fmt.Errorf("tick already in progress"), 1)}
	ErrInterrupted  = &Error{Kind: ErrKindInterrupted, cause: errors.Wrap(fmt.Errorf("tick deadline elapsed"), 1)}
	ErrNotFound     = &Error{Kind: ErrKindNotFound, cause: errors.Wrap(fmt.Errorf("monitor not found"), 1)}
	ErrNotMonitored = &Error{Kind: ErrKindNotMonitored, cause: errors.Wrap(fmt.Errorf("transaction not monitored"), 1)}
)
