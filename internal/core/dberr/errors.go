// Package dberr defines the error taxonomy shared by every litesql layer.
package dberr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	// KindCompile marks a malformed query AST.
	KindCompile Kind = "compile"
	// KindEncoding marks a value that cannot be represented on the wire.
	KindEncoding Kind = "encoding"
	// KindDecode marks a result that does not fit the expected shape or type.
	KindDecode Kind = "decode"
	// KindConnection marks an open, authentication or closed-connection failure.
	KindConnection Kind = "connection"
	// KindConfiguration marks an invalid or unsupported engine option.
	KindConfiguration Kind = "configuration"
	// KindConstraint marks a constraint violation reported by the engine.
	KindConstraint Kind = "constraint"
	// KindBusy marks lock contention; always retryable.
	KindBusy Kind = "busy"
	// KindSyntax marks SQL the engine could not prepare.
	KindSyntax Kind = "syntax"
	// KindTypeMismatch marks a datatype mismatch reported by the engine.
	KindTypeMismatch Kind = "type_mismatch"
	// KindPoolTimeout marks a connection checkout that expired.
	KindPoolTimeout Kind = "pool_timeout"
	// KindTransaction marks misuse of the transaction state machine.
	KindTransaction Kind = "transaction"
	// KindEngine marks any other engine failure.
	KindEngine Kind = "engine"
)

// Sentinel errors, one per Kind, for errors.Is checks.
var (
	ErrCompile       = errors.New("litesql: compile error")
	ErrEncoding      = errors.New("litesql: encoding error")
	ErrDecode        = errors.New("litesql: decode error")
	ErrConnection    = errors.New("litesql: connection error")
	ErrConfiguration = errors.New("litesql: configuration error")
	ErrConstraint    = errors.New("litesql: constraint violation")
	ErrBusy          = errors.New("litesql: database is busy")
	ErrSyntax        = errors.New("litesql: syntax error")
	ErrTypeMismatch  = errors.New("litesql: datatype mismatch")
	ErrPoolTimeout   = errors.New("litesql: pool checkout timeout")
	ErrTransaction   = errors.New("litesql: transaction error")
	ErrEngine        = errors.New("litesql: engine error")

	// ErrPoolClosed is returned when a pool is used after Shutdown.
	ErrPoolClosed = errors.New("litesql: pool is shut down")

	// ErrRetryExhausted is wrapped by busy errors that ran out of attempts.
	ErrRetryExhausted = errors.New("litesql: retry attempts exhausted")
)

var sentinels = map[Kind]error{
	KindCompile:       ErrCompile,
	KindEncoding:      ErrEncoding,
	KindDecode:        ErrDecode,
	KindConnection:    ErrConnection,
	KindConfiguration: ErrConfiguration,
	KindConstraint:    ErrConstraint,
	KindBusy:          ErrBusy,
	KindSyntax:        ErrSyntax,
	KindTypeMismatch:  ErrTypeMismatch,
	KindPoolTimeout:   ErrPoolTimeout,
	KindTransaction:   ErrTransaction,
	KindEngine:        ErrEngine,
}

// ConstraintType names the constraint family that was violated.
type ConstraintType string

const (
	ConstraintUnique     ConstraintType = "unique"
	ConstraintPrimaryKey ConstraintType = "primary_key"
	ConstraintForeignKey ConstraintType = "foreign_key"
	ConstraintCheck      ConstraintType = "check"
	ConstraintNotNull    ConstraintType = "not_null"
	ConstraintUnknown    ConstraintType = "unknown"
)

// Constraint describes the violated constraint.
type Constraint struct {
	Type ConstraintType
	// Name is the constraint, index or column list the engine reported; empty when unknown.
	Name string
}

// Error is the single typed error returned across litesql boundaries.
type Error struct {
	// Kind is the error class.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Constraint is set for KindConstraint.
	Constraint *Constraint

	// Retryable reports whether reissuing the same operation later may succeed.
	Retryable bool

	// Code is the engine's native result code, when one was reported.
	Code int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Constraint != nil && e.Constraint.Name != "" {
		return fmt.Sprintf("litesql [%s/%s %s]: %s", e.Kind, e.Constraint.Type, e.Constraint.Name, e.Message)
	}
	return fmt.Sprintf("litesql [%s]: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's Kind, then falls back to the cause chain.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Kind]; ok && s == target {
		return true
	}
	if target == ErrRetryExhausted {
		return errors.Is(e.Cause, target)
	}
	return false
}

func newf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// NewCompileError reports a malformed AST.
func NewCompileError(format string, args ...interface{}) *Error {
	return newf(KindCompile, nil, format, args...)
}

// NewEncodingError reports a value that cannot be converted.
func NewEncodingError(format string, args ...interface{}) *Error {
	return newf(KindEncoding, nil, format, args...)
}

// NewDecodeError reports a result that does not fit the expected shape.
func NewDecodeError(format string, args ...interface{}) *Error {
	return newf(KindDecode, nil, format, args...)
}

// NewConfigurationError reports an invalid engine option.
func NewConfigurationError(format string, args ...interface{}) *Error {
	return newf(KindConfiguration, nil, format, args...)
}

// NewConnectionError reports an open or authentication failure.
func NewConnectionError(cause error, format string, args ...interface{}) *Error {
	return newf(KindConnection, cause, format, args...)
}

// NewPoolTimeoutError reports an expired checkout.
func NewPoolTimeoutError(cause error, format string, args ...interface{}) *Error {
	return newf(KindPoolTimeout, cause, format, args...)
}

// NewTransactionError reports state machine misuse.
func NewTransactionError(format string, args ...interface{}) *Error {
	return newf(KindTransaction, nil, format, args...)
}

// WithCause sets the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// IsRetryable reports whether err is a retryable litesql error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}

// IsUniqueConstraint reports whether err is a unique or primary key violation.
func IsUniqueConstraint(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Constraint == nil {
		return false
	}
	return e.Constraint.Type == ConstraintUnique || e.Constraint.Type == ConstraintPrimaryKey
}

// IsPoolTimeout reports whether err is an expired pool checkout.
func IsPoolTimeout(err error) bool {
	return errors.Is(err, ErrPoolTimeout)
}

// KindOf returns the Kind of err, or KindEngine for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngine
}
