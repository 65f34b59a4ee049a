package client

import (
	"github.com/satishbabariya/litesql/internal/core/dberr"
)

// Error is the typed error returned by every client operation.
type Error = dberr.Error

// Kind classifies an Error.
type Kind = dberr.Kind

// Constraint describes a violated constraint.
type Constraint = dberr.Constraint

// ConstraintType names the constraint family that was violated.
type ConstraintType = dberr.ConstraintType

// Sentinel errors for errors.Is checks.
var (
	ErrCompile        = dberr.ErrCompile
	ErrEncoding       = dberr.ErrEncoding
	ErrDecode         = dberr.ErrDecode
	ErrConnection     = dberr.ErrConnection
	ErrConfiguration  = dberr.ErrConfiguration
	ErrConstraint     = dberr.ErrConstraint
	ErrBusy           = dberr.ErrBusy
	ErrSyntax         = dberr.ErrSyntax
	ErrTypeMismatch   = dberr.ErrTypeMismatch
	ErrPoolTimeout    = dberr.ErrPoolTimeout
	ErrTransaction    = dberr.ErrTransaction
	ErrEngine         = dberr.ErrEngine
	ErrPoolClosed     = dberr.ErrPoolClosed
	ErrRetryExhausted = dberr.ErrRetryExhausted
)

// Constraint types.
const (
	ConstraintUnique     = dberr.ConstraintUnique
	ConstraintPrimaryKey = dberr.ConstraintPrimaryKey
	ConstraintForeignKey = dberr.ConstraintForeignKey
	ConstraintCheck      = dberr.ConstraintCheck
	ConstraintNotNull    = dberr.ConstraintNotNull
	ConstraintUnknown    = dberr.ConstraintUnknown
)

// IsRetryable checks if an error may succeed when the operation is reissued later.
func IsRetryable(err error) bool {
	return dberr.IsRetryable(err)
}

// IsConstraint checks if an error is a constraint violation.
func IsConstraint(err error) bool {
	return dberr.IsConstraint(err)
}

// IsUniqueConstraint checks if an error is a unique or primary key violation.
func IsUniqueConstraint(err error) bool {
	return dberr.IsUniqueConstraint(err)
}

// IsPoolTimeout checks if an error is an expired checkout.
func IsPoolTimeout(err error) bool {
	return dberr.IsPoolTimeout(err)
}

// KindOf returns the Kind of err.
func KindOf(err error) Kind {
	return dberr.KindOf(err)
}
