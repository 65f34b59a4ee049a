package dberr

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	uniqueFailed  = regexp.MustCompile(`UNIQUE constraint failed: ([^\n]+)`)
	notNullFailed = regexp.MustCompile(`NOT NULL constraint failed: ([^\n]+)`)
	checkFailed   = regexp.MustCompile(`CHECK constraint failed: ([^\n]+)`)
	foreignKey    = regexp.MustCompile(`FOREIGN KEY constraint failed`)
)

var busyMessages = []string{
	"database is locked",
	"database table is locked",
	"database schema is locked",
	"sqlite_busy",
	"sqlite_locked",
}

var syntaxMessages = []string{
	"syntax error",
	"incomplete input",
	"unrecognized token",
	"no such table",
	"no such column",
	"no such function",
	"no such index",
	"no such savepoint",
	"has no column named",
	"already exists",
	"ambiguous column name",
}

var connectionMessages = []string{
	"unable to open database",
	"file is not a database",
	"database disk image is malformed",
	"sql: database is closed",
	"sql: connection is already closed",
}

// Map classifies a raw engine failure. It is the only place engine failures become *Error.
// An *Error passed in is returned unchanged; nil maps to nil.
func Map(raw error) *Error {
	if raw == nil {
		return nil
	}

	var mapped *Error
	if errors.As(raw, &mapped) {
		return mapped
	}

	if errors.Is(raw, context.Canceled) || errors.Is(raw, context.DeadlineExceeded) {
		return &Error{Kind: KindEngine, Message: raw.Error(), Cause: raw}
	}

	var native sqlite3.Error
	if errors.As(raw, &native) {
		return mapNative(native, raw)
	}

	return mapMessage(raw.Error(), 0, raw)
}

func mapNative(native sqlite3.Error, raw error) *Error {
	msg := native.Error()
	code := int(native.ExtendedCode)
	if code == 0 {
		code = int(native.Code)
	}

	switch native.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &Error{Kind: KindBusy, Message: msg, Retryable: true, Code: code, Cause: raw}

	case sqlite3.ErrConstraint:
		e := &Error{Kind: KindConstraint, Message: msg, Code: code, Cause: raw}
		e.Constraint = constraintFromExtended(native.ExtendedCode, msg)
		return e

	case sqlite3.ErrMismatch:
		return &Error{Kind: KindTypeMismatch, Message: msg, Code: code, Cause: raw}

	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrAuth, sqlite3.ErrPerm:
		return &Error{Kind: KindConnection, Message: msg, Code: code, Cause: raw}
	}

	return mapMessage(msg, code, raw)
}

func constraintFromExtended(ext sqlite3.ErrNoExtended, msg string) *Constraint {
	c := constraintFromMessage(msg)
	switch ext {
	case sqlite3.ErrConstraintUnique:
		c.Type = ConstraintUnique
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintRowID:
		c.Type = ConstraintPrimaryKey
	case sqlite3.ErrConstraintForeignKey:
		c.Type = ConstraintForeignKey
	case sqlite3.ErrConstraintCheck:
		c.Type = ConstraintCheck
	case sqlite3.ErrConstraintNotNull:
		c.Type = ConstraintNotNull
	}
	return c
}

func constraintFromMessage(msg string) *Constraint {
	if m := uniqueFailed.FindStringSubmatch(msg); m != nil {
		return &Constraint{Type: ConstraintUnique, Name: cleanName(m[1])}
	}
	if m := notNullFailed.FindStringSubmatch(msg); m != nil {
		return &Constraint{Type: ConstraintNotNull, Name: cleanName(m[1])}
	}
	if m := checkFailed.FindStringSubmatch(msg); m != nil {
		return &Constraint{Type: ConstraintCheck, Name: cleanName(m[1])}
	}
	if foreignKey.MatchString(msg) {
		return &Constraint{Type: ConstraintForeignKey}
	}
	return &Constraint{Type: ConstraintUnknown}
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "`"))
}

func mapMessage(msg string, code int, raw error) *Error {
	lower := strings.ToLower(msg)

	if c := constraintFromMessage(msg); c.Type != ConstraintUnknown {
		return &Error{Kind: KindConstraint, Message: msg, Constraint: c, Code: code, Cause: raw}
	}
	if strings.Contains(lower, "constraint failed") {
		return &Error{Kind: KindConstraint, Message: msg, Constraint: &Constraint{Type: ConstraintUnknown}, Code: code, Cause: raw}
	}
	if containsAny(lower, busyMessages) {
		return &Error{Kind: KindBusy, Message: msg, Retryable: true, Code: code, Cause: raw}
	}
	if strings.Contains(lower, "datatype mismatch") {
		return &Error{Kind: KindTypeMismatch, Message: msg, Code: code, Cause: raw}
	}
	if containsAny(lower, syntaxMessages) {
		return &Error{Kind: KindSyntax, Message: msg, Code: code, Cause: raw}
	}
	if containsAny(lower, connectionMessages) {
		return &Error{Kind: KindConnection, Message: msg, Code: code, Cause: raw}
	}
	return &Error{Kind: KindEngine, Message: msg, Code: code, Cause: raw}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
