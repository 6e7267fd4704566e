// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

// Package errs defines the typed error kinds the metadata-directory builder
// can fail with. Each carries the offending token or object identity and a
// short contextual string, and is built on cockroachdb/errors so callers get
// errors.Is/errors.As support plus a recorded stack trace instead of a flat
// string.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind enumerates the builder failure categories.
type Kind int

const (
	// MemberNotImported is returned when an Add* call receives an object
	// owned by a different module than the builder's.
	MemberNotImported Kind = iota
	// DuplicateRid is returned when a preferred RID conflicts with an
	// already-occupied slot and reuse is disallowed.
	DuplicateRid
	// UnfilledRow is returned when a table has placeholder gaps left at
	// CreateDirectory time.
	UnfilledRow
	// IndexOverflow is returned when a heap exceeds 2^32-1 bytes or a table
	// exceeds 2^24-1 rows.
	IndexOverflow
	// InvalidSignature is returned when a signature walker encounters an
	// element type outside ECMA §II.23.1.16.
	InvalidSignature
	// InvalidCil is returned when a method body references an operand kind
	// that is not a valid token or string.
	InvalidCil
	// InvalidCodedIndex is returned when a token cannot be represented in a
	// requested coded-index category.
	InvalidCodedIndex
	// BuilderSpent is returned when Add* or CreateDirectory is called after
	// CreateDirectory has already produced a directory.
	BuilderSpent
)

func (k Kind) String() string {
	switch k {
	case MemberNotImported:
		return "member not imported"
	case DuplicateRid:
		return "duplicate rid"
	case UnfilledRow:
		return "unfilled row"
	case IndexOverflow:
		return "index overflow"
	case InvalidSignature:
		return "invalid signature"
	case InvalidCil:
		return "invalid cil"
	case InvalidCodedIndex:
		return "invalid coded index"
	case BuilderSpent:
		return "builder spent"
	default:
		return "unknown"
	}
}

// BuilderError is the concrete error type every builder failure surfaces
// as. Identity is either a Token (already-assigned) or an arbitrary object
// reference (not yet imported); exactly one is meaningful per Kind.
type BuilderError struct {
	Kind    Kind
	Token   uint32 // meaningful when > 0 or Kind doesn't need an object
	Object  any    // the offending source object, when Token == 0
	Context string
	cause   error
}

// Error implements error.
func (e *BuilderError) Error() string {
	if e.Object != nil {
		return fmt.Sprintf("%s: %s (object %v)", e.Kind, e.Context, e.Object)
	}
	return fmt.Sprintf("%s: %s (token 0x%08x)", e.Kind, e.Context, e.Token)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *BuilderError) Unwrap() error { return e.cause }

// New builds a BuilderError carrying a source-object identity.
func New(kind Kind, object any, context string) error {
	return errors.WithStack(&BuilderError{Kind: kind, Object: object, Context: context})
}

// NewToken builds a BuilderError carrying an already-assigned token.
func NewToken(kind Kind, tok uint32, context string) error {
	return errors.WithStack(&BuilderError{Kind: kind, Token: tok, Context: context})
}

// Wrap attaches a Kind/context to an existing error without discarding it.
func Wrap(err error, kind Kind, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s: %s", kind, context)
}

// Is reports whether err is a BuilderError of the given Kind.
func Is(err error, kind Kind) bool {
	var be *BuilderError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
