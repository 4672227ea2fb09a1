// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package errs declares the error taxonomy shared by every layer of the
// video pipeline. Domain code never panics or throws across a layer
// boundary; it returns one of these kinds wrapped with context via %w.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// queue redelivery decisions.
type Kind int

const (
	Internal Kind = iota
	Validation
	PolicyViolation
	NotFound
	InvalidStatusTransition
	StaleUpdate
	StoreUnavailable
	StoreRejected
	ParseError
	NonRetryable
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case PolicyViolation:
		return "PolicyViolation"
	case NotFound:
		return "NotFound"
	case InvalidStatusTransition:
		return "InvalidStatusTransition"
	case StaleUpdate:
		return "StaleUpdate"
	case StoreUnavailable:
		return "StoreUnavailable"
	case StoreRejected:
		return "StoreRejected"
	case ParseError:
		return "ParseError"
	case NonRetryable:
		return "NonRetryable"
	default:
		return "Internal"
	}
}

// Error is a typed, wrappable error carrying a Kind.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the classification of err, or Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}

// Is makes errors.Is(err, target) match when target is (or wraps) an *Error
// of the same Kind, comparing classifications rather than identity. A bare
// Kind is not an error value; use KindOf or IsKind to test for one.
func (e *Error) Is(target error) bool {
	var k *Error
	if errors.As(target, &k) {
		return e.kind == k.kind
	}
	return false
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with kind and a message, preserving err for
// errors.Unwrap/errors.As chains.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

func Newf(kind Kind, format string, args ...any) error { return newf(kind, format, args...) }

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Sentinels for common, identity-comparable cases used with errors.Is.
var (
	ErrNotFound                = newf(NotFound, "not found")
	ErrInvalidStatusTransition = newf(InvalidStatusTransition, "invalid status transition")
	ErrStaleUpdate             = newf(StaleUpdate, "stale update")
)
