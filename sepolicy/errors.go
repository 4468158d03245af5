// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package sepolicy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure of policy handling.
type ErrorKind int

const (
	ErrKindIO ErrorKind = iota + 1
	ErrKindFormat
	ErrKindLookup
	ErrKindNameCollision
	ErrKindShortWrite
	ErrKindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindIO:
		return "i/o error"
	case ErrKindFormat:
		return "format error"
	case ErrKindLookup:
		return "lookup error"
	case ErrKindNameCollision:
		return "name collision"
	case ErrKindShortWrite:
		return "short write"
	case ErrKindConfig:
		return "configuration error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified error carrying a stack of context frames. Context
// is ordered outermost first, so the rendered message reads like a chain
// of "while doing X: while doing Y: cause".
type Error struct {
	Kind    ErrorKind
	Context []string
	Err     error
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Context)+1)
	parts = append(parts, e.Context...)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	} else {
		parts = append(parts, e.Kind.String())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the kind of e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && len(t.Context) == 0 && t.Kind == e.Kind
}

// Sentinels usable with errors.Is to test the kind of an error.
var (
	ErrIO            = &Error{Kind: ErrKindIO}
	ErrFormat        = &Error{Kind: ErrKindFormat}
	ErrLookup        = &Error{Kind: ErrKindLookup}
	ErrNameCollision = &Error{Kind: ErrKindNameCollision}
	ErrShortWrite    = &Error{Kind: ErrKindShortWrite}
	ErrConfig        = &Error{Kind: ErrKindConfig}
)

// Errorf returns a new error of the given kind.
func Errorf(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err with the given kind and pushes one context frame.
// If err already carries a kind, that kind wins.
func Wrap(kind ErrorKind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	frame := fmt.Sprintf(format, args...)
	if e, ok := err.(*Error); ok {
		return push(e, frame)
	}
	var inner *Error
	if errors.As(err, &inner) {
		kind = inner.Kind
	}
	return &Error{Kind: kind, Context: []string{frame}, Err: err}
}

// WithContext pushes one context frame onto err, keeping its kind. Errors
// that are not an *Error are classified as i/o errors.
func WithContext(err error, format string, args ...interface{}) error {
	return Wrap(ErrKindIO, err, format, args...)
}

func push(e *Error, frame string) *Error {
	ctx := make([]string, 0, len(e.Context)+1)
	ctx = append(ctx, frame)
	ctx = append(ctx, e.Context...)
	return &Error{Kind: e.Kind, Context: ctx, Err: e.Err}
}

// KindOf returns the kind of err, or zero if err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
