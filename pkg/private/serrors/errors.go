// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides errors that carry structured log context. The
// context is a list of key value pairs that is rendered into the message and
// emitted as fields when the error is logged with zap.
//
// Errors built by Join keep the base error visible to errors.Is and
// errors.As, so sentinels can be decorated with context without losing their
// identity. Wrap and New attach a stack trace to the innermost error only.
package serrors

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const stackDepth = 32

type field struct {
	key   string
	value any
}

// ctxError is the single error type of the package. Either base or msg is
// set.
type ctxError struct {
	base   error
	msg    string
	cause  error
	fields []field
	stack  []uintptr
}

func build(base error, msg string, cause error, withStack bool, errCtx []any) *ctxError {
	e := &ctxError{
		base:   base,
		msg:    msg,
		cause:  cause,
		fields: make([]field, 0, len(errCtx)/2),
	}
	for i := 0; i+1 < len(errCtx); i += 2 {
		e.fields = append(e.fields, field{key: fmt.Sprint(errCtx[i]), value: errCtx[i+1]})
	}
	slices.SortStableFunc(e.fields, func(a, b field) int {
		return cmp.Compare(a.key, b.key)
	})
	if withStack && !hasStack(cause) {
		e.stack = callers()
	}
	return e
}

func hasStack(err error) bool {
	var inner *ctxError
	return err != nil && errors.As(err, &inner)
}

func (e *ctxError) head() string {
	if e.base != nil {
		return e.base.Error()
	}
	return e.msg
}

func (e *ctxError) Error() string {
	var b strings.Builder
	b.WriteString(e.head())
	if len(e.fields) > 0 {
		b.WriteString(" {")
		for i, f := range e.fields {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s=%v", f.key, f.value)
		}
		b.WriteString("}")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *ctxError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.base != nil {
		errs = append(errs, e.base)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// MarshalLogObject implements zapcore.ObjectMarshaler. A base error is logged
// by its message only.
func (e *ctxError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.head())
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	if len(e.stack) > 0 {
		if err := enc.AddArray("stacktrace", frames(e.stack)); err != nil {
			return err
		}
	}
	for _, f := range e.fields {
		zap.Any(f.key, f.value).AddTo(enc)
	}
	return nil
}

// New creates an error with the given message and context and records the
// stack. Sentinel errors should use errors.New instead.
func New(msg string, errCtx ...any) error {
	return build(nil, msg, nil, true, errCtx)
}

// Wrap creates an error with the given message that wraps cause, if not nil.
// The stack is recorded unless cause already carries one.
func Wrap(msg string, cause error, errCtx ...any) error {
	return build(nil, msg, cause, true, errCtx)
}

// WrapNoStack is Wrap without a stack.
func WrapNoStack(msg string, cause error, errCtx ...any) error {
	return build(nil, msg, cause, false, errCtx)
}

// Join decorates err with context and an optional cause. Both err and cause
// match with errors.Is. Join returns nil if err and cause are nil.
func Join(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	return build(err, "", cause, true, errCtx)
}

// JoinNoStack is Join without a stack.
func JoinNoStack(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	return build(err, "", cause, false, errCtx)
}

// List collects errors.
type List []error

func (e List) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "[ " + strings.Join(msgs, "; ") + " ]"
}

// ToError returns nil for an empty list and the list otherwise.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (e List) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, err := range e {
		m, ok := err.(zapcore.ObjectMarshaler)
		if !ok {
			enc.AppendString(err.Error())
			continue
		}
		if err := enc.AppendObject(m); err != nil {
			return err
		}
	}
	return nil
}

func callers() []uintptr {
	pcs := make([]uintptr, stackDepth)
	// Skip runtime.Callers, callers, build and the exported constructor.
	return pcs[:runtime.Callers(4, pcs)]
}

type frames []uintptr

func (s frames) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	it := runtime.CallersFrames(s)
	for {
		f, more := it.Next()
		enc.AppendString(fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		if !more {
			return nil
		}
	}
}
