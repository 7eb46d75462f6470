// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package xbarerr is the error taxonomy shared by every component of the
// core (spec.md §7). Every result is value-returned; nothing on the
// real-time path uses panics for expected control flow.
package xbarerr

import "fmt"

// Code is one of the core's result kinds.
type Code int

const (
	Ok Code = iota
	InvalidParam
	NotInitialized
	InitFailed
	AlsaError
	Timeout
	RingBufferError
	Failed
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case InvalidParam:
		return "InvalidParam"
	case NotInitialized:
		return "NotInitialized"
	case InitFailed:
		return "InitFailed"
	case AlsaError:
		return "AlsaError"
	case Timeout:
		return "Timeout"
	case RingBufferError:
		return "RingBufferError"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// AlsaSubKind distinguishes the three AlsaError flavors spec.md §7 calls out.
type AlsaSubKind int

const (
	AlsaNone AlsaSubKind = iota
	AlsaXrun
	AlsaSuspend
	AlsaGeneric
)

func (k AlsaSubKind) String() string {
	switch k {
	case AlsaXrun:
		return "xrun"
	case AlsaSuspend:
		return "suspend"
	case AlsaGeneric:
		return "generic"
	default:
		return "none"
	}
}

// Error carries a Code plus, for AlsaError, the sub-kind and an underlying
// cause. It is the one error type every public operation in this module
// returns or wraps.
type Error struct {
	Code    Code
	Alsa    AlsaSubKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code.String()
	if e.Code == AlsaError {
		msg = fmt.Sprintf("%s(%s)", msg, e.Alsa)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given code and message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error with the given code, wrapping cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Alsa builds an AlsaError with the given sub-kind.
func Alsa(kind AlsaSubKind, format string, args ...interface{}) *Error {
	return &Error{Code: AlsaError, Alsa: kind, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error with the given code. It intentionally
// does not use errors.As so that a nil *Error (an explicit "no error"
// sentinel some internal helpers return) compares as not-matching rather
// than panicking.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e != nil && e.Code == code
}
