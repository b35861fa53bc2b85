// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"fmt"
	"io"
	"runtime/debug"
)

const MySQLDefaultSqlState = "HY000"

// mysql error codes surfaced to clients.
const (
	ER_UNKNOWN_ERROR      uint16 = 1105
	ER_DATA_OUT_OF_RANGE  uint16 = 1690
	ER_WRONG_ARGUMENTS    uint16 = 1210
	ER_NOT_SUPPORTED_YET  uint16 = 1235
	ER_INVALID_GROUP_FUNC uint16 = 1111
	ER_WRONG_TYPE_FOR_VAR uint16 = 1232
)

const (
	// 0 - 99 is OK.
	Ok    uint16 = 0
	OkMax uint16 = 99

	// Group 1: Internal errors
	ErrStart                    uint16 = 20100
	ErrInternal                 uint16 = 20101
	ErrNotSupported             uint16 = 20105
	ErrUnsupportedDecomposition uint16 = 20106

	// Group 2: numeric and functions
	ErrOutOfRange   uint16 = 20201
	ErrInvalidArg   uint16 = 20203
	ErrTypeMismatch uint16 = 20205

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state and io errors
	ErrInvalidState    uint16 = 20400
	ErrUnexpectedEOF   uint16 = 20407
	ErrAggregateFailed uint16 = 20472

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	mysqlCode        uint16
	sqlStates        []string
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// Group 1: Internal errors
	ErrStart:                    {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: error code start"},
	ErrInternal:                 {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: %s"},
	ErrNotSupported:             {ER_NOT_SUPPORTED_YET, []string{MySQLDefaultSqlState}, "not supported: %s"},
	ErrUnsupportedDecomposition: {ER_INVALID_GROUP_FUNC, []string{MySQLDefaultSqlState}, "aggregate %s has no partial/final decomposition"},

	// Group 2: numeric
	ErrOutOfRange:   {ER_DATA_OUT_OF_RANGE, []string{MySQLDefaultSqlState}, "data out of range: data type %s, %s"},
	ErrInvalidArg:   {ER_WRONG_ARGUMENTS, []string{MySQLDefaultSqlState}, "invalid argument %s, bad value %s"},
	ErrTypeMismatch: {ER_WRONG_TYPE_FOR_VAR, []string{MySQLDefaultSqlState}, "type mismatch: expect %s, got %s"},

	// Group 3: invalid input
	ErrBadConfig:    {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid configuration: %s"},
	ErrInvalidInput: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid input: %s"},

	// Group 4: unexpected state or io error
	ErrInvalidState:    {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid state %s"},
	ErrUnexpectedEOF:   {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "unexpected end of input %s"},
	ErrAggregateFailed: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "aggregate %s failed: %s"},

	// Group End: max value of MOErrorCode
	ErrEnd: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: end of errcode code"},
}

func newError(code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError("not exist MOErrorCode: %d", code))
	}
	msg := item.errorMsgOrFormat
	if len(args) > 0 {
		msg = fmt.Sprintf(item.errorMsgOrFormat, args...)
	}
	return &Error{
		code:      code,
		mysqlCode: item.mysqlCode,
		message:   msg,
		sqlState:  item.sqlStates[0],
	}
}

type Error struct {
	code      uint16
	mysqlCode uint16
	message   string
	sqlState  string
	detail    string
	cause     error
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) MySQLCode() uint16 {
	return e.mysqlCode
}

func (e *Error) SqlState() string {
	return e.sqlState
}

// Unwrap returns the error this one was raised for, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	err := newError(ErrInternal, fmt.Sprintf("panic %v", v))
	err.detail = string(debug.Stack())
	return err
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(err.Error())
	}

	e := NewInternalError("convert go error to mo error %v", err)
	e.cause = err
	return e
}

func NewInternalError(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInternal, xmsg)
}

func NewNotSupported(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrNotSupported, xmsg)
}

func NewUnsupportedDecomposition(expr string) *Error {
	return newError(ErrUnsupportedDecomposition, expr)
}

func NewOutOfRange(typ string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrOutOfRange, typ, xmsg)
}

func NewInvalidArg(arg string, val any) *Error {
	return newError(ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

// NewTypeMismatch reports a value whose type disagrees with the declared one.
// It always points at a planning bug and is never retried.
func NewTypeMismatch(expected, got string) *Error {
	return newError(ErrTypeMismatch, expected, got)
}

func NewBadConfig(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrBadConfig, xmsg)
}

func NewInvalidInput(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInvalidInput, xmsg)
}

func NewInvalidState(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInvalidState, xmsg)
}

func NewUnexpectedEOF(f string) *Error {
	return newError(ErrUnexpectedEOF, f)
}

// NewAggregateFailed wraps cause with the aggregate expression it was raised for.
func NewAggregateFailed(agg string, cause error) *Error {
	err := newError(ErrAggregateFailed, agg, cause.Error())
	err.cause = cause
	return err
}
