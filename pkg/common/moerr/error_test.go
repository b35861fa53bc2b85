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
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		code    uint16
		message string
	}{
		{"internal", NewInternalError("bad %d", 1), ErrInternal, "internal error: bad 1"},
		{"mismatch", NewTypeMismatch("BIGINT", "DOUBLE"), ErrTypeMismatch, "type mismatch: expect BIGINT, got DOUBLE"},
		{"decomposition", NewUnsupportedDecomposition("median(a)"), ErrUnsupportedDecomposition, "aggregate median(a) has no partial/final decomposition"},
		{"range", NewOutOfRange("DECIMAL(5,2)", "value %s", "1234.5"), ErrOutOfRange, "data out of range: data type DECIMAL(5,2), value 1234.5"},
		{"config", NewBadConfig("level %q", "loud"), ErrBadConfig, "invalid configuration: level \"loud\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, tt.err.ErrorCode())
			require.Equal(t, tt.message, tt.err.Error())
			require.True(t, IsMoErrCode(tt.err, tt.code))
			require.False(t, tt.err.Succeeded())
		})
	}
}

func TestIsMoErrCode(t *testing.T) {
	require.True(t, IsMoErrCode(nil, Ok))
	require.False(t, IsMoErrCode(io.EOF, ErrInternal))
	require.False(t, IsMoErrCode(NewInvalidArg("x", 1), ErrInternal))
}

func TestAggregateFailedUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewAggregateFailed("sum(a)", cause)
	require.True(t, IsMoErrCode(err, ErrAggregateFailed))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "aggregate sum(a) failed: boom", err.Error())
}

func TestConvertGoError(t *testing.T) {
	require.Nil(t, ConvertGoError(nil))

	me := NewInvalidInput("x")
	require.Equal(t, error(me), ConvertGoError(me))

	require.True(t, IsMoErrCode(ConvertGoError(io.ErrUnexpectedEOF), ErrUnexpectedEOF))

	cause := errors.New("disk on fire")
	err := ConvertGoError(cause)
	require.True(t, IsMoErrCode(err, ErrInternal))
	require.ErrorIs(t, err, cause)
}

func TestConvertPanicError(t *testing.T) {
	me := NewInvalidState("dead")
	require.Equal(t, me, ConvertPanicError(me))

	err := ConvertPanicError("oops")
	require.True(t, IsMoErrCode(err, ErrInternal))
	require.NotEmpty(t, err.Detail())
	require.Contains(t, err.Display(), "panic oops")
}
