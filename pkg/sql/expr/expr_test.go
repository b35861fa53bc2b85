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

package expr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestColumnAndLiteral(t *testing.T) {
	c := NewColumn(1, "b", types.NewInt64Type())
	v, err := c.Eval(row.Row{"x", int64(3)})
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	_, err = c.Eval(row.Row{"x"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	_, err = c.Eval(row.Row{"x", "y"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))

	l, err := NewLiteral(int64(0), types.NewInt64Type())
	require.NoError(t, err)
	v, err = l.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
	require.Equal(t, "0", l.String())

	_, err = NewLiteral("0", types.NewInt64Type())
	require.Error(t, err)
}

func TestCastValue(t *testing.T) {
	cases := []struct {
		name string
		v    any
		from types.Type
		to   types.Type
		want any
		code uint16
	}{
		{"null", nil, types.NewInt64Type(), types.NewFloat64Type(), nil, moerr.Ok},
		{"int to double", int64(3), types.NewInt64Type(), types.NewFloat64Type(), float64(3), moerr.Ok},
		{"double to int rounds", 2.5, types.NewFloat64Type(), types.NewInt64Type(), int64(3), moerr.Ok},
		{"decimal to int", dec("-2.5"), types.NewDecimalType(5, 1), types.NewInt64Type(), int64(-3), moerr.Ok},
		{"int to decimal", int64(12), types.NewInt64Type(), types.NewDecimalType(5, 2), dec("12"), moerr.Ok},
		{"decimal rounds to scale", dec("1.005"), types.NewUnlimitedDecimalType(), types.NewDecimalType(5, 2), dec("1.01"), moerr.Ok},
		{"decimal overflow", dec("1000"), types.NewUnlimitedDecimalType(), types.NewDecimalType(5, 2), nil, moerr.ErrOutOfRange},
		{"double to decimal", 0.5, types.NewFloat64Type(), types.NewDecimalType(5, 2), dec("0.5"), moerr.Ok},
		{"wrong input", "x", types.NewInt64Type(), types.NewFloat64Type(), nil, moerr.ErrTypeMismatch},
		{"varchar to int", "x", types.NewVarcharType(), types.NewInt64Type(), nil, moerr.ErrNotSupported},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := CastValue(c.v, c.from, c.to)
			if c.code != moerr.Ok {
				require.True(t, moerr.IsMoErrCode(err, c.code), "%v", err)
				return
			}
			require.NoError(t, err)
			if d, ok := c.want.(decimal.Decimal); ok {
				require.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			require.Equal(t, c.want, got)
		})
	}
}

func TestDivideValues(t *testing.T) {
	got, err := DivideValues(int64(7), types.NewInt64Type(), int64(2), types.NewInt64Type(), types.NewFloat64Type())
	require.NoError(t, err)
	require.Equal(t, 3.5, got)

	got, err = DivideValues(int64(7), types.NewInt64Type(), int64(0), types.NewInt64Type(), types.NewFloat64Type())
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = DivideValues(nil, types.NewInt64Type(), int64(2), types.NewInt64Type(), types.NewFloat64Type())
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = DivideValues(dec("10"), types.NewUnlimitedDecimalType(), int64(3), types.NewInt64Type(), types.NewDecimalType(9, 6))
	require.NoError(t, err)
	require.Equal(t, "3.333333", got.(decimal.Decimal).StringFixed(6))

	got, err = DivideValues(dec("1"), types.NewUnlimitedDecimalType(), int64(3), types.NewInt64Type(), types.NewUnlimitedDecimalType())
	require.NoError(t, err)
	require.Equal(t, int32(-types.UnlimitedDivisionScale), got.(decimal.Decimal).Exponent())

	got, err = DivideValues(dec("1"), types.NewUnlimitedDecimalType(), dec("0"), types.NewUnlimitedDecimalType(), types.NewDecimalType(9, 6))
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = DivideValues(int64(1), types.NewInt64Type(), int64(1), types.NewInt64Type(), types.NewInt64Type())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
}

func TestCoalesce(t *testing.T) {
	zero, err := NewLiteral(int64(0), types.NewInt64Type())
	require.NoError(t, err)
	e, err := NewCoalesce(NewColumn(0, "a", types.NewInt64Type()), zero)
	require.NoError(t, err)

	v, err := e.Eval(row.Row{nil})
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
	v, err = e.Eval(row.Row{int64(4)})
	require.NoError(t, err)
	require.Equal(t, int64(4), v)
	require.Equal(t, "coalesce(a, 0)", e.String())

	_, err = NewCoalesce(zero, NewColumn(0, "a", types.NewFloat64Type()))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))
}

func TestBind(t *testing.T) {
	a := NewAttribute("sum", types.NewDecimalType(20, 2))
	b := NewAttribute("cnt", types.NewInt64Type())
	d, err := NewDivide(a, b, types.NewDecimalType(10, 4))
	require.NoError(t, err)

	_, err = d.Eval(row.Row{dec("1"), int64(1)})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	attrs := Attributes(d)
	require.Len(t, attrs, 2)
	require.Equal(t, a.ID, attrs[0].ID)

	bound, err := Bind(d, []*Attribute{b, a})
	require.NoError(t, err)
	require.Empty(t, Attributes(bound))
	v, err := bound.Eval(row.Row{int64(4), dec("3")})
	require.NoError(t, err)
	require.Equal(t, "0.7500", v.(decimal.Decimal).StringFixed(4))

	_, err = Bind(d, []*Attribute{b})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	// same name, different identity
	other := NewAttribute("sum", types.NewDecimalType(20, 2))
	_, err = Bind(d, []*Attribute{b, other})
	require.Error(t, err)
}

func TestWalk(t *testing.T) {
	col := NewColumn(0, "x", types.NewInt64Type())
	c, err := NewCast(col, types.NewFloat64Type())
	require.NoError(t, err)
	var seen []string
	Walk(c, func(e Expr) bool {
		seen = append(seen, e.String())
		return true
	})
	require.Equal(t, []string{"cast(x as DOUBLE)", "x"}, seen)

	_, err = NewCast(NewColumn(0, "s", types.NewVarcharType()), types.NewInt64Type())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
}
