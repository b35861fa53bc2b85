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

package agg

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/distinct"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rows(vs ...any) []row.Row {
	rs := make([]row.Row, len(vs))
	for i, v := range vs {
		rs[i] = row.Row{v}
	}
	return rs
}

func newAgg(t *testing.T, op Kind, typ types.Type) *Aggregate {
	a, err := New(op, expr.NewColumn(0, "a", typ))
	require.NoError(t, err)
	return a
}

func run(t *testing.T, a *Aggregate, rs []row.Row) any {
	acc, err := NewAccumulator(a)
	require.NoError(t, err)
	for _, r := range rs {
		require.NoError(t, acc.Update(r))
	}
	v, err := acc.Eval(nil)
	require.NoError(t, err)
	return v
}

func TestBasicKinds(t *testing.T) {
	in := rows(int64(10), nil, int64(20), int64(30))
	bigint := types.NewInt64Type()

	require.Equal(t, int64(3), run(t, newAgg(t, Count, bigint), in))
	require.Equal(t, int64(60), run(t, newAgg(t, Sum, bigint), in))
	require.Equal(t, float64(20), run(t, newAgg(t, Average, bigint), in))
	require.Equal(t, int64(10), run(t, newAgg(t, Min, bigint), in))
	require.Equal(t, int64(30), run(t, newAgg(t, Max, bigint), in))
}

func TestEmptyAndNullInput(t *testing.T) {
	bigint := types.NewInt64Type()
	for _, in := range [][]row.Row{nil, rows(nil, nil)} {
		require.Equal(t, int64(0), run(t, newAgg(t, Count, bigint), in))
		require.Nil(t, run(t, newAgg(t, Sum, bigint), in))
		require.Nil(t, run(t, newAgg(t, Average, bigint), in))
		require.Nil(t, run(t, newAgg(t, Min, bigint), in))
		require.Nil(t, run(t, newAgg(t, Max, bigint), in))
		require.Equal(t, int64(0), run(t, newAgg(t, CountDistinct, bigint), in))
		require.Nil(t, run(t, newAgg(t, SumDistinct, bigint), in))
	}
}

func TestCountStar(t *testing.T) {
	a := CountStar()
	require.Equal(t, "count(1)", a.String())
	require.Equal(t, int64(3), run(t, a, rows(nil, nil, int64(1))))
}

func TestDistinctKinds(t *testing.T) {
	in := rows(int64(1), int64(1), int64(2), nil, int64(2), int64(3))
	require.Equal(t, int64(3), run(t, newAgg(t, CountDistinct, types.NewInt64Type()), in))
	require.Equal(t, int64(6), run(t, newAgg(t, SumDistinct, types.NewInt64Type()), in))

	din := rows(dec("1.5"), dec("1.50"), dec("2.25"), nil)
	a := newAgg(t, SumDistinct, types.NewDecimalType(5, 2))
	require.True(t, a.Type().Eq(types.NewDecimalType(15, 2)))
	require.True(t, dec("3.75").Equal(run(t, a, din).(decimal.Decimal)))

	multi, err := New(CountDistinct,
		expr.NewColumn(0, "a", types.NewInt64Type()),
		expr.NewColumn(1, "b", types.NewVarcharType()))
	require.NoError(t, err)
	require.Equal(t, "count(distinct a, b)", multi.String())
	require.Equal(t, int64(2), run(t, multi, []row.Row{
		{int64(1), "x"}, {int64(1), "x"}, {int64(1), "y"}, {nil, "x"}, {int64(2), nil},
	}))
}

func TestDecimalWidening(t *testing.T) {
	typ := types.NewDecimalType(5, 2)
	sum := newAgg(t, Sum, typ)
	avg := newAgg(t, Average, typ)
	require.True(t, sum.Type().Eq(types.NewDecimalType(15, 2)), sum.Type().String())
	require.True(t, avg.Type().Eq(types.NewDecimalType(9, 6)), avg.Type().String())

	in := rows(dec("999.99"), dec("999.99"), dec("0.01"))
	got := run(t, sum, in).(decimal.Decimal)
	require.Equal(t, "1999.99", got.StringFixed(2))
	got = run(t, avg, in).(decimal.Decimal)
	require.Equal(t, "666.663333", got.StringFixed(6))
}

func TestMinMaxTies(t *testing.T) {
	typ := types.NewDecimalType(5, 2)
	in := rows(dec("1.0"), dec("1.00"), dec("3"), dec("3.00"))
	minV := run(t, newAgg(t, Min, typ), in).(decimal.Decimal)
	maxV := run(t, newAgg(t, Max, typ), in).(decimal.Decimal)
	require.True(t, minV.Equal(dec("1")))
	require.True(t, maxV.Equal(dec("3")))

	// whichever equal value is retained, the result compares equal
	rev := []row.Row{in[1], in[0], in[3], in[2]}
	require.True(t, run(t, newAgg(t, Min, typ), rev).(decimal.Decimal).Equal(minV))
	require.True(t, run(t, newAgg(t, Max, typ), rev).(decimal.Decimal).Equal(maxV))

	strs := rows("b", "a", "c", nil)
	require.Equal(t, "a", run(t, newAgg(t, Min, types.NewVarcharType()), strs))
	require.Equal(t, "c", run(t, newAgg(t, Max, types.NewVarcharType()), strs))

	floats := rows(1.0, math.NaN(), -2.0)
	require.True(t, math.IsNaN(run(t, newAgg(t, Max, types.NewFloat64Type()), floats).(float64)))
	require.Equal(t, -2.0, run(t, newAgg(t, Min, types.NewFloat64Type()), floats))
}

func TestEvalIsPure(t *testing.T) {
	acc, err := NewAccumulator(newAgg(t, Sum, types.NewInt64Type()))
	require.NoError(t, err)
	require.NoError(t, acc.Update(row.Row{int64(1)}))
	for i := 0; i < 2; i++ {
		v, err := acc.Eval(nil)
		require.NoError(t, err)
		require.Equal(t, int64(1), v)
	}
	require.NoError(t, acc.Update(row.Row{int64(2)}))
	v, err := acc.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	col, err := NewAccumulator(newAgg(t, CollectDistinct, types.NewInt64Type()))
	require.NoError(t, err)
	require.NoError(t, col.Update(row.Row{int64(1)}))
	s, err := col.Eval(nil)
	require.NoError(t, err)
	require.NoError(t, s.(*distinct.Set).Add([]any{int64(2)}))
	s, err = col.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.(*distinct.Set).Size())
}

func TestUpdateErrors(t *testing.T) {
	acc, err := NewAccumulator(newAgg(t, Sum, types.NewInt64Type()))
	require.NoError(t, err)
	require.NoError(t, acc.Update(row.Row{int64(5)}))

	err = acc.Update(row.Row{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	err = acc.Update(row.Row{"5"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))

	v, err := acc.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)
}

func TestBigintSumOverflow(t *testing.T) {
	acc, err := NewAccumulator(newAgg(t, Sum, types.NewInt64Type()))
	require.NoError(t, err)

	// intermediate totals may leave the BIGINT range
	require.NoError(t, acc.Update(row.Row{int64(math.MaxInt64)}))
	require.NoError(t, acc.Update(row.Row{int64(1)}))
	_, err = acc.Eval(nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOutOfRange))

	require.NoError(t, acc.Update(row.Row{int64(-1)}))
	v, err := acc.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), v)

	data, err := acc.MarshalBinary()
	require.NoError(t, err)
	restored, err := Restore(acc.Aggregate(), data)
	require.NoError(t, err)
	v, err = restored.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), v)
}

func TestBigintAvgExact(t *testing.T) {
	acc, err := NewAccumulator(newAgg(t, Average, types.NewInt64Type()))
	require.NoError(t, err)
	big := int64(1) << 60
	for _, v := range []int64{big, 1, -big, 1} {
		require.NoError(t, acc.Update(row.Row{v}))
	}
	v, err := acc.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, 0.5, v)
}

func TestFixedDecimalOverflow(t *testing.T) {
	typ := types.NewDecimalType(types.MaxDecimalPrecision, 0)
	a := newAgg(t, Sum, typ)
	require.True(t, a.Type().Eq(typ))

	big := dec("99999999999999999999999999999999999999")
	acc, err := NewAccumulator(a)
	require.NoError(t, err)
	require.NoError(t, acc.Update(row.Row{big}))
	v, err := acc.Eval(nil)
	require.NoError(t, err)
	require.True(t, big.Equal(v.(decimal.Decimal)))

	// the running sum is unlimited, only reading it back overflows
	require.NoError(t, acc.Update(row.Row{big}))
	_, err = acc.Eval(nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOutOfRange))

	require.NoError(t, acc.Update(row.Row{big.Neg()}))
	v, err = acc.Eval(nil)
	require.NoError(t, err)
	require.True(t, big.Equal(v.(decimal.Decimal)))
}

func TestNewValidation(t *testing.T) {
	varchar := expr.NewColumn(0, "s", types.NewVarcharType())
	_, err := New(Sum, varchar)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	_, err = New(Average)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
	_, err = New(Min, expr.NewColumn(0, "s", types.NewSetType(types.NewInt64Type())))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	_, err = New(MergeDistinctCount, varchar)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))
	_, err = New(MergeDistinctSum, expr.NewColumn(0, "s", types.NewSetType(types.NewVarcharType())))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	_, err = New(Kind(99), varchar)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	a := newAgg(t, Max, types.NewInt64Type())
	_, err = a.Eval(row.Row{int64(1)})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	c, err := New(CollectDistinct, varchar, expr.NewColumn(1, "n", types.NewInt64Type()))
	require.NoError(t, err)
	require.True(t, c.Type().Eq(types.NewSetType(types.NewVarcharType(), types.NewInt64Type())))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"min": Min, "MAX": Max, " count ": Count, "sum": Sum, "avg": Average,
		"count(distinct)": CountDistinct, "sum_distinct": SumDistinct,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := ParseKind("median")
	require.Error(t, err)
	require.Equal(t, "agg(99)", Kind(99).String())
	require.True(t, CollectDistinct.IsDistinct())
	require.False(t, Average.IsDistinct())
}

func TestMergeDistinct(t *testing.T) {
	varchar := types.NewVarcharType()
	collect := newAgg(t, CollectDistinct, varchar)

	partial := func(vs ...any) *distinct.Set {
		v := run(t, collect, rows(vs...))
		return v.(*distinct.Set)
	}
	p1 := partial("A", "A", "B")
	p2 := partial("B", "C")
	require.Equal(t, 2, p1.Size())
	require.Equal(t, 2, p2.Size())

	merge := newAgg(t, MergeDistinctCount, collect.Type())
	require.Equal(t, int64(3), run(t, merge, rows(p1, nil, p2)))

	ints := newAgg(t, CollectDistinct, types.NewInt64Type())
	s1 := run(t, ints, rows(int64(1), int64(1), int64(2))).(*distinct.Set)
	s2 := run(t, ints, rows(int64(2), nil, int64(3))).(*distinct.Set)
	sum := newAgg(t, MergeDistinctSum, ints.Type())
	require.Equal(t, int64(6), run(t, sum, rows(s1, s2)))
	require.Nil(t, run(t, sum, nil))

	acc, err := NewAccumulator(merge)
	require.NoError(t, err)
	err = acc.Update(row.Row{s1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))
}

func TestMarshalRestore(t *testing.T) {
	cases := []struct {
		name string
		op   Kind
		typ  types.Type
		in   []row.Row
	}{
		{"min", Min, types.NewVarcharType(), rows("b", "a")},
		{"max empty", Max, types.NewInt64Type(), nil},
		{"count", Count, types.NewFloat64Type(), rows(1.5, nil, 2.5)},
		{"sum decimal", Sum, types.NewDecimalType(6, 2), rows(dec("1.25"), dec("2.5"))},
		{"avg int", Average, types.NewInt64Type(), rows(int64(1), int64(2))},
		{"avg empty", Average, types.NewDecimalType(6, 2), nil},
		{"count distinct", CountDistinct, types.NewVarcharType(), rows("x", "y", "x")},
		{"sum distinct", SumDistinct, types.NewInt64Type(), rows(int64(-1), int64(4), int64(4))},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAgg(t, c.op, c.typ)
			acc, err := NewAccumulator(a)
			require.NoError(t, err)
			for _, r := range c.in {
				require.NoError(t, acc.Update(r))
			}
			want, err := acc.Eval(nil)
			require.NoError(t, err)

			data, err := acc.MarshalBinary()
			require.NoError(t, err)
			restored, err := Restore(a, data)
			require.NoError(t, err)
			require.Same(t, a, restored.Aggregate())
			got, err := restored.Eval(nil)
			require.NoError(t, err)
			if d, ok := want.(decimal.Decimal); ok {
				require.True(t, d.Equal(got.(decimal.Decimal)))
			} else {
				require.Equal(t, want, got)
			}
		})
	}

	_, err := Restore(newAgg(t, Sum, types.NewInt64Type()), nil)
	require.Error(t, err)
}
