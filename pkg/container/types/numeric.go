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

package types

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
)

// Ordering is a total order over the non-null values of one type.
type Ordering interface {
	Type() Type
	// Compare returns -1, 0 or 1. NaN sorts above every other double.
	Compare(a, b any) (int, error)
}

// Numeric supplies zero, plus and the order of one numeric type. Plus on an
// unlimited decimal never loses precision; rounding to a declared type is
// the business of whoever reads the final result.
type Numeric interface {
	Ordering
	Zero() any
	Plus(a, b any) (any, error)
}

// SetValue is implemented by values of T_set.
type SetValue interface {
	KeyTypes() []Type
}

// NumericOf selects the numeric behavior of typ.
func NumericOf(typ Type) (Numeric, error) {
	switch typ.Oid {
	case T_int64:
		return native[int64]{typ: typ}, nil
	case T_float64:
		return native[float64]{typ: typ}, nil
	case T_decimal:
		return fixedDecimal{typ: typ}, nil
	case T_decimal_unlimited:
		return unlimitedDecimal{typ: typ}, nil
	}
	return nil, moerr.NewInvalidArg("numeric type", typ.String())
}

// OrderingOf returns the total order of typ, numerics and VARCHAR only.
func OrderingOf(typ Type) (Ordering, error) {
	if typ.Oid == T_varchar {
		return varcharOrdering{typ: typ}, nil
	}
	return NumericOf(typ)
}

// CheckValue reports a type mismatch error if v is not a value of typ.
// NULL (nil) is a value of every type.
func CheckValue(typ Type, v any) error {
	if v == nil {
		return nil
	}
	var ok bool
	switch typ.Oid {
	case T_any:
		ok = true
	case T_int64:
		_, ok = v.(int64)
	case T_float64:
		_, ok = v.(float64)
	case T_decimal, T_decimal_unlimited:
		_, ok = v.(decimal.Decimal)
	case T_varchar:
		_, ok = v.(string)
	case T_set:
		var s SetValue
		if s, ok = v.(SetValue); ok {
			got := NewSetType(s.KeyTypes()...)
			if !got.Eq(typ) {
				return moerr.NewTypeMismatch(typ.String(), got.String())
			}
		}
	}
	if !ok {
		return moerr.NewTypeMismatch(typ.String(), fmt.Sprintf("%T", v))
	}
	return nil
}

// FitsDecimal reports whether d is representable in DECIMAL(typ.Width, typ.Scale)
// without rounding.
func FitsDecimal(d decimal.Decimal, typ Type) bool {
	if typ.Oid == T_decimal_unlimited {
		return true
	}
	if !d.Round(typ.Scale).Equal(d) {
		return false
	}
	limit := decimal.New(1, typ.Width-typ.Scale)
	return d.Abs().LessThan(limit)
}

type native[V constraints.Integer | constraints.Float] struct {
	typ Type
}

func (n native[V]) Type() Type {
	return n.typ
}

func (n native[V]) Zero() any {
	var zero V
	return zero
}

func (n native[V]) Plus(a, b any) (any, error) {
	x, err := n.value(a)
	if err != nil {
		return nil, err
	}
	y, err := n.value(b)
	if err != nil {
		return nil, err
	}
	var zero V
	r := x + y
	if (y > zero && r < x) || (y < zero && r > x) {
		return nil, moerr.NewOutOfRange(n.typ.String(), "%v + %v", x, y)
	}
	return r, nil
}

func (n native[V]) Compare(a, b any) (int, error) {
	x, err := n.value(a)
	if err != nil {
		return 0, err
	}
	y, err := n.value(b)
	if err != nil {
		return 0, err
	}
	return compareOrdered(x, y), nil
}

func (n native[V]) value(v any) (V, error) {
	x, ok := v.(V)
	if !ok {
		return x, moerr.NewTypeMismatch(n.typ.String(), fmt.Sprintf("%T", v))
	}
	return x, nil
}

func compareOrdered[V constraints.Ordered](x, y V) int {
	// x != x only holds for NaN
	xNaN, yNaN := x != x, y != y
	switch {
	case xNaN && yNaN:
		return 0
	case xNaN:
		return 1
	case yNaN:
		return -1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

type fixedDecimal struct {
	typ Type
}

func (n fixedDecimal) Type() Type {
	return n.typ
}

func (n fixedDecimal) Zero() any {
	return decimal.Zero
}

func (n fixedDecimal) Plus(a, b any) (any, error) {
	x, y, err := decimalPair(n.typ, a, b)
	if err != nil {
		return nil, err
	}
	r := x.Add(y)
	if !FitsDecimal(r, n.typ) {
		return nil, moerr.NewOutOfRange(n.typ.String(), "%s + %s", x, y)
	}
	return r, nil
}

func (n fixedDecimal) Compare(a, b any) (int, error) {
	x, y, err := decimalPair(n.typ, a, b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

type unlimitedDecimal struct {
	typ Type
}

func (n unlimitedDecimal) Type() Type {
	return n.typ
}

func (n unlimitedDecimal) Zero() any {
	return decimal.Zero
}

func (n unlimitedDecimal) Plus(a, b any) (any, error) {
	x, y, err := decimalPair(n.typ, a, b)
	if err != nil {
		return nil, err
	}
	return x.Add(y), nil
}

func (n unlimitedDecimal) Compare(a, b any) (int, error) {
	x, y, err := decimalPair(n.typ, a, b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

func decimalPair(typ Type, a, b any) (decimal.Decimal, decimal.Decimal, error) {
	x, ok := a.(decimal.Decimal)
	if !ok {
		return x, x, moerr.NewTypeMismatch(typ.String(), fmt.Sprintf("%T", a))
	}
	y, ok := b.(decimal.Decimal)
	if !ok {
		return x, y, moerr.NewTypeMismatch(typ.String(), fmt.Sprintf("%T", b))
	}
	return x, y, nil
}

type varcharOrdering struct {
	typ Type
}

func (o varcharOrdering) Type() Type {
	return o.typ
}

func (o varcharOrdering) Compare(a, b any) (int, error) {
	x, ok := a.(string)
	if !ok {
		return 0, moerr.NewTypeMismatch(o.typ.String(), fmt.Sprintf("%T", a))
	}
	y, ok := b.(string)
	if !ok {
		return 0, moerr.NewTypeMismatch(o.typ.String(), fmt.Sprintf("%T", b))
	}
	return compareOrdered(x, y), nil
}
