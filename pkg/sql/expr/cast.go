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
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

type Cast struct {
	Child Expr
	Typ   types.Type
}

func NewCast(child Expr, typ types.Type) (*Cast, error) {
	if !castable(child.Type(), typ) {
		return nil, moerr.NewNotSupported("cast %s to %s", child.Type(), typ)
	}
	return &Cast{Child: child, Typ: typ}, nil
}

func (c *Cast) Type() types.Type { return c.Typ }

func (c *Cast) Eval(r row.Row) (any, error) {
	v, err := c.Child.Eval(r)
	if err != nil {
		return nil, err
	}
	return CastValue(v, c.Child.Type(), c.Typ)
}

func (c *Cast) Children() []Expr { return []Expr{c.Child} }

func (c *Cast) WithChildren(children []Expr) (Expr, error) {
	if len(children) != 1 {
		return nil, moerr.NewInvalidArg("children of cast", len(children))
	}
	return NewCast(children[0], c.Typ)
}

func (c *Cast) String() string {
	return fmt.Sprintf("cast(%s as %s)", c.Child, c.Typ)
}

func castable(from, to types.Type) bool {
	if from.Eq(to) {
		return true
	}
	return from.IsNumeric() && to.IsNumeric()
}

// CastValue converts v of type from to type to. Fixed decimals are rounded
// half away from zero to the target scale and fail with an out of range
// error when the integral part does not fit.
func CastValue(v any, from, to types.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if err := types.CheckValue(from, v); err != nil {
		return nil, err
	}
	if from.Eq(to) {
		return v, nil
	}
	if !castable(from, to) {
		return nil, moerr.NewNotSupported("cast %s to %s", from, to)
	}

	switch to.Oid {
	case types.T_int64:
		switch x := v.(type) {
		case float64:
			return floatToInt64(x)
		case decimal.Decimal:
			return decimalToInt64(x)
		}
	case types.T_float64:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case decimal.Decimal:
			f, _ := x.Float64()
			return f, nil
		}
	case types.T_decimal, types.T_decimal_unlimited:
		var d decimal.Decimal
		switch x := v.(type) {
		case int64:
			d = decimal.NewFromInt(x)
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, moerr.NewOutOfRange(to.String(), "value %v", x)
			}
			d = decimal.NewFromFloat(x)
		case decimal.Decimal:
			d = x
		}
		return ToDecimal(d, to)
	}
	return nil, moerr.NewNotSupported("cast %s to %s", from, to)
}

// ToDecimal fits d into the decimal type typ.
func ToDecimal(d decimal.Decimal, typ types.Type) (decimal.Decimal, error) {
	if typ.Oid == types.T_decimal_unlimited {
		return d, nil
	}
	d = d.Round(typ.Scale)
	if !types.FitsDecimal(d, typ) {
		return decimal.Decimal{}, moerr.NewOutOfRange(typ.String(), "value %s", d)
	}
	return d, nil
}

func floatToInt64(f float64) (any, error) {
	r := math.Round(f)
	if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
		return nil, moerr.NewOutOfRange("BIGINT", "value %v", f)
	}
	return int64(r), nil
}

func decimalToInt64(d decimal.Decimal) (any, error) {
	r := d.Round(0)
	if r.LessThan(decimal.NewFromInt(math.MinInt64)) || r.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return nil, moerr.NewOutOfRange("BIGINT", "value %s", d)
	}
	return r.IntPart(), nil
}
