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

	"github.com/shopspring/decimal"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

// Divide computes Left / Right directly in the result type, a zero divisor
// yields NULL.
type Divide struct {
	Left  Expr
	Right Expr
	Typ   types.Type
}

func NewDivide(left, right Expr, typ types.Type) (*Divide, error) {
	if !left.Type().IsNumeric() || !right.Type().IsNumeric() {
		return nil, moerr.NewNotSupported("%s / %s", left.Type(), right.Type())
	}
	if typ.Oid != types.T_float64 && !typ.IsDecimal() {
		return nil, moerr.NewNotSupported("division producing %s", typ)
	}
	return &Divide{Left: left, Right: right, Typ: typ}, nil
}

func (d *Divide) Type() types.Type { return d.Typ }

func (d *Divide) Eval(r row.Row) (any, error) {
	a, err := d.Left.Eval(r)
	if err != nil {
		return nil, err
	}
	b, err := d.Right.Eval(r)
	if err != nil {
		return nil, err
	}
	return DivideValues(a, d.Left.Type(), b, d.Right.Type(), d.Typ)
}

func (d *Divide) Children() []Expr { return []Expr{d.Left, d.Right} }

func (d *Divide) WithChildren(children []Expr) (Expr, error) {
	if len(children) != 2 {
		return nil, moerr.NewInvalidArg("children of divide", len(children))
	}
	return NewDivide(children[0], children[1], d.Typ)
}

func (d *Divide) String() string {
	return fmt.Sprintf("(%s / %s)", d.Left, d.Right)
}

// DivideValues divides a by b producing a value of type out. Decimal
// quotients are rounded once, to the scale of out, or to
// types.UnlimitedDivisionScale when out is an unlimited decimal.
func DivideValues(a any, ta types.Type, b any, tb types.Type, out types.Type) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if out.Oid == types.T_float64 {
		x, err := CastValue(a, ta, out)
		if err != nil {
			return nil, err
		}
		y, err := CastValue(b, tb, out)
		if err != nil {
			return nil, err
		}
		if y.(float64) == 0 {
			return nil, nil
		}
		return x.(float64) / y.(float64), nil
	}
	if !out.IsDecimal() {
		return nil, moerr.NewNotSupported("division producing %s", out)
	}

	unlimited := types.NewUnlimitedDecimalType()
	x, err := CastValue(a, ta, unlimited)
	if err != nil {
		return nil, err
	}
	y, err := CastValue(b, tb, unlimited)
	if err != nil {
		return nil, err
	}
	if y.(decimal.Decimal).IsZero() {
		return nil, nil
	}
	scale := int32(types.UnlimitedDivisionScale)
	if out.Oid == types.T_decimal {
		scale = out.Scale
	}
	return ToDecimal(x.(decimal.Decimal).DivRound(y.(decimal.Decimal), scale), out)
}
