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
	"github.com/gogo/protobuf/proto"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/encoding"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

// AvgSumType is the type the running sum of AVG over typ is kept in. It is
// the sum accumulation type, BIGINT sums are converted to DOUBLE only by the
// final division.
func AvgSumType(typ types.Type) types.Type {
	return types.AccumulationType(typ)
}

type avg struct {
	agg  *Aggregate
	in   types.Type
	work types.Numeric
	sum  any
	cnt  int64
}

func newAvg(a *Aggregate) (*avg, error) {
	in := a.Args[0].Type()
	work, err := types.NumericOf(AvgSumType(in))
	if err != nil {
		return nil, err
	}
	return &avg{agg: a, in: in, work: work}, nil
}

func (a *avg) Aggregate() *Aggregate {
	return a.agg
}

func (a *avg) Update(r row.Row) error {
	v, err := evalArg(a.agg, 0, r)
	if err != nil || v == nil {
		return err
	}
	w, err := expr.CastValue(v, a.in, a.work.Type())
	if err != nil {
		return err
	}
	acc := a.sum
	if acc == nil {
		acc = a.work.Zero()
	}
	if acc, err = a.work.Plus(acc, w); err != nil {
		return err
	}
	a.sum = acc
	a.cnt++
	return nil
}

func (a *avg) Eval(_ row.Row) (any, error) {
	if a.cnt == 0 {
		return nil, nil
	}
	return expr.DivideValues(a.sum, a.work.Type(), a.cnt, types.NewInt64Type(), a.agg.Type())
}

func (a *avg) MarshalBinary() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if err := encoding.EncodeValue(b, a.work.Type(), a.sum); err != nil {
		return nil, err
	}
	if err := b.EncodeVarint(uint64(a.cnt)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (a *avg) UnmarshalBinary(data []byte) error {
	b := proto.NewBuffer(data)
	v, err := encoding.DecodeValue(b, a.work.Type())
	if err != nil {
		return err
	}
	n, err := b.DecodeVarint()
	if err != nil {
		return moerr.ConvertGoError(err)
	}
	if (v == nil) != (n == 0) {
		return moerr.NewInvalidInput("avg state with sum %v and count %d", v, n)
	}
	a.sum, a.cnt = v, int64(n)
	return nil
}
