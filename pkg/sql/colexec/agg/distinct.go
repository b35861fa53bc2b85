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
	"github.com/matrixorigin/partialagg/pkg/container/distinct"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

// distinctAgg backs every DISTINCT kind. COUNT/SUM DISTINCT and
// CollectDistinct add evaluated key tuples to the set, the merge kinds union
// incoming partial sets into it. Eval then counts, sums or copies the set.
type distinctAgg struct {
	agg *Aggregate
	set *distinct.Set

	key []any
}

func newDistinct(a *Aggregate, s *distinct.Set) (*distinctAgg, error) {
	if a.Op == SumDistinct || a.Op == MergeDistinctSum {
		if kt := s.KeyTypes(); len(kt) != 1 || !kt[0].IsNumeric() {
			return nil, moerr.NewNotSupported("%s over keys %s", a.Op, s.Type())
		}
	}
	return &distinctAgg{agg: a, set: s, key: make([]any, len(a.Args))}, nil
}

func (d *distinctAgg) Aggregate() *Aggregate {
	return d.agg
}

func (d *distinctAgg) Update(r row.Row) error {
	switch d.agg.Op {
	case MergeDistinctCount, MergeDistinctSum:
		v, err := evalArg(d.agg, 0, r)
		if err != nil || v == nil {
			return err
		}
		partial, ok := v.(*distinct.Set)
		if !ok {
			return moerr.NewTypeMismatch(d.agg.Args[0].Type().String(), "non set value")
		}
		return d.set.Union(partial)
	}

	for i := range d.agg.Args {
		v, err := evalArg(d.agg, i, r)
		if err != nil {
			return err
		}
		d.key[i] = v
	}
	return d.set.Add(d.key)
}

func (d *distinctAgg) Eval(_ row.Row) (any, error) {
	switch d.agg.Op {
	case CountDistinct, MergeDistinctCount:
		return int64(d.set.Size()), nil
	case SumDistinct, MergeDistinctSum:
		return d.sum()
	case CollectDistinct:
		return d.set.Clone(), nil
	}
	return nil, moerr.NewInternalError("unsupported distinct aggregate %s", d.agg.Op)
}

// sum adds up the single key column of the set, NULL when the set is empty.
func (d *distinctAgg) sum() (any, error) {
	if d.set.Size() == 0 {
		return nil, nil
	}
	in := d.set.KeyTypes()[0]
	work, err := types.NumericOf(types.AccumulationType(in))
	if err != nil {
		return nil, err
	}
	acc := work.Zero()
	err = d.set.ForEach(func(key []any) error {
		w, err := expr.CastValue(key[0], in, work.Type())
		if err != nil {
			return err
		}
		acc, err = work.Plus(acc, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return expr.CastValue(acc, work.Type(), d.agg.Type())
}

func (d *distinctAgg) MarshalBinary() ([]byte, error) {
	data, err := d.set.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := proto.NewBuffer(nil)
	if err := b.EncodeRawBytes(data); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (d *distinctAgg) UnmarshalBinary(data []byte) error {
	raw, err := proto.NewBuffer(data).DecodeRawBytes(false)
	if err != nil {
		return moerr.ConvertGoError(err)
	}
	s, err := distinct.Unmarshal(raw)
	if err != nil {
		return err
	}
	if !s.Type().Eq(d.set.Type()) {
		return moerr.NewTypeMismatch(d.set.Type().String(), s.Type().String())
	}
	d.set = s
	return nil
}
