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

	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/encoding"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

// sum keeps its running total in the accumulation type of the input, an
// unlimited decimal for BIGINT and decimal input, and casts to the result
// type only when read.
type sum struct {
	agg  *Aggregate
	in   types.Type
	work types.Numeric
	acc  any
}

func newSum(a *Aggregate) (*sum, error) {
	in := a.Args[0].Type()
	work, err := types.NumericOf(types.AccumulationType(in))
	if err != nil {
		return nil, err
	}
	return &sum{agg: a, in: in, work: work}, nil
}

func (s *sum) Aggregate() *Aggregate {
	return s.agg
}

func (s *sum) Update(r row.Row) error {
	v, err := evalArg(s.agg, 0, r)
	if err != nil || v == nil {
		return err
	}
	w, err := expr.CastValue(v, s.in, s.work.Type())
	if err != nil {
		return err
	}
	acc := s.acc
	if acc == nil {
		acc = s.work.Zero()
	}
	if acc, err = s.work.Plus(acc, w); err != nil {
		return err
	}
	s.acc = acc
	return nil
}

func (s *sum) Eval(_ row.Row) (any, error) {
	return expr.CastValue(s.acc, s.work.Type(), s.agg.Type())
}

func (s *sum) MarshalBinary() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if err := encoding.EncodeValue(b, s.work.Type(), s.acc); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (s *sum) UnmarshalBinary(data []byte) error {
	v, err := encoding.DecodeValue(proto.NewBuffer(data), s.work.Type())
	if err != nil {
		return err
	}
	s.acc = v
	return nil
}
