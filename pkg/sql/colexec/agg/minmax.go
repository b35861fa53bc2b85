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
)

// minMax keeps the current extreme. Only a strictly smaller (min) or larger
// (max) value replaces it, so of equal values the first one seen is kept.
type minMax struct {
	agg  *Aggregate
	ord  types.Ordering
	sign int
	cur  any
}

func newMin(a *Aggregate) (*minMax, error) {
	return newMinMax(a, -1)
}

func newMax(a *Aggregate) (*minMax, error) {
	return newMinMax(a, 1)
}

func newMinMax(a *Aggregate, sign int) (*minMax, error) {
	ord, err := types.OrderingOf(a.Args[0].Type())
	if err != nil {
		return nil, err
	}
	return &minMax{agg: a, ord: ord, sign: sign}, nil
}

func (m *minMax) Aggregate() *Aggregate {
	return m.agg
}

func (m *minMax) Update(r row.Row) error {
	v, err := evalArg(m.agg, 0, r)
	if err != nil || v == nil {
		return err
	}
	if m.cur == nil {
		m.cur = v
		return nil
	}
	c, err := m.ord.Compare(v, m.cur)
	if err != nil {
		return err
	}
	if c == m.sign {
		m.cur = v
	}
	return nil
}

func (m *minMax) Eval(_ row.Row) (any, error) {
	return m.cur, nil
}

func (m *minMax) MarshalBinary() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if err := encoding.EncodeValue(b, m.ord.Type(), m.cur); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (m *minMax) UnmarshalBinary(data []byte) error {
	v, err := encoding.DecodeValue(proto.NewBuffer(data), m.ord.Type())
	if err != nil {
		return err
	}
	m.cur = v
	return nil
}

// evalArg evaluates the i-th argument of a and checks the value against the
// declared argument type.
func evalArg(a *Aggregate, i int, r row.Row) (any, error) {
	arg := a.Args[i]
	v, err := arg.Eval(r)
	if err != nil {
		return nil, err
	}
	if err := types.CheckValue(arg.Type(), v); err != nil {
		return nil, err
	}
	return v, nil
}
