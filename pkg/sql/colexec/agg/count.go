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
)

type count struct {
	agg *Aggregate
	n   int64
}

func newCount(a *Aggregate) *count {
	return &count{agg: a}
}

func (c *count) Aggregate() *Aggregate {
	return c.agg
}

func (c *count) Update(r row.Row) error {
	v, err := evalArg(c.agg, 0, r)
	if err != nil {
		return err
	}
	if v != nil {
		c.n++
	}
	return nil
}

func (c *count) Eval(_ row.Row) (any, error) {
	return c.n, nil
}

func (c *count) MarshalBinary() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if err := b.EncodeVarint(uint64(c.n)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *count) UnmarshalBinary(data []byte) error {
	n, err := proto.NewBuffer(data).DecodeVarint()
	if err != nil {
		return moerr.ConvertGoError(err)
	}
	c.n = int64(n)
	return nil
}
