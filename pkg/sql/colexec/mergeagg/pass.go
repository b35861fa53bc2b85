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

package mergeagg

import (
	"io"

	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
)

// Source yields the rows of one partition. Next returns io.EOF after the
// last row.
type Source interface {
	Next() (row.Row, error)
}

type rowsSource struct {
	rows []row.Row
	pos  int
}

// NewRowsSource returns a Source reading rows in order.
func NewRowsSource(rows []row.Row) Source {
	return &rowsSource{rows: rows}
}

func (s *rowsSource) Next() (row.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

// PartialPass drives a fresh accumulator for every partial aggregate of p
// over src and returns the partial row. An update error aborts the pass and
// comes back wrapped with the aggregate it was raised for.
func PartialPass(p *Plan, src Source) (row.Row, error) {
	accs := make([]agg.Accumulator, len(p.partials))
	for i, part := range p.partials {
		acc, err := agg.NewAccumulator(part)
		if err != nil {
			return nil, p.failed(p.owner[i], err)
		}
		accs[i] = acc
	}
	for {
		r, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, acc := range accs {
			if err := acc.Update(r); err != nil {
				return nil, p.failed(p.owner[i], err)
			}
		}
	}

	out := make(row.Row, len(accs))
	for i, acc := range accs {
		v, err := acc.Eval(nil)
		if err != nil {
			return nil, p.failed(p.owner[i], err)
		}
		out[i] = v
	}
	return out, nil
}
