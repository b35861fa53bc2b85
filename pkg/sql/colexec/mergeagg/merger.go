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
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

// Merger is the final phase of a Plan. Every aggregate inside the final
// expressions gets one accumulator fed with the partial rows; the final
// expressions are then evaluated over the row of their results.
type Merger struct {
	plan     *Plan
	typs     []types.Type
	finals   []expr.Expr
	accs     []agg.Accumulator
	owner    []int
	nPartial int
}

func NewMerger(p *Plan) (*Merger, error) {
	m := &Merger{plan: p, typs: p.PartialTypes()}
	for i, s := range p.Splits {
		bound, err := expr.Bind(s.Final(), p.PartialSchema())
		if err != nil {
			return nil, p.failed(i, err)
		}
		final, err := expr.Transform(bound, func(e expr.Expr) (expr.Expr, error) {
			a, ok := e.(*agg.Aggregate)
			if !ok {
				return e, nil
			}
			acc, err := agg.NewAccumulator(a)
			if err != nil {
				return nil, err
			}
			m.accs = append(m.accs, acc)
			m.owner = append(m.owner, i)
			return expr.NewColumn(len(m.accs)-1, a.String(), a.Type()), nil
		})
		if err != nil {
			return nil, p.failed(i, err)
		}
		m.finals = append(m.finals, final)
	}
	return m, nil
}

// Merge folds one partial row into the final accumulators. The merger takes
// ownership of the values of r.
func (m *Merger) Merge(r row.Row) error {
	if err := r.Check(m.typs); err != nil {
		return err
	}
	for i, acc := range m.accs {
		if err := acc.Update(r); err != nil {
			return m.plan.failed(m.owner[i], err)
		}
	}
	m.nPartial++
	return nil
}

// Merged returns the number of partial rows merged so far.
func (m *Merger) Merged() int {
	return m.nPartial
}

// Finalize returns one value per aggregate of the plan. It does not change
// the merger and may be called again after more merges.
func (m *Merger) Finalize() (row.Row, error) {
	results := make(row.Row, len(m.accs))
	for i, acc := range m.accs {
		v, err := acc.Eval(nil)
		if err != nil {
			return nil, m.plan.failed(m.owner[i], err)
		}
		results[i] = v
	}
	out := make(row.Row, len(m.finals))
	for i, final := range m.finals {
		v, err := final.Eval(results)
		if err != nil {
			return nil, m.plan.failed(i, err)
		}
		out[i] = v
	}
	return out, nil
}
