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

// Package mergeagg drives split aggregates in two phases: one partial pass
// per partition, then a merge of the partial rows into the final result.
package mergeagg

import (
	"fmt"
	"strings"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
	"github.com/matrixorigin/partialagg/pkg/sql/plan/split"
)

// Plan is the split form of a list of aggregates over one input. Its
// partial schema is the concatenation of the partial attributes of every
// split, in aggregate order.
type Plan struct {
	Aggregates []*agg.Aggregate
	Splits     []*split.SplitEvaluation

	schema   []*expr.Attribute
	partials []*agg.Aggregate
	// owner[i] is the index of the aggregate partial i belongs to.
	owner []int
}

func NewPlan(aggs ...*agg.Aggregate) (*Plan, error) {
	if len(aggs) == 0 {
		return nil, moerr.NewInvalidArg("aggregates", "empty")
	}
	p := &Plan{Aggregates: aggs}
	for i, a := range aggs {
		s, err := split.Split(a)
		if err != nil {
			return nil, err
		}
		p.Splits = append(p.Splits, s)
		for _, part := range s.Partials() {
			p.schema = append(p.schema, part.Attr)
			p.partials = append(p.partials, part.Agg)
			p.owner = append(p.owner, i)
		}
	}
	return p, nil
}

// PartialSchema returns the attributes of a partial row.
func (p *Plan) PartialSchema() []*expr.Attribute {
	return p.schema
}

func (p *Plan) PartialTypes() []types.Type {
	typs := make([]types.Type, len(p.schema))
	for i, a := range p.schema {
		typs[i] = a.Typ
	}
	return typs
}

// OutputTypes returns the result types of the aggregates.
func (p *Plan) OutputTypes() []types.Type {
	typs := make([]types.Type, len(p.Aggregates))
	for i, a := range p.Aggregates {
		typs[i] = a.Type()
	}
	return typs
}

// failed wraps err with the aggregate at index owner.
func (p *Plan) failed(owner int, err error) error {
	if moerr.IsMoErrCode(err, moerr.ErrAggregateFailed) {
		return err
	}
	return moerr.NewAggregateFailed(p.Aggregates[owner].String(), err)
}

// Explain renders the decomposition of every aggregate of p.
func Explain(p *Plan) string {
	var buf strings.Builder
	buf.WriteString("Partial Aggregate\n")
	for i, part := range p.partials {
		fmt.Fprintf(&buf, "  %s := %s\n", p.schema[i], part)
	}
	buf.WriteString("Final Aggregate\n")
	for i, s := range p.Splits {
		fmt.Fprintf(&buf, "  %s := %s\n", p.Aggregates[i], s.Final())
	}
	return buf.String()
}
