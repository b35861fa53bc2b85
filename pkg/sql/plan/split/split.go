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

// Package split rewrites a logical aggregate into partial aggregates, run
// once per partition, and a final expression that merges their outputs.
package split

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

// Partial is one aggregate of the partial phase and the attribute naming
// its output.
type Partial struct {
	Attr *expr.Attribute
	Agg  *agg.Aggregate
}

func (p Partial) String() string {
	return fmt.Sprintf("%s := %s", p.Attr, p.Agg)
}

// SplitEvaluation is the two phase form of one aggregate. The attributes
// referenced by the final expression are exactly the outputs of the
// partials. It is not modified after construction.
type SplitEvaluation struct {
	aggregate *agg.Aggregate
	final     expr.Expr
	partials  []Partial
}

// NewSplitEvaluation validates and returns a split of a.
func NewSplitEvaluation(a *agg.Aggregate, final expr.Expr, partials ...Partial) (*SplitEvaluation, error) {
	s := &SplitEvaluation{aggregate: a, final: final, partials: partials}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SplitEvaluation) Aggregate() *agg.Aggregate {
	return s.aggregate
}

// Final returns the merge expression, written over the partial attributes.
func (s *SplitEvaluation) Final() expr.Expr {
	return s.final
}

func (s *SplitEvaluation) Partials() []Partial {
	return append([]Partial(nil), s.partials...)
}

// PartialSchema returns the partial output attributes in order.
func (s *SplitEvaluation) PartialSchema() []*expr.Attribute {
	attrs := make([]*expr.Attribute, len(s.partials))
	for i, p := range s.partials {
		attrs[i] = p.Attr
	}
	return attrs
}

// Validate checks the split structurally: partial attributes are unique and
// typed like their aggregates, partials read only input columns, and the
// final expression reads only partial attributes, every one of them, and
// produces the type of the original aggregate.
func (s *SplitEvaluation) Validate() error {
	if s.aggregate == nil || s.final == nil || len(s.partials) == 0 {
		return moerr.NewInvalidState("incomplete split evaluation")
	}
	produced := make(map[uuid.UUID]*expr.Attribute, len(s.partials))
	for _, p := range s.partials {
		if p.Attr == nil || p.Agg == nil {
			return moerr.NewInvalidState("incomplete partial of %s", s.aggregate)
		}
		if _, ok := produced[p.Attr.ID]; ok {
			return moerr.NewInvalidState("attribute %s produced twice in split of %s", p.Attr, s.aggregate)
		}
		if !p.Attr.Typ.Eq(p.Agg.Type()) {
			return moerr.NewTypeMismatch(p.Agg.Type().String(), p.Attr.Typ.String())
		}
		if refs := expr.Attributes(p.Agg); len(refs) != 0 {
			return moerr.NewInvalidState("partial %s reads attribute %s", p.Agg, refs[0])
		}
		produced[p.Attr.ID] = p.Attr
	}

	var column expr.Expr
	expr.Walk(s.final, func(e expr.Expr) bool {
		if _, ok := e.(*expr.Column); ok && column == nil {
			column = e
		}
		return true
	})
	if column != nil {
		return moerr.NewInvalidState("final expression of %s reads input column %s", s.aggregate, column)
	}

	refs := expr.Attributes(s.final)
	for _, ref := range refs {
		attr, ok := produced[ref.ID]
		if !ok {
			return moerr.NewInvalidState("final expression of %s reads unknown attribute %s", s.aggregate, ref)
		}
		if !attr.Typ.Eq(ref.Typ) {
			return moerr.NewTypeMismatch(attr.Typ.String(), ref.Typ.String())
		}
	}
	if len(refs) != len(produced) {
		return moerr.NewInvalidState("split of %s produces %d attributes, final expression reads %d",
			s.aggregate, len(produced), len(refs))
	}
	if !s.final.Type().Eq(s.aggregate.Type()) {
		return moerr.NewTypeMismatch(s.aggregate.Type().String(), s.final.Type().String())
	}
	return nil
}

func (s *SplitEvaluation) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s => %s", s.aggregate, s.final)
	for _, p := range s.partials {
		fmt.Fprintf(&buf, "\n  %s", p)
	}
	return buf.String()
}

// Split returns the canonical decomposition of a.
func Split(a *agg.Aggregate) (*SplitEvaluation, error) {
	if a == nil {
		return nil, moerr.NewInvalidArg("aggregate", "nil")
	}
	switch a.Op {
	case agg.Min, agg.Max:
		return splitSelf(a)
	case agg.Count:
		return splitCount(a)
	case agg.Sum:
		return splitSum(a)
	case agg.Average:
		return splitAvg(a)
	case agg.CountDistinct:
		return splitDistinct(a, agg.MergeDistinctCount)
	case agg.SumDistinct:
		return splitDistinct(a, agg.MergeDistinctSum)
	}
	return nil, moerr.NewUnsupportedDecomposition(a.String())
}

func partialOf(name string, a *agg.Aggregate) Partial {
	return Partial{Attr: expr.NewAttribute(name, a.Type()), Agg: a}
}

// min of mins, max of maxes.
func splitSelf(a *agg.Aggregate) (*SplitEvaluation, error) {
	p := partialOf("partial_"+a.Op.String(), a)
	final, err := agg.New(a.Op, p.Attr)
	if err != nil {
		return nil, err
	}
	return NewSplitEvaluation(a, final, p)
}

// count is the sum of partial counts, 0 when there are no partial rows.
func splitCount(a *agg.Aggregate) (*SplitEvaluation, error) {
	p := partialOf("partial_count", a)
	sum, err := agg.New(agg.Sum, p.Attr)
	if err != nil {
		return nil, err
	}
	zero, err := expr.NewLiteral(int64(0), types.NewInt64Type())
	if err != nil {
		return nil, err
	}
	final, err := expr.NewCoalesce(sum, zero)
	if err != nil {
		return nil, err
	}
	return NewSplitEvaluation(a, final, p)
}

// unlimited returns child cast to the accumulation type of a sum over it.
func unlimited(child expr.Expr, work types.Type) (expr.Expr, error) {
	if child.Type().Eq(work) {
		return child, nil
	}
	return expr.NewCast(child, work)
}

// A BIGINT or decimal sum runs unlimited in both phases and is cast to its declared
// type once, at the end of the final expression.
func splitSum(a *agg.Aggregate) (*SplitEvaluation, error) {
	child, err := unlimited(a.Args[0], types.AccumulationType(a.Args[0].Type()))
	if err != nil {
		return nil, err
	}
	partial, err := agg.New(agg.Sum, child)
	if err != nil {
		return nil, err
	}
	p := partialOf("partial_sum", partial)
	sum, err := agg.New(agg.Sum, p.Attr)
	if err != nil {
		return nil, err
	}
	var final expr.Expr = sum
	if !sum.Type().Eq(a.Type()) {
		if final, err = expr.NewCast(sum, a.Type()); err != nil {
			return nil, err
		}
	}
	return NewSplitEvaluation(a, final, p)
}

// avg is the sum of partial sums divided by the sum of partial counts.
func splitAvg(a *agg.Aggregate) (*SplitEvaluation, error) {
	child, err := unlimited(a.Args[0], agg.AvgSumType(a.Args[0].Type()))
	if err != nil {
		return nil, err
	}
	partialSum, err := agg.New(agg.Sum, child)
	if err != nil {
		return nil, err
	}
	partialCount, err := agg.New(agg.Count, a.Args[0])
	if err != nil {
		return nil, err
	}
	ps := partialOf("partial_sum", partialSum)
	pc := partialOf("partial_count", partialCount)

	sums, err := agg.New(agg.Sum, ps.Attr)
	if err != nil {
		return nil, err
	}
	counts, err := agg.New(agg.Sum, pc.Attr)
	if err != nil {
		return nil, err
	}
	final, err := expr.NewDivide(sums, counts, a.Type())
	if err != nil {
		return nil, err
	}
	return NewSplitEvaluation(a, final, ps, pc)
}

// Each partition collects its distinct keys into a set, the final phase
// unions the sets and counts or sums the result.
func splitDistinct(a *agg.Aggregate, merge agg.Kind) (*SplitEvaluation, error) {
	collect, err := agg.New(agg.CollectDistinct, a.Args...)
	if err != nil {
		return nil, err
	}
	p := partialOf("partial_distinct", collect)
	final, err := agg.New(merge, p.Attr)
	if err != nil {
		return nil, err
	}
	return NewSplitEvaluation(a, final, p)
}
