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
	"fmt"
	"strings"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

type Kind uint8

const (
	Min Kind = iota + 1
	Max
	Count
	Sum
	Average
	CountDistinct
	SumDistinct

	// CollectDistinct, MergeDistinctCount and MergeDistinctSum only appear in
	// the two halves of a split DISTINCT aggregate.
	CollectDistinct
	MergeDistinctCount
	MergeDistinctSum
)

var aggNames = map[Kind]string{
	Min:                "min",
	Max:                "max",
	Count:              "count",
	Sum:                "sum",
	Average:            "avg",
	CountDistinct:      "count_distinct",
	SumDistinct:        "sum_distinct",
	CollectDistinct:    "collect_distinct",
	MergeDistinctCount: "merge_distinct_count",
	MergeDistinctSum:   "merge_distinct_sum",
}

func (k Kind) String() string {
	if name, ok := aggNames[k]; ok {
		return name
	}
	return fmt.Sprintf("agg(%d)", uint8(k))
}

// IsDistinct reports whether k deduplicates its input.
func (k Kind) IsDistinct() bool {
	switch k {
	case CountDistinct, SumDistinct, CollectDistinct, MergeDistinctCount, MergeDistinctSum:
		return true
	}
	return false
}

// ParseKind maps a function name to its aggregate kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "count(distinct)":
		return CountDistinct, nil
	case "sum(distinct)":
		return SumDistinct, nil
	}
	for k, n := range aggNames {
		if n == name {
			return k, nil
		}
	}
	return 0, moerr.NewInvalidArg("aggregate function", name)
}

// Aggregate is a logical aggregate call. It is an expression only so that it
// can sit inside the final expression of a split, it never evaluates by
// itself; an Accumulator built from it does.
type Aggregate struct {
	Op   Kind
	Args []expr.Expr

	typ types.Type
}

// New checks the arguments of op and returns the aggregate with its result
// type resolved.
func New(op Kind, args ...expr.Expr) (*Aggregate, error) {
	typ, err := ReturnType(op, args)
	if err != nil {
		return nil, err
	}
	return &Aggregate{Op: op, Args: args, typ: typ}, nil
}

// CountStar is count over a non-null constant, it counts every row.
func CountStar() *Aggregate {
	one := &expr.Literal{Value: int64(1), Typ: types.NewInt64Type()}
	return &Aggregate{Op: Count, Args: []expr.Expr{one}, typ: types.NewInt64Type()}
}

func ReturnType(op Kind, args []expr.Expr) (types.Type, error) {
	argTypes := make([]types.Type, len(args))
	for i, arg := range args {
		argTypes[i] = arg.Type()
	}

	arity := func(n int) error {
		if len(args) != n {
			return moerr.NewInvalidArg(fmt.Sprintf("number of arguments of %s", op), len(args))
		}
		return nil
	}
	ordered := func() error {
		if len(args) == 0 {
			return moerr.NewInvalidArg(fmt.Sprintf("number of arguments of %s", op), 0)
		}
		for _, typ := range argTypes {
			if !typ.IsOrdered() {
				return moerr.NewNotSupported("%s over %s", op, typ)
			}
		}
		return nil
	}
	numeric := func() error {
		if err := arity(1); err != nil {
			return err
		}
		if !argTypes[0].IsNumeric() {
			return moerr.NewNotSupported("%s over %s", op, argTypes[0])
		}
		return nil
	}
	set := func() error {
		if err := arity(1); err != nil {
			return err
		}
		if argTypes[0].Oid != types.T_set {
			return moerr.NewTypeMismatch("SET", argTypes[0].String())
		}
		return nil
	}

	switch op {
	case Min, Max:
		if err := arity(1); err != nil {
			return types.Type{}, err
		}
		if err := ordered(); err != nil {
			return types.Type{}, err
		}
		return argTypes[0], nil
	case Count:
		if err := arity(1); err != nil {
			return types.Type{}, err
		}
		return types.NewInt64Type(), nil
	case Sum:
		if err := numeric(); err != nil {
			return types.Type{}, err
		}
		return types.SumReturnType(argTypes[0])
	case Average:
		if err := numeric(); err != nil {
			return types.Type{}, err
		}
		return types.AvgReturnType(argTypes[0])
	case CountDistinct:
		if err := ordered(); err != nil {
			return types.Type{}, err
		}
		return types.NewInt64Type(), nil
	case SumDistinct:
		if err := numeric(); err != nil {
			return types.Type{}, err
		}
		return types.SumReturnType(argTypes[0])
	case CollectDistinct:
		if err := ordered(); err != nil {
			return types.Type{}, err
		}
		return types.NewSetType(argTypes...), nil
	case MergeDistinctCount:
		if err := set(); err != nil {
			return types.Type{}, err
		}
		return types.NewInt64Type(), nil
	case MergeDistinctSum:
		if err := set(); err != nil {
			return types.Type{}, err
		}
		elems := argTypes[0].Elems
		if len(elems) != 1 || !elems[0].IsNumeric() {
			return types.Type{}, moerr.NewNotSupported("%s over %s", op, argTypes[0])
		}
		return types.SumReturnType(elems[0])
	}
	return types.Type{}, moerr.NewInvalidArg("aggregate kind", uint8(op))
}

func (a *Aggregate) Type() types.Type {
	return a.typ
}

func (a *Aggregate) Eval(_ row.Row) (any, error) {
	return nil, moerr.NewInvalidState("aggregate %s evaluated outside an accumulator", a)
}

func (a *Aggregate) Children() []expr.Expr {
	return a.Args
}

func (a *Aggregate) WithChildren(children []expr.Expr) (expr.Expr, error) {
	return New(a.Op, children...)
}

func (a *Aggregate) String() string {
	switch a.Op {
	case CountDistinct:
		return fmt.Sprintf("count(distinct %s)", expr.Join(a.Args))
	case SumDistinct:
		return fmt.Sprintf("sum(distinct %s)", expr.Join(a.Args))
	}
	return fmt.Sprintf("%s(%s)", a.Op, expr.Join(a.Args))
}

// ArgTypes returns the types of the arguments of a.
func (a *Aggregate) ArgTypes() []types.Type {
	typs := make([]types.Type, len(a.Args))
	for i, arg := range a.Args {
		typs[i] = arg.Type()
	}
	return typs
}
