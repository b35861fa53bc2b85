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

// Package expr is the small scalar expression layer the aggregation core
// evaluates against rows: column references, literals, casts, division and
// coalesce, plus the attributes that name partial aggregate outputs.
package expr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

type Expr interface {
	fmt.Stringer

	// Type returns the result type of the expression.
	Type() types.Type

	// Eval evaluates the expression against r, nil is NULL.
	Eval(r row.Row) (any, error)

	Children() []Expr

	// WithChildren returns a copy of the expression with children replaced.
	WithChildren(children []Expr) (Expr, error)
}

// Column reads one position of the input row.
type Column struct {
	Pos  int
	Name string
	Typ  types.Type
}

func NewColumn(pos int, name string, typ types.Type) *Column {
	return &Column{Pos: pos, Name: name, Typ: typ}
}

func (c *Column) Type() types.Type { return c.Typ }

func (c *Column) Eval(r row.Row) (any, error) {
	if c.Pos < 0 || c.Pos >= len(r) {
		return nil, moerr.NewInvalidInput("column %s at %d, row has %d columns", c.Name, c.Pos, len(r))
	}
	v := r[c.Pos]
	if err := types.CheckValue(c.Typ, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Column) Children() []Expr { return nil }

func (c *Column) WithChildren(children []Expr) (Expr, error) {
	return leafWithChildren(c, children)
}

func (c *Column) String() string {
	if c.Name == "" {
		return fmt.Sprintf("#%d", c.Pos)
	}
	return c.Name
}

type Literal struct {
	Value any
	Typ   types.Type
}

func NewLiteral(v any, typ types.Type) (*Literal, error) {
	if err := types.CheckValue(typ, v); err != nil {
		return nil, err
	}
	return &Literal{Value: v, Typ: typ}, nil
}

func (l *Literal) Type() types.Type { return l.Typ }

func (l *Literal) Eval(_ row.Row) (any, error) { return l.Value, nil }

func (l *Literal) Children() []Expr { return nil }

func (l *Literal) WithChildren(children []Expr) (Expr, error) {
	return leafWithChildren(l, children)
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("'%s'", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Attribute names the output of a partial aggregate. Two attributes are the
// same attribute only if their IDs are equal, names are for display.
// Attributes must be bound to columns with Bind before evaluation.
type Attribute struct {
	ID   uuid.UUID
	Name string
	Typ  types.Type
}

func NewAttribute(name string, typ types.Type) *Attribute {
	return &Attribute{ID: uuid.New(), Name: name, Typ: typ}
}

func (a *Attribute) Type() types.Type { return a.Typ }

func (a *Attribute) Eval(_ row.Row) (any, error) {
	return nil, moerr.NewInvalidState("attribute %s is not bound", a)
}

func (a *Attribute) Children() []Expr { return nil }

func (a *Attribute) WithChildren(children []Expr) (Expr, error) {
	return leafWithChildren(a, children)
}

func (a *Attribute) String() string {
	return fmt.Sprintf("%s#%s", a.Name, a.ID.String()[:8])
}

// Coalesce returns the first non-null argument.
type Coalesce struct {
	Args []Expr
}

func NewCoalesce(args ...Expr) (*Coalesce, error) {
	if len(args) == 0 {
		return nil, moerr.NewInvalidArg("coalesce arguments", 0)
	}
	typ := args[0].Type()
	for _, arg := range args[1:] {
		if !arg.Type().Eq(typ) {
			return nil, moerr.NewTypeMismatch(typ.String(), arg.Type().String())
		}
	}
	return &Coalesce{Args: args}, nil
}

func (c *Coalesce) Type() types.Type { return c.Args[0].Type() }

func (c *Coalesce) Eval(r row.Row) (any, error) {
	for _, arg := range c.Args {
		v, err := arg.Eval(r)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

func (c *Coalesce) Children() []Expr { return c.Args }

func (c *Coalesce) WithChildren(children []Expr) (Expr, error) {
	return NewCoalesce(children...)
}

func (c *Coalesce) String() string {
	return fmt.Sprintf("coalesce(%s)", Join(c.Args))
}

// Join renders exprs separated by commas.
func Join(exprs []Expr) string {
	ss := make([]string, len(exprs))
	for i, e := range exprs {
		ss[i] = e.String()
	}
	return strings.Join(ss, ", ")
}

func leafWithChildren(e Expr, children []Expr) (Expr, error) {
	if len(children) != 0 {
		return nil, moerr.NewInvalidArg(fmt.Sprintf("children of %s", e), len(children))
	}
	return e, nil
}
