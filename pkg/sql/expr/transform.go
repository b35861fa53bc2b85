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

package expr

import (
	"github.com/google/uuid"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
)

// Walk visits e and its descendants in pre-order, descending into the
// children of a node only when fn returns true.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, child := range e.Children() {
		Walk(child, fn)
	}
}

// Transform rebuilds e bottom-up, replacing every node with fn(node).
func Transform(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	children := e.Children()
	if len(children) > 0 {
		changed := make([]Expr, len(children))
		for i, child := range children {
			c, err := Transform(child, fn)
			if err != nil {
				return nil, err
			}
			changed[i] = c
		}
		var err error
		if e, err = e.WithChildren(changed); err != nil {
			return nil, err
		}
	}
	return fn(e)
}

// Attributes returns the distinct attributes referenced by e in the order
// they are first seen.
func Attributes(e Expr) []*Attribute {
	var attrs []*Attribute
	seen := make(map[uuid.UUID]struct{})
	Walk(e, func(n Expr) bool {
		if a, ok := n.(*Attribute); ok {
			if _, ok := seen[a.ID]; !ok {
				seen[a.ID] = struct{}{}
				attrs = append(attrs, a)
			}
		}
		return true
	})
	return attrs
}

// Bind replaces every attribute in e with a column reading the position of
// that attribute in schema.
func Bind(e Expr, schema []*Attribute) (Expr, error) {
	pos := make(map[uuid.UUID]int, len(schema))
	for i, a := range schema {
		pos[a.ID] = i
	}
	return Transform(e, func(n Expr) (Expr, error) {
		a, ok := n.(*Attribute)
		if !ok {
			return n, nil
		}
		i, ok := pos[a.ID]
		if !ok {
			return nil, moerr.NewInvalidState("attribute %s is not in the input schema", a)
		}
		if !schema[i].Typ.Eq(a.Typ) {
			return nil, moerr.NewTypeMismatch(a.Typ.String(), schema[i].Typ.String())
		}
		return NewColumn(i, a.Name, a.Typ), nil
	})
}
