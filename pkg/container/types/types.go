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

package types

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
)

type T uint8

const (
	T_any T = iota
	T_int64
	T_float64
	// T_decimal is a decimal with a declared precision (Width) and scale.
	T_decimal
	// T_decimal_unlimited never rounds and never overflows.
	T_decimal_unlimited
	T_varchar
	// T_set is a mergeable distinct set, Elems holds the key column types.
	T_set
)

const (
	MaxDecimalPrecision = 38

	// UnlimitedDivisionScale is the scale of quotients between unlimited decimals.
	UnlimitedDivisionScale = 20
)

// Type is the semantic type of a value flowing through aggregation.
type Type struct {
	Oid T

	// Width is the precision of T_decimal.
	Width int32
	Scale int32

	Elems []Type
}

func (t T) ToType() Type {
	switch t {
	case T_decimal:
		return Type{Oid: t, Width: MaxDecimalPrecision, Scale: 0}
	default:
		return Type{Oid: t}
	}
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_int64:
		return "BIGINT"
	case T_float64:
		return "DOUBLE"
	case T_decimal:
		return "DECIMAL"
	case T_decimal_unlimited:
		return "DECIMAL"
	case T_varchar:
		return "VARCHAR"
	case T_set:
		return "SET"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

func (t T) OidString() string {
	switch t {
	case T_any:
		return "T_any"
	case T_int64:
		return "T_int64"
	case T_float64:
		return "T_float64"
	case T_decimal:
		return "T_decimal"
	case T_decimal_unlimited:
		return "T_decimal_unlimited"
	case T_varchar:
		return "T_varchar"
	case T_set:
		return "T_set"
	}
	return "unknown_type"
}

func NewInt64Type() Type {
	return Type{Oid: T_int64}
}

func NewFloat64Type() Type {
	return Type{Oid: T_float64}
}

// NewDecimalType returns DECIMAL(precision, scale), the precision is capped at
// MaxDecimalPrecision and the scale at the precision.
func NewDecimalType(precision, scale int32) Type {
	if precision > MaxDecimalPrecision {
		precision = MaxDecimalPrecision
	}
	if scale > precision {
		scale = precision
	}
	return Type{Oid: T_decimal, Width: precision, Scale: scale}
}

func NewUnlimitedDecimalType() Type {
	return Type{Oid: T_decimal_unlimited}
}

func NewVarcharType() Type {
	return Type{Oid: T_varchar}
}

func NewSetType(keys ...Type) Type {
	return Type{Oid: T_set, Elems: keys}
}

func (t Type) String() string {
	return t.DescString()
}

func (t Type) DescString() string {
	switch t.Oid {
	case T_decimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	case T_set:
		elems := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = e.DescString()
		}
		return fmt.Sprintf("SET(%s)", strings.Join(elems, ","))
	}
	return t.Oid.String()
}

func (t Type) Eq(b Type) bool {
	if t.Oid != b.Oid || t.Width != b.Width || t.Scale != b.Scale {
		return false
	}
	return slices.EqualFunc(t.Elems, b.Elems, func(x, y Type) bool { return x.Eq(y) })
}

func (t Type) IsDecimal() bool {
	return t.Oid == T_decimal || t.Oid == T_decimal_unlimited
}

func (t Type) IsNumeric() bool {
	return t.Oid == T_int64 || t.Oid == T_float64 || t.IsDecimal()
}

// IsOrdered reports whether values of t have a total order usable by MIN/MAX.
func (t Type) IsOrdered() bool {
	return t.IsNumeric() || t.Oid == T_varchar
}

// SumReturnType is the output type of SUM over typ. DECIMAL(p,s) widens to
// DECIMAL(p+10,s), every other numeric type keeps its natural type.
func SumReturnType(typ Type) (Type, error) {
	switch typ.Oid {
	case T_int64, T_float64, T_decimal_unlimited:
		return typ, nil
	case T_decimal:
		return NewDecimalType(typ.Width+10, typ.Scale), nil
	}
	return Type{}, moerr.NewInvalidArg("sum", typ.String())
}

// AvgReturnType is the output type of AVG over typ. DECIMAL(p,s) widens to
// DECIMAL(p+4,s+4), BIGINT and DOUBLE average to DOUBLE.
func AvgReturnType(typ Type) (Type, error) {
	switch typ.Oid {
	case T_int64, T_float64:
		return NewFloat64Type(), nil
	case T_decimal_unlimited:
		return typ, nil
	case T_decimal:
		return NewDecimalType(typ.Width+4, typ.Scale+4), nil
	}
	return Type{}, moerr.NewInvalidArg("avg", typ.String())
}

// AccumulationType is the type a running SUM/AVG over typ is kept in. BIGINT
// and decimals are accumulated unlimited and cast back once when the result
// is read, so only the final value is range checked.
func AccumulationType(typ Type) Type {
	switch typ.Oid {
	case T_int64, T_decimal:
		return NewUnlimitedDecimalType()
	}
	return typ
}

// ParseType parses the textual type names accepted by the command line tools,
// bigint, double, varchar, decimal and decimal(p,s).
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "bigint", "int", "int64":
		return NewInt64Type(), nil
	case "double", "float", "float64":
		return NewFloat64Type(), nil
	case "varchar", "string":
		return NewVarcharType(), nil
	case "decimal":
		return NewUnlimitedDecimalType(), nil
	}
	if strings.HasPrefix(name, "decimal(") && strings.HasSuffix(name, ")") {
		args := strings.Split(name[len("decimal("):len(name)-1], ",")
		if len(args) != 2 {
			return Type{}, moerr.NewInvalidInput("bad decimal type '%s'", s)
		}
		p, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 32)
		if err != nil {
			return Type{}, moerr.NewInvalidInput("bad decimal precision '%s'", args[0])
		}
		sc, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 32)
		if err != nil {
			return Type{}, moerr.NewInvalidInput("bad decimal scale '%s'", args[1])
		}
		if p <= 0 || p > MaxDecimalPrecision || sc < 0 || sc > p {
			return Type{}, moerr.NewInvalidInput("decimal(%d,%d) out of range", p, sc)
		}
		return NewDecimalType(int32(p), int32(sc)), nil
	}
	return Type{}, moerr.NewInvalidInput("unknown type '%s'", s)
}
