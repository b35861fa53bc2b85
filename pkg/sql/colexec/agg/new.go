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
	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/distinct"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

// NewAccumulator returns an empty accumulator for a.
func NewAccumulator(a *Aggregate) (Accumulator, error) {
	if a == nil {
		return nil, moerr.NewInvalidArg("aggregate", "nil")
	}
	argTypes := a.ArgTypes()
	switch a.Op {
	case Min:
		return newMin(a)
	case Max:
		return newMax(a)
	case Count:
		return newCount(a), nil
	case Sum:
		return newSum(a)
	case Average:
		return newAvg(a)
	case CountDistinct, SumDistinct, CollectDistinct:
		s, err := distinct.New(argTypes...)
		if err != nil {
			return nil, err
		}
		return newDistinct(a, s)
	case MergeDistinctCount, MergeDistinctSum:
		if len(argTypes) != 1 || argTypes[0].Oid != types.T_set {
			return nil, moerr.NewTypeMismatch("SET", a.String())
		}
		s, err := distinct.New(argTypes[0].Elems...)
		if err != nil {
			return nil, err
		}
		return newDistinct(a, s)
	}
	return nil, moerr.NewInternalError("unsupported aggregate %s", a.Op)
}

// Restore rebuilds the accumulator of a from state written by MarshalBinary.
func Restore(a *Aggregate, data []byte) (Accumulator, error) {
	acc, err := NewAccumulator(a)
	if err != nil {
		return nil, err
	}
	if err := acc.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return acc, nil
}
