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
	"encoding"

	"github.com/matrixorigin/partialagg/pkg/container/row"
)

// Accumulator is the running state of one aggregate over one partition.
// It starts empty, is fed rows with Update and read with Eval. Eval never
// changes the state, so it may be called again after further updates.
// An Accumulator is owned by one goroutine.
type Accumulator interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	// Aggregate returns the aggregate the accumulator was built for.
	Aggregate() *Aggregate

	// Update folds r into the state. An error from evaluating an argument
	// is returned unchanged and leaves the state as of the last successful
	// update.
	Update(r row.Row) error

	// Eval returns the current result, r is unused by every kind here.
	Eval(r row.Row) (any, error)
}
