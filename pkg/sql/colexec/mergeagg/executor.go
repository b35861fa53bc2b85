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
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/config"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/logutil"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
)

// Executor runs the partial passes of a plan on a worker pool and merges
// their frames as they complete.
type Executor struct {
	params config.AggregateParameters
	pool   *ants.Pool
	logger *zap.Logger
}

type partialResult struct {
	partition int
	frame     []byte
	err       error
}

// NewExecutor returns an executor, a nil logger means the global one.
// Close releases its pool.
func NewExecutor(params config.AggregateParameters, logger *zap.Logger) (*Executor, error) {
	params.SetDefaultValues()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logutil.GetGlobalLogger()
	}
	e := &Executor{params: params, logger: logger.Named("mergeagg")}
	pool, err := ants.NewPool(params.PartialConcurrency, ants.WithPanicHandler(func(v interface{}) {
		e.logger.Error("partial pass worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	e.pool = pool
	return e, nil
}

func (e *Executor) Close() {
	e.pool.Release()
}

// Run computes aggs over the union of partitions. If any partition fails,
// every partial result is discarded and the error is returned, wrapped with
// the aggregate it was raised for. Cancelling ctx stops scheduling further
// partitions.
func (e *Executor) Run(ctx context.Context, aggs []*agg.Aggregate, partitions []Source) (row.Row, error) {
	start := time.Now()
	plan, err := NewPlan(aggs...)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("split aggregates",
		zap.Int("partitions", len(partitions)),
		zap.String("plan", Explain(plan)))
	merger, err := NewMerger(plan)
	if err != nil {
		return nil, err
	}
	typs := plan.PartialTypes()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	results := make(chan partialResult, len(partitions))
	abort := func(err error) error {
		cancel()
		wg.Wait()
		e.logger.Error("aggregate failed, partial results discarded",
			zap.Int("merged", merger.Merged()),
			zap.Error(err))
		return err
	}

	submitted := 0
	for i, src := range partitions {
		if ctx.Err() != nil {
			break
		}
		i, src := i, src
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			results <- e.partial(ctx, plan, typs, i, src)
		})
		if err != nil {
			wg.Done()
			return nil, abort(moerr.ConvertGoError(err))
		}
		submitted++
	}
	if err := ctx.Err(); err != nil {
		return nil, abort(moerr.ConvertGoError(err))
	}

	for n := 0; n < submitted; n++ {
		var res partialResult
		select {
		case res = <-results:
		case <-ctx.Done():
			return nil, abort(moerr.ConvertGoError(ctx.Err()))
		}
		if res.err != nil {
			e.logger.Error("partial pass failed", zap.Int("partition", res.partition), zap.Error(res.err))
			return nil, abort(res.err)
		}
		r, err := DecodeFrame(typs, res.frame)
		if err != nil {
			return nil, abort(err)
		}
		if err := merger.Merge(r); err != nil {
			return nil, abort(err)
		}
	}

	out, err := merger.Finalize()
	if err != nil {
		return nil, abort(err)
	}
	e.logger.Debug("aggregate done",
		zap.Int("partitions", submitted),
		logutil.Elapsed(start))
	return out, nil
}

func (e *Executor) partial(ctx context.Context, plan *Plan, typs []types.Type, i int, src Source) (res partialResult) {
	res.partition = i
	defer func() {
		if v := recover(); v != nil {
			res.frame, res.err = nil, moerr.ConvertPanicError(v)
		}
	}()
	if err := ctx.Err(); err != nil {
		res.err = moerr.ConvertGoError(err)
		return
	}
	r, err := PartialPass(plan, src)
	if err != nil {
		res.err = err
		return
	}
	if res.frame, res.err = EncodeFrame(typs, r, e.params.CompressThreshold); res.err != nil {
		return
	}
	e.logger.Debug("partial pass done",
		zap.Int("partition", i),
		zap.Int("frame-size", len(res.frame)),
		zap.Bool("compressed", IsCompressed(res.frame)))
	return
}
