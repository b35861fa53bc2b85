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

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/config"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/logutil"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/agg"
	"github.com/matrixorigin/partialagg/pkg/sql/colexec/mergeagg"
	"github.com/matrixorigin/partialagg/pkg/sql/expr"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logutil.Error("mo-aggsplit failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("mo-aggsplit", flag.ContinueOnError)
	fs.SetOutput(out)
	aggNames := fs.String("agg", "count,sum,avg,min,max", "comma separated aggregates: min, max, count, sum, avg, count_distinct, sum_distinct")
	typeName := fs.String("type", "bigint", "type of the input values: bigint, double, decimal, decimal(p,s), varchar")
	partitions := fs.Int("partitions", 4, "number of partitions the input is spread over")
	configFile := fs.String("config", "", "toml configuration file")
	explain := fs.Bool("explain", false, "print the two phase plan before the result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *partitions <= 0 {
		return moerr.NewInvalidArg("partitions", *partitions)
	}

	params := &config.Parameters{}
	if *configFile != "" {
		p, err := config.LoadParameters(*configFile)
		if err != nil {
			return err
		}
		params = p
		logutil.Info("configuration loaded", zap.String("file", *configFile))
	} else {
		params.SetDefaultValues()
	}
	logutil.SetupLogger(&params.Log)

	typ, err := types.ParseType(*typeName)
	if err != nil {
		return err
	}
	col := expr.NewColumn(0, "v", typ)
	aggs, err := parseAggregates(*aggNames, col)
	if err != nil {
		return err
	}

	parts, n, err := readPartitions(in, typ, *partitions)
	if err != nil {
		return err
	}
	logutil.Debug("input read", zap.Int("rows", n), zap.Int("partitions", *partitions))
	if n < *partitions {
		logutil.Warn("fewer rows than partitions, some partial passes see no input",
			zap.Int("rows", n), zap.Int("partitions", *partitions))
	}

	if *explain {
		plan, err := mergeagg.NewPlan(aggs...)
		if err != nil {
			return err
		}
		fmt.Fprint(out, mergeagg.Explain(plan))
	}

	e, err := mergeagg.NewExecutor(params.Aggregate, logutil.GetGlobalLogger())
	if err != nil {
		return err
	}
	defer e.Close()
	srcs := make([]mergeagg.Source, len(parts))
	for i, p := range parts {
		srcs[i] = mergeagg.NewRowsSource(p)
	}
	res, err := e.Run(context.Background(), aggs, srcs)
	if err != nil {
		return err
	}
	for i, a := range aggs {
		fmt.Fprintf(out, "%s\t%s\n", a, formatValue(a.Type(), res[i]))
	}
	return nil
}

func parseAggregates(names string, col expr.Expr) ([]*agg.Aggregate, error) {
	var aggs []*agg.Aggregate
	for _, name := range strings.Split(names, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := agg.ParseKind(name)
		if err != nil {
			return nil, err
		}
		a, err := agg.New(kind, col)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, a)
	}
	if len(aggs) == 0 {
		return nil, moerr.NewInvalidArg("agg", names)
	}
	return aggs, nil
}

// readPartitions spreads the values of in round robin over n partitions.
func readPartitions(in io.Reader, typ types.Type, n int) ([][]row.Row, int, error) {
	parts := make([][]row.Row, n)
	scanner := bufio.NewScanner(in)
	cnt := 0
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := parseValue(typ, text)
		if err != nil {
			return nil, 0, moerr.NewInvalidInput("line %d: %v", line, err)
		}
		parts[cnt%n] = append(parts[cnt%n], row.Row{v})
		cnt++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, moerr.ConvertGoError(err)
	}
	return parts, cnt, nil
}

func parseValue(typ types.Type, s string) (any, error) {
	if strings.EqualFold(s, "null") {
		return nil, nil
	}
	switch typ.Oid {
	case types.T_int64:
		return strconv.ParseInt(s, 10, 64)
	case types.T_float64:
		return strconv.ParseFloat(s, 64)
	case types.T_decimal, types.T_decimal_unlimited:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return expr.ToDecimal(d, typ)
	case types.T_varchar:
		return s, nil
	}
	return nil, moerr.NewNotSupported("input of type %s", typ)
}

func formatValue(typ types.Type, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case decimal.Decimal:
		if typ.Oid == types.T_decimal {
			return x.StringFixed(typ.Scale)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
