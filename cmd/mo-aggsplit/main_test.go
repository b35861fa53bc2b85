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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
)

func runCLI(t *testing.T, input string, args ...string) (string, error) {
	var out bytes.Buffer
	err := run(args, strings.NewReader(input), &out)
	return out.String(), err
}

func TestRunBigint(t *testing.T) {
	out, err := runCLI(t, "10\nnull\n20\n\n30\n", "-partitions", "3")
	require.NoError(t, err)
	require.Equal(t, "count(v)\t3\nsum(v)\t60\navg(v)\t20\nmin(v)\t10\nmax(v)\t30\n", out)
}

func TestRunFewerRowsThanPartitions(t *testing.T) {
	out, err := runCLI(t, "9223372036854775807\n1\n-1\n", "-partitions", "8", "-agg", "sum,count")
	require.NoError(t, err)
	require.Equal(t, "sum(v)\t9223372036854775807\ncount(v)\t3\n", out)
}

func TestRunDecimal(t *testing.T) {
	out, err := runCLI(t, "1.5\n2.25\n1.50\n",
		"-type", "decimal(5,2)", "-agg", "sum,avg,count_distinct,sum_distinct", "-partitions", "2")
	require.NoError(t, err)
	require.Equal(t, "sum(v)\t5.25\navg(v)\t1.750000\ncount(distinct v)\t2\nsum(distinct v)\t3.75\n", out)
}

func TestRunEmpty(t *testing.T) {
	out, err := runCLI(t, "", "-agg", "count,sum")
	require.NoError(t, err)
	require.Equal(t, "count(v)\t0\nsum(v)\tNULL\n", out)
}

func TestRunExplainWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[aggregate]\npartialConcurrency = 2\ncompressThreshold = 0\n"), 0600))
	out, err := runCLI(t, "a\nb\na\n", "-type", "varchar", "-agg", "count_distinct,max", "-explain", "-config", path)
	require.NoError(t, err)
	require.Contains(t, out, "Partial Aggregate\n")
	require.Contains(t, out, "collect_distinct(v)")
	require.True(t, strings.HasSuffix(out, "count(distinct v)\t2\nmax(v)\tb\n"), out)
}

func TestRunErrors(t *testing.T) {
	_, err := runCLI(t, "1\n", "-agg", "median")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = runCLI(t, "1\n", "-type", "blob")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = runCLI(t, "1\nx\n")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = runCLI(t, "1000\n", "-type", "decimal(5,2)")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = runCLI(t, "a\n", "-type", "varchar", "-agg", "sum")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))

	_, err = runCLI(t, "1\n", "-partitions", "0")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = runCLI(t, "1\n", "-bogus")
	require.Error(t, err)
}
