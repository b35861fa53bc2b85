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

package config

import (
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/logutil"
)

const (
	defaultCompressThreshold = 4096
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultMaxLogFileSize    = 512
)

// Parameters of the aggregation tools.
type Parameters struct {
	Log logutil.LogConfig `toml:"log"`

	Aggregate AggregateParameters `toml:"aggregate"`
}

// AggregateParameters tune the two phase executor.
type AggregateParameters struct {
	//default is the number of cpus. the count of go routines running partial passes
	PartialConcurrency int `toml:"partialConcurrency"`

	//default is 4096. partial frames larger than it are compressed with lz4, negative disables compression
	CompressThreshold int `toml:"compressThreshold"`
}

// LoadParameters decodes the toml file at path on top of the defaults.
func LoadParameters(path string) (*Parameters, error) {
	p := &Parameters{}
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, moerr.NewBadConfig("load %s: %v", path, err)
	}
	p.SetDefaultValues()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseParameters decodes toml text, used for inline configuration and tests.
func ParseParameters(data string) (*Parameters, error) {
	p := &Parameters{}
	if _, err := toml.Decode(data, p); err != nil {
		return nil, moerr.NewBadConfig("%v", err)
	}
	p.SetDefaultValues()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetDefaultValues fills the fields left zero.
func (p *Parameters) SetDefaultValues() {
	if p.Log.Level == "" {
		p.Log.Level = defaultLogLevel
	}
	if p.Log.Format == "" {
		p.Log.Format = defaultLogFormat
	}
	if p.Log.MaxSize == 0 {
		p.Log.MaxSize = defaultMaxLogFileSize
	}
	p.Aggregate.SetDefaultValues()
}

func (ap *AggregateParameters) SetDefaultValues() {
	if ap.PartialConcurrency == 0 {
		ap.PartialConcurrency = runtime.NumCPU()
	}
	if ap.CompressThreshold == 0 {
		ap.CompressThreshold = defaultCompressThreshold
	}
}

func (p *Parameters) Validate() error {
	switch p.Log.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return moerr.NewBadConfig("log level %q", p.Log.Level)
	}
	switch p.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfig("log format %q", p.Log.Format)
	}
	if p.Log.MaxSize < 0 || p.Log.MaxDays < 0 || p.Log.MaxBackups < 0 {
		return moerr.NewBadConfig("negative log rotation setting")
	}
	return p.Aggregate.Validate()
}

func (ap *AggregateParameters) Validate() error {
	if ap.PartialConcurrency < 0 {
		return moerr.NewBadConfig("partialConcurrency %d", ap.PartialConcurrency)
	}
	return nil
}
