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
	"bytes"
	"io"

	"github.com/pierrec/lz4"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/row"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

const (
	frameRaw byte = iota
	frameLZ4
)

// EncodeFrame serializes a partial row for the trip to the final phase.
// Rows encoding to more than threshold bytes are lz4 compressed, a negative
// threshold disables compression.
func EncodeFrame(typs []types.Type, r row.Row, threshold int) ([]byte, error) {
	data, err := row.Encode(typs, r)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || len(data) <= threshold {
		return append([]byte{frameRaw}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(frameLZ4)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	if err := w.Close(); err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	return buf.Bytes(), nil
}

func DecodeFrame(typs []types.Type, frame []byte) (row.Row, error) {
	if len(frame) == 0 {
		return nil, moerr.NewInvalidInput("empty partial frame")
	}
	data := frame[1:]
	switch frame[0] {
	case frameRaw:
	case frameLZ4:
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		data = raw
	default:
		return nil, moerr.NewInvalidInput("partial frame kind %d", frame[0])
	}
	return row.Decode(typs, data)
}

// IsCompressed reports whether frame carries an lz4 payload.
func IsCompressed(frame []byte) bool {
	return len(frame) > 0 && frame[0] == frameLZ4
}
