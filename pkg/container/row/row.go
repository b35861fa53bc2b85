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

package row

import (
	"github.com/gogo/protobuf/proto"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/distinct"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/encoding"
)

// Row is one input or output tuple, nil marks NULL.
type Row []any

func (r Row) IsNull(i int) bool {
	return r[i] == nil
}

// AnyNull reports whether any column in pos is NULL.
func (r Row) AnyNull(pos []int) bool {
	for _, i := range pos {
		if r[i] == nil {
			return true
		}
	}
	return false
}

// Check verifies that r matches the schema typs.
func (r Row) Check(typs []types.Type) error {
	if len(r) != len(typs) {
		return moerr.NewInvalidInput("row has %d columns, schema has %d", len(r), len(typs))
	}
	for i, typ := range typs {
		if err := types.CheckValue(typ, r[i]); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes r under the schema typs. Set columns are written with
// their own binary form.
func Encode(typs []types.Type, r Row) ([]byte, error) {
	if err := r.Check(typs); err != nil {
		return nil, err
	}
	b := proto.NewBuffer(nil)
	for i, typ := range typs {
		if typ.Oid != types.T_set {
			if err := encoding.EncodeValue(b, typ, r[i]); err != nil {
				return nil, err
			}
			continue
		}
		if r[i] == nil {
			if err := b.EncodeVarint(0); err != nil {
				return nil, err
			}
			continue
		}
		data, err := r[i].(*distinct.Set).MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err := b.EncodeVarint(1); err != nil {
			return nil, err
		}
		if err := b.EncodeRawBytes(data); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(typs []types.Type, data []byte) (Row, error) {
	b := proto.NewBuffer(data)
	r := make(Row, len(typs))
	for i, typ := range typs {
		if typ.Oid != types.T_set {
			v, err := encoding.DecodeValue(b, typ)
			if err != nil {
				return nil, err
			}
			r[i] = v
			continue
		}
		null, err := b.DecodeVarint()
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		if null == 0 {
			continue
		}
		raw, err := b.DecodeRawBytes(false)
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		s, err := distinct.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		if !s.Type().Eq(typ) {
			return nil, moerr.NewTypeMismatch(typ.String(), s.Type().String())
		}
		r[i] = s
	}
	return r, nil
}
