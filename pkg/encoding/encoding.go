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

// Package encoding is the wire format of typed values shipped between the
// partial and the final phase of an aggregation. It is built on the varint,
// zigzag and length-delimited primitives of proto.Buffer.
package encoding

import (
	"math"

	"github.com/gogo/protobuf/proto"
	"github.com/shopspring/decimal"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/types"
)

const (
	nullMarker  uint64 = 0
	valueMarker uint64 = 1
)

func EncodeType(b *proto.Buffer, typ types.Type) error {
	if err := b.EncodeVarint(uint64(typ.Oid)); err != nil {
		return err
	}
	if err := b.EncodeZigzag64(uint64(typ.Width)); err != nil {
		return err
	}
	if err := b.EncodeZigzag64(uint64(typ.Scale)); err != nil {
		return err
	}
	if err := b.EncodeVarint(uint64(len(typ.Elems))); err != nil {
		return err
	}
	for _, e := range typ.Elems {
		if err := EncodeType(b, e); err != nil {
			return err
		}
	}
	return nil
}

func DecodeType(b *proto.Buffer) (types.Type, error) {
	var typ types.Type
	oid, err := b.DecodeVarint()
	if err != nil {
		return typ, moerr.ConvertGoError(err)
	}
	if oid > uint64(types.T_set) {
		return typ, moerr.NewInvalidInput("unknown type oid %d", oid)
	}
	typ.Oid = types.T(oid)
	width, err := b.DecodeZigzag64()
	if err != nil {
		return typ, moerr.ConvertGoError(err)
	}
	typ.Width = int32(int64(width))
	scale, err := b.DecodeZigzag64()
	if err != nil {
		return typ, moerr.ConvertGoError(err)
	}
	typ.Scale = int32(int64(scale))
	n, err := b.DecodeVarint()
	if err != nil {
		return typ, moerr.ConvertGoError(err)
	}
	if n > 0 {
		typ.Elems = make([]types.Type, n)
		for i := range typ.Elems {
			if typ.Elems[i], err = DecodeType(b); err != nil {
				return typ, err
			}
		}
	}
	return typ, nil
}

// EncodeValue writes a nullable scalar of typ. Sets are not scalars, they
// marshal themselves.
func EncodeValue(b *proto.Buffer, typ types.Type, v any) error {
	if v == nil {
		return b.EncodeVarint(nullMarker)
	}
	if err := types.CheckValue(typ, v); err != nil {
		return err
	}
	if err := b.EncodeVarint(valueMarker); err != nil {
		return err
	}
	switch typ.Oid {
	case types.T_int64:
		return b.EncodeZigzag64(uint64(v.(int64)))
	case types.T_float64:
		return b.EncodeFixed64(math.Float64bits(v.(float64)))
	case types.T_decimal, types.T_decimal_unlimited:
		return b.EncodeStringBytes(v.(decimal.Decimal).String())
	case types.T_varchar:
		return b.EncodeStringBytes(v.(string))
	}
	return moerr.NewNotSupported("encode value of type %s", typ)
}

func DecodeValue(b *proto.Buffer, typ types.Type) (any, error) {
	marker, err := b.DecodeVarint()
	if err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	if marker == nullMarker {
		return nil, nil
	}
	switch typ.Oid {
	case types.T_int64:
		x, err := b.DecodeZigzag64()
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		return int64(x), nil
	case types.T_float64:
		x, err := b.DecodeFixed64()
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		return math.Float64frombits(x), nil
	case types.T_decimal, types.T_decimal_unlimited:
		s, err := b.DecodeStringBytes()
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, moerr.NewInvalidInput("bad decimal '%s'", s)
		}
		return d, nil
	case types.T_varchar:
		s, err := b.DecodeStringBytes()
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		return s, nil
	}
	return nil, moerr.NewNotSupported("decode value of type %s", typ)
}

// AppendKey appends the canonical encoding of a non-null key component to dst.
// Values that compare equal encode to the same bytes, so 1.10 and 1.1 collide,
// and so do 0.0 and -0.0.
func AppendKey(dst []byte, typ types.Type, v any) ([]byte, error) {
	if v == nil {
		return nil, moerr.NewInvalidArg("distinct key", "NULL")
	}
	if err := types.CheckValue(typ, v); err != nil {
		return nil, err
	}
	b := proto.NewBuffer(dst)
	var err error
	switch typ.Oid {
	case types.T_int64:
		err = b.EncodeZigzag64(uint64(v.(int64)))
	case types.T_float64:
		f := v.(float64)
		switch {
		case f == 0:
			f = 0
		case math.IsNaN(f):
			f = math.NaN()
		}
		err = b.EncodeFixed64(math.Float64bits(f))
	case types.T_decimal, types.T_decimal_unlimited:
		err = b.EncodeStringBytes(v.(decimal.Decimal).String())
	case types.T_varchar:
		err = b.EncodeStringBytes(v.(string))
	default:
		err = moerr.NewNotSupported("distinct key of type %s", typ)
	}
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
