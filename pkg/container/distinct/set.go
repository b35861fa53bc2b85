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

// Package distinct implements the deduplicating key container behind the
// DISTINCT aggregates. A Set is built per partition and unioned in the merge
// phase; union of the per-partition sets is the set of the whole input.
package distinct

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/gogo/protobuf/proto"

	"github.com/matrixorigin/partialagg/pkg/common/moerr"
	"github.com/matrixorigin/partialagg/pkg/container/types"
	"github.com/matrixorigin/partialagg/pkg/encoding"
)

const (
	hashMode   uint64 = 0
	bitmapMode uint64 = 1
)

// Set holds distinct key tuples. A key with a NULL component is never added.
// Single BIGINT keys live in a bitmap, everything else in a hash index over
// the canonical key encoding. A Set is owned by one goroutine at a time.
type Set struct {
	keyTypes []types.Type

	bitmap *roaring64.Bitmap

	index map[string]struct{}
	keys  [][]any
	buf   []byte
}

// New returns an empty set of key tuples typed keyTypes. Key columns must be
// numeric or VARCHAR.
func New(keyTypes ...types.Type) (*Set, error) {
	if len(keyTypes) == 0 {
		return nil, moerr.NewInvalidArg("distinct key types", "empty")
	}
	for _, typ := range keyTypes {
		if !typ.IsOrdered() {
			return nil, moerr.NewNotSupported("distinct key of type %s", typ)
		}
	}
	s := &Set{keyTypes: keyTypes}
	if useBitmap(keyTypes) {
		s.bitmap = roaring64.New()
	} else {
		s.index = make(map[string]struct{})
	}
	return s, nil
}

func useBitmap(keyTypes []types.Type) bool {
	return len(keyTypes) == 1 && keyTypes[0].Oid == types.T_int64
}

func (s *Set) KeyTypes() []types.Type {
	return s.keyTypes
}

func (s *Set) Type() types.Type {
	return types.NewSetType(s.keyTypes...)
}

// Add inserts key, it is a no-op if any component is NULL or the key is
// already present.
func (s *Set) Add(key []any) error {
	if len(key) != len(s.keyTypes) {
		return moerr.NewInvalidArg("distinct key arity", len(key))
	}
	for _, v := range key {
		if v == nil {
			return nil
		}
	}
	if s.bitmap != nil {
		if err := types.CheckValue(s.keyTypes[0], key[0]); err != nil {
			return err
		}
		s.bitmap.Add(toBitmap(key[0].(int64)))
		return nil
	}

	buf := s.buf[:0]
	var err error
	for i, v := range key {
		if buf, err = encoding.AppendKey(buf, s.keyTypes[i], v); err != nil {
			return err
		}
	}
	s.buf = buf
	if _, ok := s.index[string(buf)]; ok {
		return nil
	}
	s.index[string(buf)] = struct{}{}
	s.keys = append(s.keys, append([]any(nil), key...))
	return nil
}

// Union adds every key of o to s. o is left untouched and may be discarded.
func (s *Set) Union(o *Set) error {
	if o == nil {
		return nil
	}
	if !s.Type().Eq(o.Type()) {
		return moerr.NewTypeMismatch(s.Type().String(), o.Type().String())
	}
	if s.bitmap != nil {
		s.bitmap.Or(o.bitmap)
		return nil
	}
	for _, key := range o.keys {
		if err := s.Add(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) Size() int {
	if s.bitmap != nil {
		return int(s.bitmap.GetCardinality())
	}
	return len(s.keys)
}

// Clone returns a set with the same keys sharing no mutable state with s.
func (s *Set) Clone() *Set {
	c := &Set{keyTypes: s.keyTypes}
	if s.bitmap != nil {
		c.bitmap = s.bitmap.Clone()
		return c
	}
	c.index = make(map[string]struct{}, len(s.index))
	for k := range s.index {
		c.index[k] = struct{}{}
	}
	c.keys = append([][]any(nil), s.keys...)
	return c
}

// Iterator returns a fresh iterator positioned before the first key. The
// order of keys is unspecified. The set must not change while iterating.
func (s *Set) Iterator() *Iterator {
	it := &Iterator{s: s, pos: -1}
	if s.bitmap != nil {
		it.bits = s.bitmap.Iterator()
	}
	return it
}

// ForEach calls fn on every key until fn returns an error.
func (s *Set) ForEach(fn func(key []any) error) error {
	it := s.Iterator()
	for it.Next() {
		if err := fn(it.Key()); err != nil {
			return err
		}
	}
	return nil
}

// Iterator walks the keys of a Set lazily.
type Iterator struct {
	s    *Set
	pos  int
	bits roaring64.IntIterable64
	cur  []any
}

func (it *Iterator) Next() bool {
	if it.bits != nil {
		if !it.bits.HasNext() {
			it.cur = nil
			return false
		}
		it.cur = []any{fromBitmap(it.bits.Next())}
		return true
	}
	it.pos++
	if it.pos >= len(it.s.keys) {
		it.cur = nil
		return false
	}
	it.cur = it.s.keys[it.pos]
	return true
}

// Key returns the current key, the caller must not modify it.
func (it *Iterator) Key() []any {
	return it.cur
}

func (s *Set) MarshalBinary() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if err := b.EncodeVarint(uint64(len(s.keyTypes))); err != nil {
		return nil, err
	}
	for _, typ := range s.keyTypes {
		if err := encoding.EncodeType(b, typ); err != nil {
			return nil, err
		}
	}
	if s.bitmap != nil {
		var bm bytes.Buffer
		if _, err := s.bitmap.WriteTo(&bm); err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		if err := b.EncodeVarint(bitmapMode); err != nil {
			return nil, err
		}
		if err := b.EncodeRawBytes(bm.Bytes()); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}

	if err := b.EncodeVarint(hashMode); err != nil {
		return nil, err
	}
	if err := b.EncodeVarint(uint64(len(s.keys))); err != nil {
		return nil, err
	}
	for _, key := range s.keys {
		for i, v := range key {
			if err := encoding.EncodeValue(b, s.keyTypes[i], v); err != nil {
				return nil, err
			}
		}
	}
	return b.Bytes(), nil
}

// Unmarshal rebuilds a set written by MarshalBinary.
func Unmarshal(data []byte) (*Set, error) {
	b := proto.NewBuffer(data)
	n, err := b.DecodeVarint()
	if err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	if n == 0 || n > uint64(len(data)) {
		return nil, moerr.NewInvalidInput("distinct set with %d key columns", n)
	}
	keyTypes := make([]types.Type, n)
	for i := range keyTypes {
		if keyTypes[i], err = encoding.DecodeType(b); err != nil {
			return nil, err
		}
	}
	s, err := New(keyTypes...)
	if err != nil {
		return nil, err
	}
	mode, err := b.DecodeVarint()
	if err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	if (mode == bitmapMode) != (s.bitmap != nil) {
		return nil, moerr.NewInvalidInput("distinct set mode %d for keys %s", mode, s.Type())
	}

	if s.bitmap != nil {
		raw, err := b.DecodeRawBytes(false)
		if err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		if _, err := s.bitmap.ReadFrom(bytes.NewReader(raw)); err != nil {
			return nil, moerr.ConvertGoError(err)
		}
		return s, nil
	}

	cnt, err := b.DecodeVarint()
	if err != nil {
		return nil, moerr.ConvertGoError(err)
	}
	key := make([]any, len(keyTypes))
	for j := uint64(0); j < cnt; j++ {
		for i, typ := range keyTypes {
			if key[i], err = encoding.DecodeValue(b, typ); err != nil {
				return nil, err
			}
		}
		if err := s.Add(key); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// int64 keys are stored with the sign bit flipped so that the bitmap order
// matches the numeric order.
func toBitmap(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

func fromBitmap(v uint64) int64 {
	return int64(v ^ (1 << 63))
}
