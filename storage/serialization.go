// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	mapops "github.com/mus-format/mus-go/options/map"
	slops "github.com/mus-format/mus-go/options/slice"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/codesense/core"
)

// valueMUS encodes a core.Value as a kind byte followed by its payload.
type valueMUS struct{}

var _ mus.Serializer[core.Value] = valueMUS{}

func (valueMUS) Marshal(v core.Value, bs []byte) (n int) {
	n = raw.Byte.Marshal(byte(v.Kind), bs)
	switch v.Kind {
	case core.KindString:
		n += ord.String.Marshal(v.S, bs[n:])
	case core.KindInt:
		n += varint.Int64.Marshal(v.I, bs[n:])
	case core.KindFloat:
		n += raw.Float64.Marshal(v.F, bs[n:])
	case core.KindBool:
		n += ord.Bool.Marshal(v.B, bs[n:])
	}
	return n
}

func (valueMUS) Unmarshal(bs []byte) (v core.Value, n int, err error) {
	kind, n, err := raw.Byte.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Kind = core.Kind(kind)
	var n1 int
	switch v.Kind {
	case core.KindString:
		v.S, n1, err = ord.String.Unmarshal(bs[n:])
	case core.KindInt:
		v.I, n1, err = varint.Int64.Unmarshal(bs[n:])
	case core.KindFloat:
		v.F, n1, err = raw.Float64.Unmarshal(bs[n:])
	case core.KindBool:
		v.B, n1, err = ord.Bool.Unmarshal(bs[n:])
	default:
		err = fmt.Errorf("unknown value kind %d", kind)
	}
	n += n1
	return
}

func (valueMUS) Size(v core.Value) (size int) {
	size = raw.Byte.Size(byte(v.Kind))
	switch v.Kind {
	case core.KindString:
		size += ord.String.Size(v.S)
	case core.KindInt:
		size += varint.Int64.Size(v.I)
	case core.KindFloat:
		size += raw.Float64.Size(v.F)
	case core.KindBool:
		size += ord.Bool.Size(v.B)
	}
	return size
}

func (s valueMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

var (
	vectorMUS   = ord.NewSliceSer[float32](raw.Float32)
	metadataMUS = ord.NewMapSer[string, core.Value](ord.String, valueMUS{})
)

// Smallest encodings of one vector element and one metadata entry
// (empty key length byte plus kind byte).
const (
	minVectorElemSize   = 4
	minMetadataPairSize = 2
)

// remainingLen rejects a decoded collection length whose elements could not
// fit in bs, before anything is allocated for them.
func remainingLen(bs []byte, minElemSize int) com.Validator[int] {
	limit := len(bs) / minElemSize
	return com.ValidatorFn[int](func(length int) error {
		if length > limit {
			return fmt.Errorf("%w: length %d exceeds %d remaining bytes",
				mus.ErrTooSmallByteSlice, length, len(bs))
		}
		return nil
	})
}

func unmarshalVector(bs []byte) ([]float32, int, error) {
	ser := ord.NewValidSliceSer[float32](raw.Float32,
		slops.WithLenValidator[float32](remainingLen(bs, minVectorElemSize)))
	return ser.Unmarshal(bs)
}

func unmarshalMetadata(bs []byte) (map[string]core.Value, int, error) {
	ser := ord.NewValidMapSer[string, core.Value](ord.String, valueMUS{},
		mapops.WithLenValidator[string, core.Value](remainingLen(bs, minMetadataPairSize)))
	return ser.Unmarshal(bs)
}

// embeddingMUS encodes every field of core.Embedding in declaration order.
type embeddingMUS struct{}

var _ mus.Serializer[core.Embedding] = embeddingMUS{}

func (embeddingMUS) Marshal(e core.Embedding, bs []byte) (n int) {
	n = ord.String.Marshal(e.EntityID, bs)
	n += vectorMUS.Marshal(e.Vector, bs[n:])
	n += metadataMUS.Marshal(e.Metadata, bs[n:])
	n += varint.Uint64.Marshal(uint64(e.Checksum), bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(e.InsertedAt, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(e.UpdatedAt, bs[n:])
	return n
}

func (embeddingMUS) Unmarshal(bs []byte) (e core.Embedding, n int, err error) {
	var n1 int
	if e.EntityID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if e.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.Metadata, n1, err = unmarshalMetadata(bs[n:]); err != nil {
		return
	}
	n += n1
	var checksum uint64
	if checksum, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	e.Checksum = core.ID(checksum)
	n += n1
	if e.InsertedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if e.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (embeddingMUS) Size(e core.Embedding) (size int) {
	size = ord.String.Size(e.EntityID)
	size += vectorMUS.Size(e.Vector)
	size += metadataMUS.Size(e.Metadata)
	size += varint.Uint64.Size(uint64(e.Checksum))
	size += raw.TimeUnixMicroUTC.Size(e.InsertedAt)
	size += raw.TimeUnixMicroUTC.Size(e.UpdatedAt)
	return size
}

func (s embeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// EmbeddingMUS is the binary serializer for core.Embedding.
var EmbeddingMUS mus.Serializer[core.Embedding] = embeddingMUS{}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(e *core.Embedding) []byte {
	buf := make([]byte, EmbeddingMUS.Size(*e))
	EmbeddingMUS.Marshal(*e, buf)
	return buf
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	e, n, err := EmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}
	return &e, nil
}

// MarshalDimension serializes a store dimension.
func MarshalDimension(dim int) []byte {
	buf := make([]byte, varint.PositiveInt.Size(dim))
	varint.PositiveInt.Marshal(dim, buf)
	return buf
}

// UnmarshalDimension deserializes a store dimension.
func UnmarshalDimension(data []byte) (int, error) {
	dim, _, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return dim, nil
}

// Checksum computes a content checksum over the id, vector and metadata of e.
// Metadata is hashed in key order so the result does not depend on map layout.
func Checksum(e *core.Embedding) core.ID {
	var b strings.Builder
	b.WriteString(e.EntityID)
	b.WriteByte(0)
	var buf [4]byte
	for _, x := range e.Vector {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		b.Write(buf[:])
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := e.Metadata[k]
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte(byte(v.Kind))
		b.WriteString(v.Text())
	}
	return core.IDFromContent(b.String())
}
