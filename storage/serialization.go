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
	"math"
	"time"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragfence/core"
)

// ChunkMUS is the mus-format serializer for core.Chunk. Fields are
// written in declaration order; vectors as raw float32 bit patterns,
// timestamps as unix microseconds with a presence byte.
var ChunkMUS = chunkSer{}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(v), err
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

type chunkSer struct{}

func (chunkSer) Size(c core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += sizeString(c.DocumentId)
	size += sizeString(c.Source)
	size += varint.Int.Size(c.Seq)
	size += sizeString(c.Contents)
	size += sizeVector(c.Vector)
	size += sizeStrings(c.AccessTags)
	size += sizeString(c.RequiredRole)
	size += sizeStringMap(c.Metadata)
	size += sizeTime(c.InsertedAt)
	size += sizeTime(c.UpdatedAt)
	return
}

func (chunkSer) Marshal(c core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += marshalString(c.DocumentId, bs[n:])
	n += marshalString(c.Source, bs[n:])
	n += varint.Int.Marshal(c.Seq, bs[n:])
	n += marshalString(c.Contents, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	n += marshalStrings(c.AccessTags, bs[n:])
	n += marshalString(c.RequiredRole, bs[n:])
	n += marshalStringMap(c.Metadata, bs[n:])
	n += marshalTime(c.InsertedAt, bs[n:])
	n += marshalTime(c.UpdatedAt, bs[n:])
	return
}

func (chunkSer) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	var (
		id uint64
		m  int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	c.Id = core.ID(id)

	if c.DocumentId, m, err = unmarshalString(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Source, m, err = unmarshalString(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Seq, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Contents, m, err = unmarshalString(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += m
	if c.AccessTags, m, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += m
	if c.RequiredRole, m, err = unmarshalString(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Metadata, m, err = unmarshalStringMap(bs[n:]); err != nil {
		return
	}
	n += m
	if c.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += m
	if c.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += m
	return
}

// Strings are a varint length followed by raw bytes.

func sizeString(s string) int {
	return varint.Int.Size(len(s)) + len(s)
}

func marshalString(s string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(s), bs)
	n += copy(bs[n:], s)
	return
}

func unmarshalString(bs []byte) (s string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return "", 0, err
	}
	if l < 0 || len(bs[n:]) < l {
		return "", 0, ErrTruncatedData
	}
	s = string(bs[n : n+l])
	n += l
	return
}

func sizeStrings(ss []string) (size int) {
	size = varint.Int.Size(len(ss))
	for _, s := range ss {
		size += sizeString(s)
	}
	return
}

func marshalStrings(ss []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += marshalString(s, bs[n:])
	}
	return
}

func unmarshalStrings(bs []byte) (ss []string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, 0, err
	}
	if l < 0 {
		return nil, 0, ErrTruncatedData
	}
	if l == 0 {
		return nil, n, nil
	}
	ss = make([]string, l)
	var m int
	for i := 0; i < l; i++ {
		if ss[i], m, err = unmarshalString(bs[n:]); err != nil {
			return nil, 0, err
		}
		n += m
	}
	return
}

func sizeStringMap(mp map[string]string) (size int) {
	size = varint.Int.Size(len(mp))
	for k, v := range mp {
		size += sizeString(k) + sizeString(v)
	}
	return
}

func marshalStringMap(mp map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(mp), bs)
	for k, v := range mp {
		n += marshalString(k, bs[n:])
		n += marshalString(v, bs[n:])
	}
	return
}

func unmarshalStringMap(bs []byte) (mp map[string]string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, 0, err
	}
	if l < 0 {
		return nil, 0, ErrTruncatedData
	}
	if l == 0 {
		return nil, n, nil
	}
	mp = make(map[string]string, l)
	var m int
	for i := 0; i < l; i++ {
		var k, v string
		if k, m, err = unmarshalString(bs[n:]); err != nil {
			return nil, 0, err
		}
		n += m
		if v, m, err = unmarshalString(bs[n:]); err != nil {
			return nil, 0, err
		}
		n += m
		mp[k] = v
	}
	return
}

func sizeVector(vec []float32) (size int) {
	size = varint.Int.Size(len(vec))
	for _, v := range vec {
		size += varint.Uint32.Size(math.Float32bits(v))
	}
	return
}

func marshalVector(vec []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vec), bs)
	for _, v := range vec {
		n += varint.Uint32.Marshal(math.Float32bits(v), bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (vec []float32, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, 0, err
	}
	if l < 0 {
		return nil, 0, ErrTruncatedData
	}
	if l == 0 {
		return nil, n, nil
	}
	vec = make([]float32, l)
	var (
		bits uint32
		m    int
	)
	for i := 0; i < l; i++ {
		if bits, m, err = varint.Uint32.Unmarshal(bs[n:]); err != nil {
			return nil, 0, err
		}
		n += m
		vec[i] = math.Float32frombits(bits)
	}
	return
}

// Timestamps are a presence byte followed by unix microseconds, so the
// zero time round-trips exactly.

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return 1
	}
	return 1 + varint.Int64.Size(t.UnixMicro())
}

func marshalTime(t time.Time, bs []byte) (n int) {
	if t.IsZero() {
		bs[0] = 0
		return 1
	}
	bs[0] = 1
	n = 1 + varint.Int64.Marshal(t.UnixMicro(), bs[1:])
	return
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	if len(bs) < 1 {
		return time.Time{}, 0, ErrTruncatedData
	}
	if bs[0] == 0 {
		return time.Time{}, 1, nil
	}
	micros, m, err := varint.Int64.Unmarshal(bs[1:])
	if err != nil {
		return time.Time{}, 0, err
	}
	return time.UnixMicro(micros).UTC(), 1 + m, nil
}
