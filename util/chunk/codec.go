// Copyright 2025 Velora, Inc.
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

package chunk

import (
	"encoding/binary"

	"github.com/pingcap/errors"

	"github.com/veloradb/velora/types"
)

// Codec serializes chunks into a flat byte layout and back. The layout per
// column is: length (uint32), nullBitmap size (uint32) + bytes, offsets
// size (uint32) + little-endian int64s, data size (uint32) + bytes.
type Codec struct {
	fields []*types.FieldType
}

// NewCodec creates a Codec for chunks of the given field types.
func NewCodec(fields []*types.FieldType) *Codec {
	return &Codec{fields: fields}
}

// Encode appends the serialized form of chk to buf and returns it.
func (c *Codec) Encode(chk *Chunk, buf []byte) []byte {
	for _, col := range chk.columns {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(col.length))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(col.nullBitmap)))
		buf = append(buf, col.nullBitmap...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(col.offsets)))
		for _, off := range col.offsets {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(off))
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(col.data)))
		buf = append(buf, col.data...)
	}
	return buf
}

// Decode reads one serialized chunk from buf into chk and returns the
// remaining bytes. chk must have been created for the codec's field types
// and is reset first.
func (c *Codec) Decode(buf []byte, chk *Chunk) ([]byte, error) {
	chk.Reset()
	for i, col := range chk.columns {
		var err error
		buf, err = c.decodeColumn(buf, col)
		if err != nil {
			return nil, errors.Annotatef(err, "column %d", i)
		}
	}
	return buf, nil
}

func (c *Codec) decodeColumn(buf []byte, col *Column) ([]byte, error) {
	length, buf, err := readUint32(buf)
	if err != nil {
		return nil, err
	}
	col.length = int(length)

	bitmapLen, buf, err := readUint32(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < int(bitmapLen) {
		return nil, errors.New("chunk codec: truncated null bitmap")
	}
	col.nullBitmap = append(col.nullBitmap[:0], buf[:bitmapLen]...)
	buf = buf[bitmapLen:]

	numOffsets, buf, err := readUint32(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < int(numOffsets)*8 {
		return nil, errors.New("chunk codec: truncated offsets")
	}
	col.offsets = col.offsets[:0]
	for i := 0; i < int(numOffsets); i++ {
		col.offsets = append(col.offsets, int64(binary.LittleEndian.Uint64(buf[i*8:])))
	}
	buf = buf[numOffsets*8:]

	dataLen, buf, err := readUint32(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < int(dataLen) {
		return nil, errors.New("chunk codec: truncated data")
	}
	col.data = append(col.data[:0], buf[:dataLen]...)
	return buf[dataLen:], nil
}

func readUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, errors.New("chunk codec: truncated header")
	}
	return binary.LittleEndian.Uint32(buf), buf[4:], nil
}
