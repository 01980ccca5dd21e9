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

package collection

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"

	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

// Spill file layout: checksummed 1KiB blocks framing a zstd stream; inside
// the stream, each segment is a uint32 length followed by its codec bytes.

// WriteToFile spills the collection to path, replacing any existing file.
// The in-memory segments are left untouched.
func (c *ColumnDataCollection) WriteToFile(path string) error {
	if _, _err_ := failpoint.Eval(_curpkg_("spillError")); _err_ == nil {
		return errors.New("spill injected error")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()

	cw := newChecksumWriter(f)
	zw, err := zstd.NewWriter(cw)
	if err != nil {
		return errors.Trace(err)
	}

	codec := chunk.NewCodec(c.fields)
	var buf []byte
	var lenBuf [4]byte
	for _, seg := range c.segments {
		buf = codec.Encode(seg, buf[:0])
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
		if _, err := zw.Write(lenBuf[:]); err != nil {
			return errors.Trace(err)
		}
		if _, err := zw.Write(buf); err != nil {
			return errors.Trace(err)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Trace(err)
	}
	if err := cw.Flush(); err != nil {
		return errors.Trace(err)
	}
	if err := f.Sync(); err != nil {
		return errors.Trace(err)
	}
	metrics.CollectionSpillCounter.Inc()
	return errors.Trace(f.Close())
}

// LoadFromFile reads a collection spilled by WriteToFile. fields must match
// the types the collection was written with.
func LoadFromFile(path string, fields []*types.FieldType, opts ...CollectionOption) (*ColumnDataCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(newChecksumReader(f))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer zr.Close()

	c := New(fields, opts...)
	codec := chunk.NewCodec(fields)
	var lenBuf [4]byte
	var buf []byte
	for {
		if _, err := io.ReadFull(zr, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Trace(err)
		}
		segLen := binary.LittleEndian.Uint32(lenBuf[:])
		if cap(buf) < int(segLen) {
			buf = make([]byte, segLen)
		}
		buf = buf[:segLen]
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, errors.Trace(err)
		}
		seg, err := c.growSegment()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if _, err := codec.Decode(buf, seg); err != nil {
			return nil, errors.Trace(err)
		}
		c.numRows += seg.NumRows()
	}
	return c, nil
}
