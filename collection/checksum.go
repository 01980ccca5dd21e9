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
	"hash/crc32"
	"io"

	"github.com/pingcap/errors"
)

// Spilled collections are framed into fixed-size blocks, each carrying a
// CRC32 of its payload, so a torn or corrupted spill file fails loudly at
// load instead of decoding garbage.
const (
	checksumBlockSize   = 1024
	checksumSize        = 4
	checksumPayloadSize = checksumBlockSize - checksumSize
)

var checksumTable = crc32.MakeTable(crc32.IEEE)

// ErrChecksumMismatch is returned when a spill block fails verification.
var ErrChecksumMismatch = errors.New("spill file block checksum mismatch")

// checksumWriter frames a byte stream into checksummed blocks. The caller
// must Flush after the last Write; only the final block may be short.
type checksumWriter struct {
	w           io.Writer
	buf         []byte
	payload     []byte
	payloadUsed int
	err         error
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	cw := &checksumWriter{w: w, buf: make([]byte, checksumBlockSize)}
	cw.payload = cw.buf[checksumSize:]
	return cw
}

func (cw *checksumWriter) Write(p []byte) (nn int, err error) {
	for len(p) > 0 {
		if cw.err != nil {
			return nn, cw.err
		}
		n := copy(cw.payload[cw.payloadUsed:], p)
		cw.payloadUsed += n
		nn += n
		p = p[n:]
		if cw.payloadUsed == checksumPayloadSize {
			if err := cw.Flush(); err != nil {
				return nn, err
			}
		}
	}
	return nn, nil
}

// Flush writes the buffered payload as one checksummed block.
func (cw *checksumWriter) Flush() error {
	if cw.err != nil {
		return cw.err
	}
	if cw.payloadUsed == 0 {
		return nil
	}
	sum := crc32.Checksum(cw.payload[:cw.payloadUsed], checksumTable)
	binary.LittleEndian.PutUint32(cw.buf, sum)
	_, err := cw.w.Write(cw.buf[:checksumSize+cw.payloadUsed])
	if err != nil {
		cw.err = errors.Trace(err)
		return cw.err
	}
	cw.payloadUsed = 0
	return nil
}

// checksumReader unframes a stream produced by checksumWriter, verifying
// every block checksum before handing out its payload.
type checksumReader struct {
	r       io.Reader
	buf     []byte
	payload []byte
	pos     int
	err     error
}

func newChecksumReader(r io.Reader) *checksumReader {
	return &checksumReader{r: r, buf: make([]byte, checksumBlockSize)}
}

func (cr *checksumReader) fillBlock() error {
	n, err := io.ReadFull(cr.r, cr.buf)
	if err == io.ErrUnexpectedEOF {
		// the final block is allowed to be short
		err = nil
	}
	if err != nil {
		return err
	}
	if n <= checksumSize {
		return errors.Errorf("spill file block truncated to %d bytes", n)
	}
	want := binary.LittleEndian.Uint32(cr.buf)
	got := crc32.Checksum(cr.buf[checksumSize:n], checksumTable)
	if want != got {
		return errors.Trace(ErrChecksumMismatch)
	}
	cr.payload = cr.buf[checksumSize:n]
	cr.pos = 0
	return nil
}

func (cr *checksumReader) Read(p []byte) (nn int, err error) {
	for len(p) > 0 {
		if cr.pos == len(cr.payload) {
			if cr.err == nil {
				cr.err = cr.fillBlock()
			}
			if cr.err != nil {
				if nn > 0 && cr.err == io.EOF {
					return nn, nil
				}
				return nn, cr.err
			}
		}
		n := copy(p, cr.payload[cr.pos:])
		cr.pos += n
		nn += n
		p = p[n:]
	}
	return nn, nil
}
