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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	fields := testFields()
	src := New(fields)
	fillTestChunk(src, 157)

	codec := NewCodec(fields)
	buf := codec.Encode(src, nil)
	require.NotEmpty(t, buf)

	dst := New(fields)
	remaining, err := codec.Decode(buf, dst)
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.NoError(t, dst.Verify())
	require.Equal(t, src.NumRows(), dst.NumRows())
	for i := 0; i < src.NumRows(); i++ {
		require.Equal(t, src.GetRow(i).GetInt64(0), dst.GetRow(i).GetInt64(0))
		require.Equal(t, src.GetRow(i).IsNull(1), dst.GetRow(i).IsNull(1))
		if !src.GetRow(i).IsNull(1) {
			require.Equal(t, src.GetRow(i).GetString(1), dst.GetRow(i).GetString(1))
		}
		require.Equal(t, src.GetRow(i).GetFloat64(2), dst.GetRow(i).GetFloat64(2))
	}
}

func TestCodecMultipleChunks(t *testing.T) {
	fields := testFields()
	a := New(fields)
	b := New(fields)
	fillTestChunk(a, 10)
	fillTestChunk(b, 20)

	codec := NewCodec(fields)
	buf := codec.Encode(a, nil)
	buf = codec.Encode(b, buf)

	dst := New(fields)
	remaining, err := codec.Decode(buf, dst)
	require.NoError(t, err)
	require.Equal(t, 10, dst.NumRows())
	remaining, err = codec.Decode(remaining, dst)
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.Equal(t, 20, dst.NumRows())
}

func TestCodecEmptyChunk(t *testing.T) {
	fields := testFields()
	codec := NewCodec(fields)
	buf := codec.Encode(New(fields), nil)

	dst := New(fields)
	remaining, err := codec.Decode(buf, dst)
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.Equal(t, 0, dst.NumRows())
}

func TestCodecTruncated(t *testing.T) {
	fields := testFields()
	src := New(fields)
	fillTestChunk(src, 64)
	codec := NewCodec(fields)
	buf := codec.Encode(src, nil)

	for _, cut := range []int{0, 2, len(buf) / 2, len(buf) - 1} {
		dst := New(fields)
		_, err := codec.Decode(buf[:cut], dst)
		require.Error(t, err)
	}
}
