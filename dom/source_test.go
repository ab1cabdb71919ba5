// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type pairRecord struct {
	A uint16
	B uint32
	C [2]byte
}

func TestSourceScalars(t *testing.T) {
	s := NewSink()
	s.WriteU8(0x7f)
	s.WriteU16(0x1234)
	s.WriteU32(0xdeadbeef)
	s.WriteU64(0x0102030405060708)
	s.WriteF32(1.5)
	require.Equal(t, int64(1+2+4+8+4), s.Len())
	require.Equal(t, []byte{0x7f, 0x34, 0x12}, s.Bytes()[:3])

	src := NewSource(NewBuffer(s.Bytes()))
	u8, err := src.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x7f), u8)
	u16, err := src.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)
	u32, err := src.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)
	u64, err := src.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)
	f, err := src.ReadF32()
	require.NoError(t, err)
	require.Equal(t, float32(1.5), f)
	require.Zero(t, src.Remaining())
}

func TestSourceSinkFixedSymmetry(t *testing.T) {
	in := pairRecord{A: 0xbeef, B: 0x01020304, C: [2]byte{'h', 'i'}}
	s := NewSink()
	require.NoError(t, s.WriteFixed(&in))
	require.Equal(t, []byte{0xef, 0xbe, 0x04, 0x03, 0x02, 0x01, 'h', 'i'}, s.Bytes())

	src := NewSource(NewBuffer(s.Bytes()))
	var out pairRecord
	require.NoError(t, src.ReadFixed(&out))
	require.Equal(t, in, out)
	require.Equal(t, int64(8), src.Offset())
}

func TestSourceBounds(t *testing.T) {
	src := NewSource(NewBuffer(seq(6)))
	require.NoError(t, src.Skip(3))

	p := []byte{9, 9, 9, 9}
	err := src.Read(p)
	var be *BoundsError
	require.ErrorAs(t, err, &be)
	require.Equal(t, int64(3), be.Pos)
	require.Equal(t, int64(4), be.Want)
	require.Equal(t, int64(3), be.Have)
	// no partial data escapes and the cursor does not move
	require.Equal(t, []byte{0, 0, 0, 0}, p)
	require.Equal(t, int64(3), src.Offset())

	rec := pairRecord{A: 1, B: 2}
	require.ErrorAs(t, src.ReadFixed(&rec), &be)
	require.Equal(t, pairRecord{}, rec)

	_, err = src.ReadU32()
	require.ErrorAs(t, err, &be)
	_, err = src.Bytes(4)
	require.ErrorAs(t, err, &be)

	require.NoError(t, src.CheckRemaining(3))
	require.ErrorAs(t, src.CheckRemaining(4), &be)
	require.NoError(t, src.CheckSize(6))
	require.ErrorAs(t, src.CheckSize(7), &be)
	require.ErrorAs(t, src.Skip(4), &be)
	require.ErrorAs(t, src.Seek(7), &be)
}

func TestSourcePeekAndSub(t *testing.T) {
	src := NewSource(NewBuffer(seq(16)))
	var magic [4]byte
	require.NoError(t, src.Peek(2, magic[:]))
	require.Equal(t, [4]byte{2, 3, 4, 5}, magic)
	require.Zero(t, src.Offset())

	var be *BoundsError
	require.ErrorAs(t, src.Peek(14, magic[:]), &be)
	require.Equal(t, [4]byte{}, magic)

	sub, err := src.Sub(8, 4)
	require.NoError(t, err)
	require.Equal(t, int64(4), sub.Size())
	require.Equal(t, int64(8), sub.Start())
	require.Equal(t, int64(8), sub.Pos())
	b, err := sub.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(8), b)
	require.Equal(t, int64(9), sub.Pos())
	require.NoError(t, sub.Seek(0))

	// sub-sources are bounded by their own end
	_, err = sub.Bytes(5)
	require.ErrorAs(t, err, &be)

	_, err = src.Sub(12, 5)
	require.ErrorAs(t, err, &be)
}

func TestSinkWriteTo(t *testing.T) {
	s := NewSink()
	s.WriteBytes([]byte("ab"))
	s.WriteZeros(2)
	_, _ = s.Write([]byte("c"))

	var out sinkRecorder
	n, err := s.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, []byte{'a', 'b', 0, 0, 'c'}, out.b)

	// a nil label encodes as zero
	require.NoError(t, s.WriteLabel32(nil))
	require.Equal(t, []byte{0, 0, 0, 0}, s.Bytes()[5:])

	// outside of a dump labels cannot be resolved
	var re *ResolveError
	require.ErrorAs(t, s.WriteLabel32(&Label{name: "x"}), &re)
}

type sinkRecorder struct {
	b []byte
}

func (r *sinkRecorder) Write(p []byte) (int, error) {
	r.b = append(r.b, p...)
	return len(p), nil
}
