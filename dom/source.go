// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bpowers/bindoc/internal/zero"
)

// Source is a bounded little-endian read cursor over [start, end) of a
// Buffer.  Positions reported by Pos are absolute within the Buffer.
type Source struct {
	buf   *Buffer
	start int64
	end   int64
	pos   int64
}

// NewSource returns a Source spanning all of buf.
func NewSource(buf *Buffer) Source {
	return Source{buf: buf, end: buf.Len()}
}

func (s *Source) Buffer() *Buffer { return s.buf }

// Pos is the absolute buffer position of the cursor.
func (s *Source) Pos() int64 { return s.pos + s.start }

// Offset is the cursor position relative to the start of the source.
func (s *Source) Offset() int64 { return s.pos }

// Start is the absolute buffer position of the first byte of the source.
func (s *Source) Start() int64 { return s.start }

func (s *Source) Size() int64 { return s.end - s.start }

func (s *Source) Remaining() int64 { return s.Size() - s.pos }

// CheckRemaining fails with a *BoundsError unless n bytes remain after the
// cursor.
func (s *Source) CheckRemaining(n int64) error {
	if n < 0 || n > s.Remaining() {
		return &BoundsError{Pos: s.Pos(), Want: n, Have: s.Remaining()}
	}
	return nil
}

// CheckSize fails with a *BoundsError unless the source spans at least n
// bytes in total.
func (s *Source) CheckSize(n int64) error {
	if n < 0 || n > s.Size() {
		return &BoundsError{Pos: s.start, Want: n, Have: s.Size()}
	}
	return nil
}

// Seek moves the cursor to off, relative to the source start.
func (s *Source) Seek(off int64) error {
	if off < 0 || off > s.Size() {
		return &BoundsError{Pos: s.start + off, Want: 0, Have: s.Size()}
	}
	s.pos = off
	return nil
}

func (s *Source) Skip(n int64) error {
	if err := s.CheckRemaining(n); err != nil {
		return err
	}
	s.pos += n
	return nil
}

// Read fills p or fails without advancing.  On failure p is zeroed.
func (s *Source) Read(p []byte) error {
	if err := s.CheckRemaining(int64(len(p))); err != nil {
		zero.Bytes(p)
		return err
	}
	off := s.start + s.pos
	copy(p, s.buf.data[off:off+int64(len(p))])
	s.pos += int64(len(p))
	return nil
}

// Bytes returns the next n bytes without copying.  The result aliases the
// Buffer and must not be modified.
func (s *Source) Bytes(n int64) ([]byte, error) {
	if err := s.CheckRemaining(n); err != nil {
		return nil, err
	}
	off := s.start + s.pos
	s.pos += n
	return s.buf.data[off : off+n : off+n], nil
}

// ReadFixed decodes a fixed-size scalar or packed struct pointed to by v.
// On failure *v is zeroed and the cursor does not move.
func (s *Source) ReadFixed(v any) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("ReadFixed: %T has no fixed size", v)
	}
	if err := s.CheckRemaining(int64(n)); err != nil {
		zero.Value(v)
		return err
	}
	off := s.start + s.pos
	if _, err := binary.Decode(s.buf.data[off:off+int64(n)], binary.LittleEndian, v); err != nil {
		zero.Value(v)
		return fmt.Errorf("binary.Decode: %w", err)
	}
	s.pos += int64(n)
	return nil
}

func (s *Source) ReadU8() (uint8, error) {
	var b [1]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Source) ReadU16() (uint16, error) {
	var b [2]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (s *Source) ReadU32() (uint32, error) {
	var b [4]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (s *Source) ReadU64() (uint64, error) {
	var b [8]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (s *Source) ReadF32() (float32, error) {
	v, err := s.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Peek copies len(p) bytes at off, relative to the source start, without
// moving the cursor.
func (s *Source) Peek(off int64, p []byte) error {
	if off < 0 || off+int64(len(p)) > s.Size() {
		zero.Bytes(p)
		return &BoundsError{Pos: s.start + off, Want: int64(len(p)), Have: max(s.Size()-off, 0)}
	}
	copy(p, s.buf.data[s.start+off:])
	return nil
}

// Sub returns a nested source over n bytes at off, relative to the start of
// s.  The cursor of s does not move.
func (s *Source) Sub(off, n int64) (Source, error) {
	if off < 0 || n < 0 || off+n > s.Size() {
		return Source{}, &BoundsError{Pos: s.start + off, Want: n, Have: max(s.Size()-off, 0)}
	}
	return Source{buf: s.buf, start: s.start + off, end: s.start + off + n}, nil
}
