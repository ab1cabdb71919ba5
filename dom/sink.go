// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Sink accumulates the little-endian encoding of a document.  During Dump
// it also knows the final layout, so leaves can resolve label references.
type Sink struct {
	buf []byte
	doc *Document
	pos map[Key]int64
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Len() int64 { return int64(len(s.buf)) }

// Bytes returns the accumulated bytes.
func (s *Sink) Bytes() []byte { return s.buf }

// Write implements io.Writer; it never fails.
func (s *Sink) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *Sink) WriteBytes(p []byte) {
	s.buf = append(s.buf, p...)
}

func (s *Sink) WriteU8(v uint8) {
	s.buf = append(s.buf, v)
}

func (s *Sink) WriteU16(v uint16) {
	s.buf = binary.LittleEndian.AppendUint16(s.buf, v)
}

func (s *Sink) WriteU32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

func (s *Sink) WriteU64(v uint64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
}

func (s *Sink) WriteF32(v float32) {
	s.WriteU32(math.Float32bits(v))
}

func (s *Sink) WriteZeros(n int64) {
	for i := int64(0); i < n; i++ {
		s.buf = append(s.buf, 0)
	}
}

// WriteFixed encodes a fixed-size scalar or packed struct, mirroring
// Source.ReadFixed.
func (s *Sink) WriteFixed(v any) error {
	out, err := binary.Append(s.buf, binary.LittleEndian, v)
	if err != nil {
		return fmt.Errorf("binary.Append: %w", err)
	}
	s.buf = out
	return nil
}

func (s *Sink) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.buf)
	return int64(n), err
}

// LabelPos resolves l against the layout of the document being dumped.
func (s *Sink) LabelPos(l *Label) (int64, error) {
	if s.doc == nil {
		return 0, &ResolveError{Label: l.Name(), Msg: "sink is not attached to a dump"}
	}
	return s.doc.resolve(l, s.pos)
}

// WriteLabel32 writes the absolute position of l as a u32.  A nil label is
// written as 0.
func (s *Sink) WriteLabel32(l *Label) error {
	if l == nil {
		s.WriteU32(0)
		return nil
	}
	pos, err := s.LabelPos(l)
	if err != nil {
		return err
	}
	if pos > math.MaxUint32 {
		return &ResolveError{Label: l.Name(), Msg: fmt.Sprintf("position 0x%x does not fit in 32 bits", pos)}
	}
	s.WriteU32(uint32(pos))
	return nil
}
