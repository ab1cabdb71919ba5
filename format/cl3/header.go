// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cl3

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
)

// HeaderSize is the encoded size of the archive header.
const HeaderSize = 0x18

type headerRecord struct {
	Magic          [4]byte
	Field04        uint32
	Field08        uint32
	SectionsCount  uint32
	SectionsOffset uint32
	Field14        uint32
}

func (h *headerRecord) validate(pos, size int64) error {
	if string(h.Magic[:]) != "CL3L" {
		return dom.Validatef("cl3.header.magic", pos, "bad magic %q", h.Magic[:])
	}
	if h.Field04 != 0 {
		return dom.Validatef("cl3.header.field_04", pos+4, "0x%x, want 0", h.Field04)
	}
	if int64(h.SectionsOffset)+int64(h.SectionsCount)*SectionEntrySize > size {
		return dom.Validatef("cl3.header.sections_offset", pos+0x10, "%d sections at 0x%x overrun archive size 0x%x", h.SectionsCount, h.SectionsOffset, size)
	}
	return nil
}

// Header is the archive header at offset 0.
type Header struct {
	Field08       uint32     `bindoc:"field_08"`
	SectionsCount uint32     `bindoc:"sections_count"`
	Sections      *dom.Label `bindoc:"sections"`
	Field14       uint32     `bindoc:"field_14"`
}

func (h *Header) TypeName() string { return "cl3.header" }

func (h *Header) Size() int64 { return HeaderSize }

func (h *Header) Dump(s *dom.Sink) error {
	s.WriteBytes([]byte("CL3L"))
	s.WriteU32(0)
	s.WriteU32(h.Field08)
	s.WriteU32(h.SectionsCount)
	if err := s.WriteLabel32(h.Sections); err != nil {
		return err
	}
	s.WriteU32(h.Field14)
	return nil
}

func (h *Header) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "cl3.header(field_08=%d, sections_count=%d, sections=%s, field_14=%d)\n",
		h.Field08, h.SectionsCount, h.Sections, h.Field14)
	return err
}

// Fixup re-derives the section count from the section table.
func (h *Header) Fixup(d *dom.Document) error {
	if leaf, ok := d.LabelLeaf(h.Sections); ok {
		if t, ok := leaf.(*Sections); ok {
			h.SectionsCount = uint32(len(t.Entries))
		}
	}
	return nil
}

func parseHeader(d *dom.Document) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		pos := src.Pos()
		var rec headerRecord
		if err := src.ReadFixed(&rec); err != nil {
			return nil, fmt.Errorf("cl3 header: %w", err)
		}
		if err := rec.validate(pos, d.Size()); err != nil {
			return nil, err
		}
		sections, err := d.LabelAt(int64(rec.SectionsOffset))
		if err != nil {
			return nil, err
		}
		return &Header{
			Field08:       rec.Field08,
			SectionsCount: rec.SectionsCount,
			Sections:      sections,
			Field14:       rec.Field14,
		}, nil
	}
}
