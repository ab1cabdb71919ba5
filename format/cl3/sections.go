// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cl3

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/internal/fixedstr"
)

// SectionEntrySize is the encoded size of one section table entry.
const SectionEntrySize = 0x50

const (
	SectionFileCollection = "FILE_COLLECTION"
	SectionFileLink       = "FILE_LINK"
)

type sectionRecord struct {
	Name       fixedstr.Name32
	Count      uint32
	DataSize   uint32
	DataOffset uint32
	Reserved   [9]uint32
}

// Section describes one table of the archive.
type Section struct {
	Name     fixedstr.Name32
	Count    uint32
	DataSize uint32
	Data     *dom.Label
}

// Sections is the section table.
type Sections struct {
	Entries []Section `bindoc:"entries"`
}

func (t *Sections) TypeName() string { return "cl3.sections" }

func (t *Sections) Size() int64 { return int64(len(t.Entries)) * SectionEntrySize }

func (t *Sections) Dump(s *dom.Sink) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		s.WriteBytes(e.Name[:])
		s.WriteU32(e.Count)
		s.WriteU32(e.DataSize)
		if err := s.WriteLabel32(e.Data); err != nil {
			return fmt.Errorf("section %q: %w", e.Name.String(), err)
		}
		s.WriteZeros(9 * 4)
	}
	return nil
}

func (t *Sections) Inspect(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "cl3.sections(%d entries)\n", len(t.Entries)); err != nil {
		return err
	}
	for i := range t.Entries {
		e := &t.Entries[i]
		if _, err := fmt.Fprintf(w, "  %q count=%d data_size=0x%x data=%s\n", e.Name.String(), e.Count, e.DataSize, e.Data); err != nil {
			return err
		}
	}
	return nil
}

// Fixup re-derives the count and size of every section backed by a
// parsed table.
func (t *Sections) Fixup(d *dom.Document) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		leaf, ok := d.LabelLeaf(e.Data)
		if !ok {
			continue
		}
		switch tbl := leaf.(type) {
		case *FileCollection:
			e.Count, e.DataSize = uint32(len(tbl.Entries)), uint32(tbl.Size())
		case *FileLinks:
			e.Count, e.DataSize = uint32(len(tbl.Entries)), uint32(tbl.Size())
		}
	}
	return nil
}

// Lookup returns the section named name.
func (t *Sections) Lookup(name string) (*Section, bool) {
	for i := range t.Entries {
		if t.Entries[i].Name.String() == name {
			return &t.Entries[i], true
		}
	}
	return nil, false
}

func parseSections(d *dom.Document, count uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		if err := src.CheckRemaining(int64(count) * SectionEntrySize); err != nil {
			return nil, fmt.Errorf("cl3 sections: %w", err)
		}
		t := &Sections{Entries: make([]Section, 0, count)}
		for i := uint32(0); i < count; i++ {
			pos := src.Pos()
			var rec sectionRecord
			if err := src.ReadFixed(&rec); err != nil {
				return nil, fmt.Errorf("cl3 section %d: %w", i, err)
			}
			if !rec.Name.Valid() {
				return nil, dom.Validatef("cl3.section.name", pos, "not NUL padded")
			}
			if int64(rec.DataOffset)+int64(rec.DataSize) > d.Size() {
				return nil, dom.Validatef("cl3.section.data_offset", pos+0x28, "0x%x bytes at 0x%x overrun archive size 0x%x", rec.DataSize, rec.DataOffset, d.Size())
			}
			for j, v := range rec.Reserved {
				if v != 0 {
					return nil, dom.Validatef("cl3.section.reserved", pos+0x2c+4*int64(j), "0x%x, want 0", v)
				}
			}
			data, err := d.LabelAt(int64(rec.DataOffset))
			if err != nil {
				return nil, err
			}
			t.Entries = append(t.Entries, Section{Name: rec.Name, Count: rec.Count, DataSize: rec.DataSize, Data: data})
		}
		return t, nil
	}
}
