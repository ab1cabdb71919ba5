// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stcm

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/internal/fixedstr"
)

// ExportEntrySize is the encoded size of one export table entry.
const ExportEntrySize = 0x28

// ExportType tells what an export points at.
type ExportType uint32

const (
	ExportCode ExportType = 0
	ExportData ExportType = 1
)

func (t ExportType) String() string {
	switch t {
	case ExportCode:
		return "code"
	case ExportData:
		return "data"
	default:
		return fmt.Sprintf("ExportType(%d)", uint32(t))
	}
}

type exportRecord struct {
	Type   uint32
	Name   fixedstr.Name32
	Offset uint32
}

type ExportEntry struct {
	Type   ExportType
	Name   fixedstr.Name32
	Target *dom.Label
}

// ExportTable lists the named entry points of the container.
type ExportTable struct {
	Entries []ExportEntry `bindoc:"entries"`
}

func (t *ExportTable) TypeName() string { return "stcm.export_table" }

func (t *ExportTable) Size() int64 { return int64(len(t.Entries)) * ExportEntrySize }

func (t *ExportTable) Dump(s *dom.Sink) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		s.WriteU32(uint32(e.Type))
		s.WriteBytes(e.Name[:])
		if err := s.WriteLabel32(e.Target); err != nil {
			return fmt.Errorf("export %q: %w", e.Name.String(), err)
		}
	}
	return nil
}

func (t *ExportTable) Inspect(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "stcm.export_table(%d entries)\n", len(t.Entries)); err != nil {
		return err
	}
	for i := range t.Entries {
		e := &t.Entries[i]
		if _, err := fmt.Fprintf(w, "  %s %q -> %s\n", e.Type, e.Name.String(), e.Target); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the export named name.
func (t *ExportTable) Lookup(name string) (*ExportEntry, bool) {
	for i := range t.Entries {
		if t.Entries[i].Name.String() == name {
			return &t.Entries[i], true
		}
	}
	return nil, false
}

func parseExports(d *dom.Document, count uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		if err := src.CheckRemaining(int64(count) * ExportEntrySize); err != nil {
			return nil, fmt.Errorf("stcm export table: %w", err)
		}
		t := &ExportTable{Entries: make([]ExportEntry, 0, count)}
		for i := uint32(0); i < count; i++ {
			pos := src.Pos()
			var rec exportRecord
			if err := src.ReadFixed(&rec); err != nil {
				return nil, fmt.Errorf("stcm export %d: %w", i, err)
			}
			if rec.Type > uint32(ExportData) {
				return nil, dom.Validatef("stcm.export.type", pos, "unknown type %d", rec.Type)
			}
			if !rec.Name.Valid() {
				return nil, dom.Validatef("stcm.export.name", pos+4, "not NUL padded")
			}
			if int64(rec.Offset) >= d.Size() {
				return nil, dom.Validatef("stcm.export.offset", pos+0x24, "0x%x not below container size 0x%x", rec.Offset, d.Size())
			}
			target, err := d.LabelAt(int64(rec.Offset))
			if err != nil {
				return nil, err
			}
			t.Entries = append(t.Entries, ExportEntry{Type: ExportType(rec.Type), Name: rec.Name, Target: target})
		}
		return t, nil
	}
}
