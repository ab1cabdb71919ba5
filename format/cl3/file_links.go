// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cl3

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
)

// LinkEntrySize is the encoded size of one file link.
const LinkEntrySize = 0x20

type linkRecord struct {
	Field00      uint32
	LinkedFileID uint32
	LinkID       uint32
	Reserved     [5]uint32
}

// Link connects a member to the member with index LinkedFileID.
type Link struct {
	LinkedFileID uint32
	LinkID       uint32
}

// FileLinks is the table of the FILE_LINK section.  Each member owns the
// range [LinkStart, LinkStart+LinkCount) of it.
type FileLinks struct {
	Entries []Link `bindoc:"entries"`
}

func (t *FileLinks) TypeName() string { return "cl3.file_links" }

func (t *FileLinks) Size() int64 { return int64(len(t.Entries)) * LinkEntrySize }

func (t *FileLinks) Dump(s *dom.Sink) error {
	for _, e := range t.Entries {
		s.WriteU32(0)
		s.WriteU32(e.LinkedFileID)
		s.WriteU32(e.LinkID)
		s.WriteZeros(5 * 4)
	}
	return nil
}

func (t *FileLinks) Inspect(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "cl3.file_links(%d entries)\n", len(t.Entries)); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if _, err := fmt.Fprintf(w, "  file=%d link=%d\n", e.LinkedFileID, e.LinkID); err != nil {
			return err
		}
	}
	return nil
}

func parseFileLinks(count uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		if err := src.CheckRemaining(int64(count) * LinkEntrySize); err != nil {
			return nil, fmt.Errorf("cl3 file links: %w", err)
		}
		t := &FileLinks{Entries: make([]Link, 0, count)}
		for i := uint32(0); i < count; i++ {
			pos := src.Pos()
			var rec linkRecord
			if err := src.ReadFixed(&rec); err != nil {
				return nil, fmt.Errorf("cl3 file link %d: %w", i, err)
			}
			if rec.Field00 != 0 {
				return nil, dom.Validatef("cl3.file_link.field_00", pos, "0x%x, want 0", rec.Field00)
			}
			for j, v := range rec.Reserved {
				if v != 0 {
					return nil, dom.Validatef("cl3.file_link.reserved", pos+0x0c+4*int64(j), "0x%x, want 0", v)
				}
			}
			t.Entries = append(t.Entries, Link{LinkedFileID: rec.LinkedFileID, LinkID: rec.LinkID})
		}
		return t, nil
	}
}
