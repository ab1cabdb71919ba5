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

// FileEntrySize is the encoded size of one file collection entry.
const FileEntrySize = 0x230

type fileRecord struct {
	Name       fixedstr.Name512
	Field200   uint32
	DataOffset uint32
	DataSize   uint32
	LinkStart  uint32
	LinkCount  uint32
	Reserved   [7]uint32
}

// FileEntry describes one archive member.  File is the embedded content
// and is nil for empty members.
type FileEntry struct {
	Name      fixedstr.Name512
	Field200  uint32
	Data      *dom.Label
	DataSize  uint32
	LinkStart uint32
	LinkCount uint32
	File      *File
}

// FileCollection is the table of the FILE_COLLECTION section.
type FileCollection struct {
	Entries []FileEntry `bindoc:"entries"`
}

func (t *FileCollection) TypeName() string { return "cl3.file_collection" }

func (t *FileCollection) Size() int64 { return int64(len(t.Entries)) * FileEntrySize }

func (t *FileCollection) Dump(s *dom.Sink) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		s.WriteBytes(e.Name[:])
		s.WriteU32(e.Field200)
		if err := s.WriteLabel32(e.Data); err != nil {
			return fmt.Errorf("file %q: %w", e.Name.String(), err)
		}
		s.WriteU32(e.DataSize)
		s.WriteU32(e.LinkStart)
		s.WriteU32(e.LinkCount)
		s.WriteZeros(7 * 4)
	}
	return nil
}

func (t *FileCollection) Inspect(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "cl3.file_collection(%d entries)\n", len(t.Entries)); err != nil {
		return err
	}
	for i := range t.Entries {
		e := &t.Entries[i]
		if _, err := fmt.Fprintf(w, "  %q data=%s size=0x%x links=%d+%d\n",
			e.Name.String(), e.Data, e.DataSize, e.LinkStart, e.LinkCount); err != nil {
			return err
		}
	}
	return nil
}

// Fixup re-derives the size of every embedded member.
func (t *FileCollection) Fixup(*dom.Document) error {
	for i := range t.Entries {
		if f := t.Entries[i].File; f != nil {
			t.Entries[i].DataSize = uint32(f.Size())
		}
	}
	return nil
}

// Lookup returns the member named name.
func (t *FileCollection) Lookup(name string) (*FileEntry, bool) {
	for i := range t.Entries {
		if t.Entries[i].Name.String() == name {
			return &t.Entries[i], true
		}
	}
	return nil, false
}

func parseFileCollection(d *dom.Document, count uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		if err := src.CheckRemaining(int64(count) * FileEntrySize); err != nil {
			return nil, fmt.Errorf("cl3 file collection: %w", err)
		}
		t := &FileCollection{Entries: make([]FileEntry, 0, count)}
		for i := uint32(0); i < count; i++ {
			pos := src.Pos()
			var rec fileRecord
			if err := src.ReadFixed(&rec); err != nil {
				return nil, fmt.Errorf("cl3 file %d: %w", i, err)
			}
			if !rec.Name.Valid() {
				return nil, dom.Validatef("cl3.file.name", pos, "not NUL padded")
			}
			if int64(rec.DataOffset)+int64(rec.DataSize) > d.Size() {
				return nil, dom.Validatef("cl3.file.data_offset", pos+0x204, "0x%x bytes at 0x%x overrun archive size 0x%x", rec.DataSize, rec.DataOffset, d.Size())
			}
			for j, v := range rec.Reserved {
				if v != 0 {
					return nil, dom.Validatef("cl3.file.reserved", pos+0x214+4*int64(j), "0x%x, want 0", v)
				}
			}
			data, err := d.LabelAt(int64(rec.DataOffset))
			if err != nil {
				return nil, err
			}
			t.Entries = append(t.Entries, FileEntry{
				Name:      rec.Name,
				Field200:  rec.Field200,
				Data:      data,
				DataSize:  rec.DataSize,
				LinkStart: rec.LinkStart,
				LinkCount: rec.LinkCount,
			})
		}
		return t, nil
	}
}
