// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stcm

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
)

const (
	CollectionLinkHeaderSize = 0x40
	CollectionLinkEntrySize  = 0x20
)

type collectionLinkHeaderRecord struct {
	Field00  uint32
	Offset   uint32
	Count    uint32
	Reserved [13]uint32
}

func (h *collectionLinkHeaderRecord) validate(pos, size int64) error {
	if h.Field00 != 0 {
		return dom.Validatef("stcm.collection_link_header.field_00", pos, "0x%x, want 0", h.Field00)
	}
	if int64(h.Offset)+int64(h.Count)*CollectionLinkEntrySize > size {
		return dom.Validatef("stcm.collection_link_header.offset", pos+4, "%d entries at 0x%x overrun container size 0x%x", h.Count, h.Offset, size)
	}
	for i, v := range h.Reserved {
		if v != 0 {
			return dom.Validatef("stcm.collection_link_header.reserved", pos+0x0c+4*int64(i), "0x%x, want 0", v)
		}
	}
	return nil
}

// CollectionLinkHeader points at the collection link table.
type CollectionLinkHeader struct {
	Data  *dom.Label `bindoc:"data"`
	Count uint32     `bindoc:"count"`
}

func (h *CollectionLinkHeader) TypeName() string { return "stcm.collection_link_header" }

func (h *CollectionLinkHeader) Size() int64 { return CollectionLinkHeaderSize }

func (h *CollectionLinkHeader) Dump(s *dom.Sink) error {
	s.WriteU32(0)
	if err := s.WriteLabel32(h.Data); err != nil {
		return err
	}
	s.WriteU32(h.Count)
	s.WriteZeros(13 * 4)
	return nil
}

func (h *CollectionLinkHeader) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "stcm.collection_link_header(data=%s, count=%d)\n", h.Data, h.Count)
	return err
}

func (h *CollectionLinkHeader) Fixup(d *dom.Document) error {
	if leaf, ok := d.LabelLeaf(h.Data); ok {
		if t, ok := leaf.(*CollectionLink); ok {
			h.Count = uint32(len(t.Entries))
		}
	}
	return nil
}

func parseCollectionLinkHeader(d *dom.Document) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		pos := src.Pos()
		var rec collectionLinkHeaderRecord
		if err := src.ReadFixed(&rec); err != nil {
			return nil, fmt.Errorf("stcm collection link header: %w", err)
		}
		if err := rec.validate(pos, d.Size()); err != nil {
			return nil, err
		}
		data, err := d.LabelAt(int64(rec.Offset))
		if err != nil {
			return nil, err
		}
		return &CollectionLinkHeader{Data: data, Count: rec.Count}, nil
	}
}

type collectionLinkRecord struct {
	Name0    uint32
	Name1    uint32
	Ptr      uint32
	Reserved [5]uint32
}

// LinkEntry names two strings of the container; the engine fills in the
// pointer at runtime.
type LinkEntry struct {
	Name0 *dom.Label
	Name1 *dom.Label
}

// CollectionLink is the collection link table.
type CollectionLink struct {
	Entries []LinkEntry `bindoc:"entries"`
}

func (t *CollectionLink) TypeName() string { return "stcm.collection_link" }

func (t *CollectionLink) Size() int64 { return int64(len(t.Entries)) * CollectionLinkEntrySize }

func (t *CollectionLink) Dump(s *dom.Sink) error {
	for _, e := range t.Entries {
		if err := s.WriteLabel32(e.Name0); err != nil {
			return err
		}
		if err := s.WriteLabel32(e.Name1); err != nil {
			return err
		}
		s.WriteZeros(6 * 4)
	}
	return nil
}

func (t *CollectionLink) Inspect(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "stcm.collection_link(%d entries)\n", len(t.Entries)); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if _, err := fmt.Fprintf(w, "  %s, %s\n", e.Name0, e.Name1); err != nil {
			return err
		}
	}
	return nil
}

func parseCollectionLinks(d *dom.Document, count uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		if err := src.CheckRemaining(int64(count) * CollectionLinkEntrySize); err != nil {
			return nil, fmt.Errorf("stcm collection link: %w", err)
		}
		size := d.Size()
		t := &CollectionLink{Entries: make([]LinkEntry, 0, count)}
		for i := uint32(0); i < count; i++ {
			pos := src.Pos()
			var rec collectionLinkRecord
			if err := src.ReadFixed(&rec); err != nil {
				return nil, fmt.Errorf("stcm collection link %d: %w", i, err)
			}
			switch {
			case int64(rec.Name0) > size:
				return nil, dom.Validatef("stcm.collection_link.name_0", pos, "0x%x beyond container size 0x%x", rec.Name0, size)
			case int64(rec.Name1) > size:
				return nil, dom.Validatef("stcm.collection_link.name_1", pos+4, "0x%x beyond container size 0x%x", rec.Name1, size)
			case rec.Ptr != 0:
				return nil, dom.Validatef("stcm.collection_link.ptr", pos+8, "0x%x, want 0", rec.Ptr)
			}
			for j, v := range rec.Reserved {
				if v != 0 {
					return nil, dom.Validatef("stcm.collection_link.reserved", pos+0x0c+4*int64(j), "0x%x, want 0", v)
				}
			}
			name0, err := d.LabelAt(int64(rec.Name0))
			if err != nil {
				return nil, err
			}
			name1, err := d.LabelAt(int64(rec.Name1))
			if err != nil {
				return nil, err
			}
			t.Entries = append(t.Entries, LinkEntry{Name0: name0, Name1: name1})
		}
		return t, nil
	}
}
