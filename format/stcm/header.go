// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stcm

import (
	"fmt"
	"io"
	"strings"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/internal/fixedstr"
)

// HeaderSize is the encoded size of the container header.
const HeaderSize = 0x30

type headerRecord struct {
	Magic                fixedstr.Name32
	ExportOffset         uint32
	ExportCount          uint32
	Field28              uint32
	CollectionLinkOffset uint32
}

func (h *headerRecord) validate(pos, size int64) error {
	if !strings.HasPrefix(h.Magic.String(), "STCM") || !h.Magic.Valid() {
		return dom.Validatef("stcm.header.magic", pos, "bad magic %q", h.Magic.String())
	}
	if int64(h.ExportOffset) >= size {
		return dom.Validatef("stcm.header.export_offset", pos+0x20, "0x%x not below container size 0x%x", h.ExportOffset, size)
	}
	if int64(h.ExportOffset)+int64(h.ExportCount)*ExportEntrySize > size {
		return dom.Validatef("stcm.header.export_count", pos+0x24, "%d entries at 0x%x overrun container size 0x%x", h.ExportCount, h.ExportOffset, size)
	}
	if int64(h.CollectionLinkOffset) >= size {
		return dom.Validatef("stcm.header.collection_link_offset", pos+0x2c, "0x%x not below container size 0x%x", h.CollectionLinkOffset, size)
	}
	return nil
}

// Header is the container header at offset 0.
type Header struct {
	Magic          fixedstr.Name32 `bindoc:"magic"`
	Exports        *dom.Label      `bindoc:"exports"`
	ExportCount    uint32          `bindoc:"export_count"`
	Field28        uint32          `bindoc:"field_28"`
	CollectionLink *dom.Label      `bindoc:"collection_link"`
}

func (h *Header) TypeName() string { return "stcm.header" }

func (h *Header) Size() int64 { return HeaderSize }

func (h *Header) Dump(s *dom.Sink) error {
	s.WriteBytes(h.Magic[:])
	if err := s.WriteLabel32(h.Exports); err != nil {
		return err
	}
	s.WriteU32(h.ExportCount)
	s.WriteU32(h.Field28)
	return s.WriteLabel32(h.CollectionLink)
}

func (h *Header) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "stcm.header(magic=%q, exports=%s, export_count=%d, field_28=0x%x, collection_link=%s)\n",
		h.Magic.String(), h.Exports, h.ExportCount, h.Field28, h.CollectionLink)
	return err
}

// Fixup re-derives the export count from the export table.
func (h *Header) Fixup(d *dom.Document) error {
	if leaf, ok := d.LabelLeaf(h.Exports); ok {
		if t, ok := leaf.(*ExportTable); ok {
			h.ExportCount = uint32(len(t.Entries))
		}
	}
	return nil
}

func parseHeader(d *dom.Document) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		pos := src.Pos()
		var rec headerRecord
		if err := src.ReadFixed(&rec); err != nil {
			return nil, fmt.Errorf("stcm header: %w", err)
		}
		if err := rec.validate(pos, d.Size()); err != nil {
			return nil, err
		}

		h := &Header{Magic: rec.Magic, ExportCount: rec.ExportCount, Field28: rec.Field28}
		var err error
		if h.Exports, err = d.LabelAt(int64(rec.ExportOffset)); err != nil {
			return nil, err
		}
		if rec.CollectionLinkOffset != 0 {
			if h.CollectionLink, err = d.LabelAt(int64(rec.CollectionLinkOffset)); err != nil {
				return nil, err
			}
		}
		return h, nil
	}
}
