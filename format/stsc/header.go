// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stsc

import (
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
)

// MinHeaderSize is the size of a header without optional blocks.
const MinHeaderSize = 12

const (
	FlagExtra1 = 1 << 0 // 0x20 byte block
	FlagExtra2 = 1 << 1 // 12 byte block
	FlagExtra3 = 1 << 2 // 2 byte block

	knownFlags = FlagExtra1 | FlagExtra2 | FlagExtra3
)

var extraSizes = [3]int64{0x20, 12, 2}

// Header is the script header.  The optional blocks selected by Flags are
// kept verbatim.
type Header struct {
	EntryPoint *dom.Label `bindoc:"entry_point"`
	Flags      uint32     `bindoc:"flags"`
	Extra      [3][]byte  `bindoc:"-"`
}

func (h *Header) TypeName() string { return "stsc.header" }

func (h *Header) Size() int64 {
	size := int64(MinHeaderSize)
	for _, b := range h.Extra {
		size += int64(len(b))
	}
	return size
}

func (h *Header) Dump(s *dom.Sink) error {
	if h.Flags&^knownFlags != 0 {
		return fmt.Errorf("stsc header: unknown flags 0x%x", h.Flags)
	}
	s.WriteBytes([]byte("STSC"))
	if err := s.WriteLabel32(h.EntryPoint); err != nil {
		return err
	}
	s.WriteU32(h.Flags)
	for i, b := range h.Extra {
		want := int64(0)
		if h.Flags&(1<<i) != 0 {
			want = extraSizes[i]
		}
		if int64(len(b)) != want {
			return fmt.Errorf("stsc header: block %d holds %d bytes, flags 0x%x want %d", i+1, len(b), h.Flags, want)
		}
		s.WriteBytes(b)
	}
	return nil
}

func (h *Header) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "stsc.header(entry_point=%s, flags=0x%x)\n", h.EntryPoint, h.Flags)
	return err
}

func parseHeader(d *dom.Document) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		pos := src.Pos()
		var magic [4]byte
		if err := src.Read(magic[:]); err != nil {
			return nil, fmt.Errorf("stsc header: %w", err)
		}
		if string(magic[:]) != "STSC" {
			return nil, dom.Validatef("stsc.header.magic", pos, "bad magic %q", magic[:])
		}
		entry, err := src.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("stsc header: %w", err)
		}
		flags, err := src.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("stsc header: %w", err)
		}
		if int64(entry) >= d.Size() {
			return nil, dom.Validatef("stsc.header.entry_point", pos+4, "0x%x not below stream size 0x%x", entry, d.Size())
		}
		if flags&^knownFlags != 0 {
			return nil, dom.Validatef("stsc.header.flags", pos+8, "unknown flags 0x%x", flags)
		}

		h := &Header{Flags: flags}
		for i, n := range extraSizes {
			if flags&(1<<i) == 0 {
				continue
			}
			b, err := src.Bytes(n)
			if err != nil {
				return nil, fmt.Errorf("stsc header block %d: %w", i+1, err)
			}
			h.Extra[i] = append([]byte(nil), b...)
		}
		if h.EntryPoint, err = d.LabelAt(int64(entry)); err != nil {
			return nil, err
		}
		return h, nil
	}
}
