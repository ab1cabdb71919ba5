// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package stcm parses STCM scene containers: a header at offset 0, an
// export table and an optional collection link table.  Everything else is
// left as raw bytes.
package stcm

import (
	"fmt"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
)

const Name = "stcm"

// Register adds the STCM opener and leaf types to r.
func Register(r *format.Registry) error {
	if err := r.RegisterOpener(Name, format.Opener{
		Sniff: format.Magic("STCM", HeaderSize),
		Open:  Open,
	}); err != nil {
		return err
	}
	for _, t := range []format.LeafType{
		{Name: "stcm.header", New: func() dom.Leaf { return &Header{} }},
		{Name: "stcm.export_table", New: func() dom.Leaf { return &ExportTable{} }},
		{Name: "stcm.collection_link_header", New: func() dom.Leaf { return &CollectionLinkHeader{} }},
		{Name: "stcm.collection_link", New: func() dom.Leaf { return &CollectionLink{} }},
	} {
		t.Format = Name
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

// Open parses src as an STCM container.
func Open(src dom.Source, r *format.Registry) (*dom.Document, error) {
	return format.Parse(src, r, Parse)
}

// Parse splits the STCM structures out of an unparsed document.
func Parse(d *dom.Document) error {
	hk, err := d.SplitAt(0, parseHeader(d))
	if err != nil {
		return err
	}
	leaf, _ := d.Leaf(hk)
	h := leaf.(*Header)

	if h.ExportCount > 0 {
		if _, err := d.SplitLabel(h.Exports, parseExports(d, h.ExportCount)); err != nil {
			return fmt.Errorf("export table: %w", err)
		}
	}

	if h.CollectionLink != nil {
		ck, err := d.SplitLabel(h.CollectionLink, parseCollectionLinkHeader(d))
		if err != nil {
			return fmt.Errorf("collection link header: %w", err)
		}
		leaf, _ := d.Leaf(ck)
		clh := leaf.(*CollectionLinkHeader)
		if clh.Count > 0 {
			if _, err := d.SplitLabel(clh.Data, parseCollectionLinks(d, clh.Count)); err != nil {
				return fmt.Errorf("collection link table: %w", err)
			}
		}
	}
	return nil
}

// HeaderOf returns the header of a parsed STCM document.
func HeaderOf(d *dom.Document) (*Header, bool) {
	hs := dom.Find[*Header](d)
	if len(hs) == 0 {
		return nil, false
	}
	return hs[0], true
}

// Exports returns the export table of a parsed STCM document.
func Exports(d *dom.Document) (*ExportTable, bool) {
	h, ok := HeaderOf(d)
	if !ok {
		return nil, false
	}
	leaf, ok := d.LabelLeaf(h.Exports)
	if !ok {
		return nil, false
	}
	t, ok := leaf.(*ExportTable)
	return t, ok
}
