// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cl3 parses CL3 archives.  Members are embedded as documents of
// their own, opened through the registry that opened the archive.
package cl3

import (
	"fmt"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
)

const Name = "cl3"

// Register adds the CL3 opener and leaf types to r.
func Register(r *format.Registry) error {
	if err := r.RegisterOpener(Name, format.Opener{
		Sniff: format.Magic("CL3L", HeaderSize),
		Open:  Open,
	}); err != nil {
		return err
	}
	for _, t := range []format.LeafType{
		{Name: "cl3.header", New: func() dom.Leaf { return &Header{} }},
		{Name: "cl3.sections", New: func() dom.Leaf { return &Sections{} }},
		{Name: "cl3.file_collection", New: func() dom.Leaf { return &FileCollection{} }},
		{Name: "cl3.file", New: func() dom.Leaf { return &File{} }},
		{Name: "cl3.file_links", New: func() dom.Leaf { return &FileLinks{} }},
	} {
		t.Format = Name
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

// Open parses src as a CL3 archive.
func Open(src dom.Source, r *format.Registry) (*dom.Document, error) {
	return format.Parse(src, r, func(d *dom.Document) error {
		return Parse(d, r)
	})
}

// Parse splits the archive structures and members out of an unparsed
// document.  Members are opened with r; with a nil r every member stays
// a raw document.
func Parse(d *dom.Document, r *format.Registry) error {
	hk, err := d.SplitAt(0, parseHeader(d))
	if err != nil {
		return err
	}
	leaf, _ := d.Leaf(hk)
	h := leaf.(*Header)
	if h.SectionsCount == 0 {
		return nil
	}

	sk, err := d.SplitLabel(h.Sections, parseSections(d, h.SectionsCount))
	if err != nil {
		return fmt.Errorf("sections: %w", err)
	}
	leaf, _ = d.Leaf(sk)
	secs := leaf.(*Sections)
	base, _ := d.Pos(sk)

	var files *FileCollection
	var links *FileLinks
	for i := range secs.Entries {
		sec := &secs.Entries[i]
		pos := base + int64(i)*SectionEntrySize
		switch name := sec.Name.String(); name {
		case SectionFileCollection:
			if files != nil {
				return dom.Validatef("cl3.section.name", pos, "duplicate %s section", name)
			}
			if int64(sec.DataSize) != int64(sec.Count)*FileEntrySize {
				return dom.Validatef("cl3.file_collection.data_size", pos+0x24, "0x%x, want %d entries of 0x%x", sec.DataSize, sec.Count, FileEntrySize)
			}
			files = &FileCollection{}
			if sec.Count > 0 {
				k, err := d.SplitLabel(sec.Data, parseFileCollection(d, sec.Count))
				if err != nil {
					return fmt.Errorf("file collection: %w", err)
				}
				leaf, _ := d.Leaf(k)
				files = leaf.(*FileCollection)
			}
		case SectionFileLink:
			if links != nil {
				return dom.Validatef("cl3.section.name", pos, "duplicate %s section", name)
			}
			if int64(sec.DataSize) != int64(sec.Count)*LinkEntrySize {
				return dom.Validatef("cl3.file_links.data_size", pos+0x24, "0x%x, want %d entries of 0x%x", sec.DataSize, sec.Count, LinkEntrySize)
			}
			links = &FileLinks{}
			if sec.Count > 0 {
				k, err := d.SplitLabel(sec.Data, parseFileLinks(sec.Count))
				if err != nil {
					return fmt.Errorf("file links: %w", err)
				}
				leaf, _ := d.Leaf(k)
				links = leaf.(*FileLinks)
			}
		default:
			d.Logger().Debug("cl3: skipping section", "name", name, "size", sec.DataSize)
		}
	}
	if files == nil {
		return nil
	}

	if err := checkLinks(d, files, links); err != nil {
		return err
	}
	for i := range files.Entries {
		if err := embed(d, r, &files.Entries[i]); err != nil {
			return fmt.Errorf("file %q: %w", files.Entries[i].Name.String(), err)
		}
	}
	return nil
}

func tablePos(d *dom.Document, leaf dom.Leaf) int64 {
	k, ok := d.KeyOf(leaf)
	if !ok {
		return 0
	}
	pos, _ := d.Pos(k)
	return pos
}

// checkLinks verifies that every member's link range lies inside the
// link table and that every link names an existing member.
func checkLinks(d *dom.Document, files *FileCollection, links *FileLinks) error {
	var n int64
	if links != nil {
		n = int64(len(links.Entries))
	}
	fbase := tablePos(d, files)
	for i, e := range files.Entries {
		if int64(e.LinkStart)+int64(e.LinkCount) > n {
			return dom.Validatef("cl3.file.link_count", fbase+int64(i)*FileEntrySize+0x210,
				"links %d+%d beyond %d link entries", e.LinkStart, e.LinkCount, n)
		}
	}
	if links == nil {
		return nil
	}
	lbase := tablePos(d, links)
	for j, l := range links.Entries {
		if int(l.LinkedFileID) >= len(files.Entries) {
			return dom.Validatef("cl3.file_link.linked_file_id", lbase+int64(j)*LinkEntrySize+4,
				"file %d of %d", l.LinkedFileID, len(files.Entries))
		}
	}
	return nil
}

func embed(d *dom.Document, r *format.Registry, e *FileEntry) error {
	if e.DataSize == 0 {
		return nil
	}
	ptr, err := d.LabelTarget(e.Data)
	if err != nil {
		return err
	}
	switch d.Kind(ptr.Node) {
	case dom.KindRaw:
		k, err := d.Split(ptr, embedFile(r, e.DataSize))
		if err != nil {
			return err
		}
		leaf, _ := d.Leaf(k)
		e.File = leaf.(*File)
		return nil
	case dom.KindLeaf:
		leaf, _ := d.Leaf(ptr.Node)
		if f, ok := leaf.(*File); ok && ptr.Offset == 0 && f.Size() == int64(e.DataSize) {
			e.File = f
			return nil
		}
		pos, _ := d.LabelPos(e.Data)
		return dom.Validatef("cl3.file.data_offset", pos, "member data overlaps %s", leaf.TypeName())
	default:
		pos, _ := d.LabelPos(e.Data)
		return dom.Validatef("cl3.file.data_offset", pos, "member data at end of archive")
	}
}

// Files returns the file collection of a parsed CL3 document.
func Files(d *dom.Document) (*FileCollection, bool) {
	fs := dom.Find[*FileCollection](d)
	if len(fs) == 0 {
		return nil, false
	}
	return fs[0], true
}

// Links returns the file link table of a parsed CL3 document.
func Links(d *dom.Document) (*FileLinks, bool) {
	ls := dom.Find[*FileLinks](d)
	if len(ls) == 0 {
		return nil, false
	}
	return ls[0], true
}
