// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"fmt"
	"sort"
)

// Label is a named anchor bound to a node and an offset inside it rather
// than to an absolute position, so it keeps pointing at the same bytes
// across splits and edits elsewhere in the tree.
type Label struct {
	name string
	ptr  Pointer
}

func (l *Label) Name() string { return l.name }

// Dangling reports whether the node the label was anchored to has been
// removed from its document.
func (l *Label) Dangling() bool { return l.ptr.Node == 0 }

func (l *Label) String() string {
	if l == nil {
		return "nil"
	}
	return l.name
}

type labelRegistry struct {
	byName   map[string]*Label
	byAnchor map[Key]map[int64]*Label
	// labels created since the current Split began, for rollback
	pending []*Label
}

func newLabelRegistry() labelRegistry {
	return labelRegistry{
		byName:   make(map[string]*Label),
		byAnchor: make(map[Key]map[int64]*Label),
	}
}

func (r *labelRegistry) lookup(ptr Pointer) *Label {
	return r.byAnchor[ptr.Node][ptr.Offset]
}

func (r *labelRegistry) anchor(l *Label, ptr Pointer) {
	l.ptr = ptr
	m := r.byAnchor[ptr.Node]
	if m == nil {
		m = make(map[int64]*Label)
		r.byAnchor[ptr.Node] = m
	}
	m[ptr.Offset] = l
}

func (r *labelRegistry) add(name string, ptr Pointer, splitting bool) *Label {
	l := &Label{name: name}
	r.byName[name] = l
	r.anchor(l, ptr)
	if splitting {
		r.pending = append(r.pending, l)
	}
	return l
}

func (r *labelRegistry) forget(l *Label) {
	delete(r.byName, l.name)
	if m := r.byAnchor[l.ptr.Node]; m != nil && m[l.ptr.Offset] == l {
		delete(m, l.ptr.Offset)
		if len(m) == 0 {
			delete(r.byAnchor, l.ptr.Node)
		}
	}
}

// detach removes every anchor on k, leaving the labels dangling.
func (r *labelRegistry) detach(k Key) {
	for _, l := range r.byAnchor[k] {
		l.ptr = Pointer{}
	}
	delete(r.byAnchor, k)
}

// detachFrom leaves every label on k at an offset of size or more
// dangling.  An anchor at offset 0 is kept.
func (r *labelRegistry) detachFrom(k Key, size int64) {
	m := r.byAnchor[k]
	for off, l := range m {
		if off > 0 && off >= size {
			l.ptr = Pointer{}
			delete(m, off)
		}
	}
	if m != nil && len(m) == 0 {
		delete(r.byAnchor, k)
	}
}

// moveAll re-anchors every label on from using remap, which gets the old
// offset and returns the new anchor.
func (r *labelRegistry) moveAll(from Key, remap func(off int64) Pointer) {
	old := r.byAnchor[from]
	delete(r.byAnchor, from)
	for off, l := range old {
		r.anchor(l, remap(off))
	}
}

func (r *labelRegistry) uniqueName(base string) string {
	if _, ok := r.byName[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if _, ok := r.byName[name]; !ok {
			return name
		}
	}
}

// LabelAt returns the label anchored at the absolute position abs,
// creating it if needed.  Inside a raw node the anchor is a logical split
// boundary: no node is materialized until a real Split.  abs == Size()
// anchors to the Eof sentinel.
func (d *Document) LabelAt(abs int64) (*Label, error) {
	ptr, err := d.Locate(abs)
	if err != nil {
		return nil, err
	}
	if l := d.labels.lookup(ptr); l != nil {
		return l, nil
	}
	name := d.labels.uniqueName(fmt.Sprintf("loc_%x", abs))
	return d.labels.add(name, ptr, d.splitting), nil
}

// NamedLabel binds name to ptr.  ptr is first resolved to the anchor
// LabelAt would use for the same position, and when that anchor already
// carries a label it is renamed to name, so one position never has two
// labels.
func (d *Document) NamedLabel(name string, ptr Pointer) (*Label, error) {
	n, ok := d.nodes[ptr.Node]
	if !ok {
		return nil, structuralf("NamedLabel", "no node %d", ptr.Node)
	}
	if ptr.Offset < 0 || ptr.Offset > n.size {
		return nil, &BoundsError{Pos: ptr.Offset, Want: 0, Have: n.size}
	}
	d.ensurePositions()
	ptr, err := d.Locate(d.pos[ptr.Node] + ptr.Offset)
	if err != nil {
		return nil, err
	}
	existing := d.labels.lookup(ptr)
	if existing != nil && existing.name == name {
		return existing, nil
	}
	if other, ok := d.labels.byName[name]; ok {
		return nil, fmt.Errorf("label %q already bound to node %d+0x%x", name, other.ptr.Node, other.ptr.Offset)
	}
	if existing != nil {
		delete(d.labels.byName, existing.name)
		existing.name = name
		d.labels.byName[name] = existing
		return existing, nil
	}
	return d.labels.add(name, ptr, d.splitting), nil
}

// Label looks a label up by name.
func (d *Document) Label(name string) (*Label, bool) {
	l, ok := d.labels.byName[name]
	return l, ok
}

// Labels returns every label, sorted by name.
func (d *Document) Labels() []*Label {
	out := make([]*Label, 0, len(d.labels.byName))
	for _, l := range d.labels.byName {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// LabelTarget returns the current anchor of l.
func (d *Document) LabelTarget(l *Label) (Pointer, error) {
	if l.Dangling() {
		return Pointer{}, &ResolveError{Label: l.name, Msg: "anchor node was removed"}
	}
	if d.labels.byName[l.name] != l {
		return Pointer{}, &ResolveError{Label: l.name, Msg: "label belongs to another document"}
	}
	return l.ptr, nil
}

// LabelPos returns the absolute position of l in the current layout.
func (d *Document) LabelPos(l *Label) (int64, error) {
	d.ensurePositions()
	return d.resolve(l, d.pos)
}

// LabelLeaf returns the leaf l is anchored at, if it is anchored at the
// start of a leaf.
func (d *Document) LabelLeaf(l *Label) (Leaf, bool) {
	if l == nil || l.Dangling() || l.ptr.Offset != 0 {
		return nil, false
	}
	n, ok := d.nodes[l.ptr.Node]
	if !ok || n.kind != KindLeaf {
		return nil, false
	}
	return n.leaf, true
}

func (d *Document) resolve(l *Label, pos map[Key]int64) (int64, error) {
	ptr, err := d.LabelTarget(l)
	if err != nil {
		return 0, err
	}
	return pos[ptr.Node] + ptr.Offset, nil
}
