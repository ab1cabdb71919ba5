// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import "io"

// Edits change the tree shape but leave recorded sizes of the ancestors
// alone; run Fixup before Dump.

func (d *Document) editable(op string) error {
	if d.closed {
		return ErrClosed
	}
	if d.splitting {
		return structuralf(op, "edit while a split is in progress")
	}
	return nil
}

func (d *Document) insertionPoint(op string, parent Key, index int) (*node, error) {
	if err := d.editable(op); err != nil {
		return nil, err
	}
	p, ok := d.nodes[parent]
	if !ok {
		return nil, structuralf(op, "no node %d", parent)
	}
	if p.kind != KindComposite {
		return nil, structuralf(op, "node %d is %s, not composite", parent, p.kind)
	}
	limit := len(p.children)
	if parent == d.root {
		// the Eof sentinel stays last
		limit--
	}
	if index < 0 || index > limit {
		return nil, structuralf(op, "index %d out of range [0, %d]", index, limit)
	}
	return p, nil
}

func (d *Document) attach(p *node, index int, n *node) {
	n.parent = p.key
	p.children = append(p.children, 0)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = n.key
	d.invalidate()
}

// InsertLeaf inserts leaf as the index'th child of parent.
func (d *Document) InsertLeaf(parent Key, index int, leaf Leaf) (Key, error) {
	p, err := d.insertionPoint("InsertLeaf", parent, index)
	if err != nil {
		return 0, err
	}
	if leaf == nil {
		return 0, structuralf("InsertLeaf", "nil leaf")
	}
	n := d.newNode(KindLeaf)
	n.leaf, n.size = leaf, leaf.Size()
	d.attach(p, index, n)
	return n.key, nil
}

// InsertRaw inserts a raw node holding a copy of data.
func (d *Document) InsertRaw(parent Key, index int, data []byte) (Key, error) {
	p, err := d.insertionPoint("InsertRaw", parent, index)
	if err != nil {
		return 0, err
	}
	n := d.newNode(KindRaw)
	n.buf = NewBuffer(append([]byte(nil), data...))
	n.size = int64(len(data))
	d.attach(p, index, n)
	return n.key, nil
}

// InsertComposite inserts an empty composite.
func (d *Document) InsertComposite(parent Key, index int) (Key, error) {
	p, err := d.insertionPoint("InsertComposite", parent, index)
	if err != nil {
		return 0, err
	}
	n := d.newNode(KindComposite)
	d.attach(p, index, n)
	return n.key, nil
}

// Remove deletes k and its subtree.  Labels anchored in the subtree become
// dangling; dumping a leaf that still references one fails.
func (d *Document) Remove(k Key) error {
	if err := d.editable("Remove"); err != nil {
		return err
	}
	n, ok := d.nodes[k]
	if !ok {
		return structuralf("Remove", "no node %d", k)
	}
	switch {
	case k == d.root:
		return structuralf("Remove", "cannot remove the root")
	case k == d.eof:
		return structuralf("Remove", "cannot remove the Eof sentinel")
	}
	p := d.nodes[n.parent]
	i := indexOf(p.children, k)
	p.children = append(p.children[:i:i], p.children[i+1:]...)
	d.drop(k)
	d.invalidate()
	return nil
}

func (d *Document) drop(k Key) {
	n := d.nodes[k]
	for _, c := range n.children {
		d.drop(c)
	}
	if n.kind == KindLeaf {
		closeLeaf(n.leaf)
	}
	d.labels.detach(k)
	delete(d.nodes, k)
	delete(d.pos, k)
}

func closeLeaf(leaf Leaf) {
	if c, ok := leaf.(io.Closer); ok {
		_ = c.Close()
	}
}

// Replace swaps the content of a leaf or raw node for leaf, keeping its
// key so labels anchored there stay valid.  Labels anchored past the end
// of the new content become dangling.
func (d *Document) Replace(k Key, leaf Leaf) error {
	if err := d.editable("Replace"); err != nil {
		return err
	}
	n, ok := d.nodes[k]
	if !ok {
		return structuralf("Replace", "no node %d", k)
	}
	if n.kind != KindLeaf && n.kind != KindRaw {
		return structuralf("Replace", "node %d is %s; only leaf and raw nodes can be replaced", k, n.kind)
	}
	if leaf == nil {
		return structuralf("Replace", "nil leaf")
	}
	if n.kind == KindLeaf && n.leaf != leaf {
		closeLeaf(n.leaf)
	}
	n.kind, n.leaf, n.buf, n.start = KindLeaf, leaf, nil, 0
	n.size = leaf.Size()
	d.labels.detachFrom(k, n.size)
	d.invalidate()
	return nil
}

// Merge joins two adjacent raw siblings covering contiguous bytes of the
// same buffer.  The merged node keeps the key of a.
func (d *Document) Merge(a, b Key) (Key, error) {
	if err := d.editable("Merge"); err != nil {
		return 0, err
	}
	na, okA := d.nodes[a]
	nb, okB := d.nodes[b]
	if !okA || !okB || na.kind != KindRaw || nb.kind != KindRaw {
		return 0, structuralf("Merge", "nodes %d and %d must both be raw", a, b)
	}
	if na.parent != nb.parent {
		return 0, structuralf("Merge", "nodes %d and %d are not siblings", a, b)
	}
	p := d.nodes[na.parent]
	i := indexOf(p.children, a)
	if i+1 >= len(p.children) || p.children[i+1] != b {
		return 0, structuralf("Merge", "node %d does not directly follow %d", b, a)
	}
	if na.buf != nb.buf || na.start+na.size != nb.start {
		return 0, structuralf("Merge", "nodes %d and %d do not cover contiguous bytes", a, b)
	}

	shift := na.size
	d.labels.moveAll(b, func(off int64) Pointer {
		return Pointer{Node: a, Offset: off + shift}
	})
	na.size += nb.size
	p.children = append(p.children[:i+1:i+1], p.children[i+2:]...)
	delete(d.nodes, b)
	delete(d.pos, b)
	d.invalidate()
	return a, nil
}
