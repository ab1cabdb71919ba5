// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

// maxFixupPasses bounds Fixup on documents whose derived sizes keep
// changing, which only happens with a misbehaving leaf.
const maxFixupPasses = 16

// Fixup recomputes recorded sizes bottom-up.  Leaves implementing Fixuper
// re-derive their fields first.  Passes repeat until no size changes,
// since a leaf may derive a field from the size of a node it follows.
func (d *Document) Fixup() error {
	if d.closed {
		return ErrClosed
	}
	for pass := 1; pass <= maxFixupPasses; pass++ {
		changed, err := d.fixupNode(d.root)
		if err != nil {
			return err
		}
		d.invalidate()
		if !changed {
			d.ensurePositions()
			d.logger.Debug("fixup", "passes", pass, "size", d.Size())
			return nil
		}
	}
	return fmt.Errorf("fixup: sizes still changing after %d passes", maxFixupPasses)
}

func (d *Document) fixupNode(k Key) (bool, error) {
	n := d.nodes[k]
	changed := false
	var size int64
	switch n.kind {
	case KindComposite:
		for _, c := range n.children {
			ch, err := d.fixupNode(c)
			if err != nil {
				return false, err
			}
			changed = changed || ch
			size += d.nodes[c].size
		}
	case KindLeaf:
		if f, ok := n.leaf.(Fixuper); ok {
			if err := f.Fixup(d); err != nil {
				return false, fmt.Errorf("fixup %s: %w", n.leaf.TypeName(), err)
			}
		}
		size = n.leaf.Size()
	default:
		size = n.size
	}
	if size != n.size {
		n.size = size
		changed = true
	}
	return changed, nil
}

// Dump serializes the document.  It first checks that every recorded size
// is current (ErrNotFixedUp otherwise) and assigns final positions, then
// emits every node, resolving labels against those positions.  A failed
// Dump leaves the tree unchanged.
func (d *Document) Dump() ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.checkSizes(d.root); err != nil {
		return nil, err
	}
	pos := d.layout()
	s := &Sink{buf: make([]byte, 0, d.Size()), doc: d, pos: pos}
	if err := d.emit(s, d.root); err != nil {
		return nil, err
	}
	d.pos, d.posValid = pos, true
	return s.buf, nil
}

// WriteTo dumps the document into w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	b, err := d.Dump()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

func (d *Document) checkSizes(k Key) error {
	n := d.nodes[k]
	var have int64
	switch n.kind {
	case KindComposite:
		for _, c := range n.children {
			if err := d.checkSizes(c); err != nil {
				return err
			}
			have += d.nodes[c].size
		}
	case KindLeaf:
		have = n.leaf.Size()
	default:
		have = n.size
	}
	if have != n.size {
		return fmt.Errorf("%s node %d: recorded size %d, current %d: %w", n.typeName(), k, n.size, have, ErrNotFixedUp)
	}
	return nil
}

func (d *Document) emit(s *Sink, k Key) error {
	n := d.nodes[k]
	switch n.kind {
	case KindRaw:
		s.WriteBytes(n.buf.data[n.start : n.start+n.size])
	case KindComposite:
		for _, c := range n.children {
			if err := d.emit(s, c); err != nil {
				return err
			}
		}
	case KindLeaf:
		before := s.Len()
		if err := n.leaf.Dump(s); err != nil {
			return fmt.Errorf("dump %s at 0x%x: %w", n.leaf.TypeName(), s.pos[k], err)
		}
		if wrote := s.Len() - before; wrote != n.size {
			return fmt.Errorf("dump %s at 0x%x: wrote %d bytes, want %d", n.leaf.TypeName(), s.pos[k], wrote, n.size)
		}
	}
	return nil
}

// Verify checks the structural invariants of the tree: composite sizes
// are the sum of their children, parent links agree, and the Eof
// sentinel is the last child of the root.
func (d *Document) Verify() error {
	root := d.nodes[d.root]
	if root.kind != KindComposite {
		return structuralf("Verify", "root is %s", root.kind)
	}
	if len(root.children) == 0 || root.children[len(root.children)-1] != d.eof {
		return structuralf("Verify", "Eof sentinel is not the last child of the root")
	}
	if d.nodes[d.eof].size != 0 {
		return structuralf("Verify", "Eof sentinel has size %d", d.nodes[d.eof].size)
	}
	seen := 0
	err := d.Walk(func(k Key, kind Kind) error {
		seen++
		n := d.nodes[k]
		if kind == KindEof && k != d.eof {
			return structuralf("Verify", "extra Eof node %d", k)
		}
		if kind != KindComposite {
			return nil
		}
		var sum int64
		for _, c := range n.children {
			cn, ok := d.nodes[c]
			if !ok {
				return structuralf("Verify", "node %d has missing child %d", k, c)
			}
			if cn.parent != k {
				return structuralf("Verify", "child %d of %d has parent %d", c, k, cn.parent)
			}
			sum += cn.size
		}
		if sum != n.size {
			return structuralf("Verify", "composite %d has size %d but children sum to %d", k, n.size, sum)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if seen != len(d.nodes) {
		return structuralf("Verify", "%d nodes unreachable from the root", len(d.nodes)-seen)
	}
	return nil
}

// Inspect writes a human readable rendering of the tree with positions
// and labels.
func (d *Document) Inspect(w io.Writer) error {
	d.ensurePositions()
	bw := bufio.NewWriter(w)
	var visit func(k Key, depth int) error
	visit = func(k Key, depth int) error {
		n := d.nodes[k]
		indent := strings.Repeat("  ", depth)
		for _, l := range d.labelsOn(k) {
			fmt.Fprintf(bw, "%s%s: 0x%06x\n", indent, l.name, d.pos[k]+l.ptr.Offset)
		}
		fmt.Fprintf(bw, "%s0x%06x %s size=0x%x\n", indent, d.pos[k], n.typeName(), n.size)
		switch n.kind {
		case KindLeaf:
			var b bytes.Buffer
			if err := n.leaf.Inspect(&b); err != nil {
				return fmt.Errorf("inspect %s: %w", n.leaf.TypeName(), err)
			}
			for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
				if line != "" {
					fmt.Fprintf(bw, "%s  %s\n", indent, line)
				}
			}
		case KindComposite:
			for _, c := range n.children {
				if err := visit(c, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := visit(d.root, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func (d *Document) labelsOn(k Key) []*Label {
	m := d.labels.byAnchor[k]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Label, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ptr.Offset < out[j].ptr.Offset })
	return out
}
