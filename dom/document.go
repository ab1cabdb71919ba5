// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// Option configures a Document.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets an optional logger for splits and fixups.  If not
// provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Document is a tree of nodes overlaid on a Buffer.  It starts as a root
// composite holding one raw node over the whole buffer followed by the Eof
// sentinel.  A Document is not safe for concurrent use.
type Document struct {
	buf     *Buffer
	nodes   map[Key]*node
	root    Key
	eof     Key
	nextKey Key
	labels  labelRegistry

	pos      map[Key]int64
	posValid bool

	logger    *slog.Logger
	splitting bool
	closed    bool
}

// New creates a Document over buf.  The document takes its own reference
// to buf, released by Close.
func New(buf *Buffer, opts ...Option) *Document {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	buf.Retain()
	d := &Document{
		buf:    buf,
		nodes:  make(map[Key]*node),
		labels: newLabelRegistry(),
		pos:    make(map[Key]int64),
		logger: options.logger,
	}
	root := d.newNode(KindComposite)
	root.size = buf.Len()
	d.root = root.key
	if buf.Len() > 0 {
		raw := d.newNode(KindRaw)
		raw.buf, raw.start, raw.size = buf, 0, buf.Len()
		raw.parent = root.key
		root.children = append(root.children, raw.key)
	}
	eof := d.newNode(KindEof)
	eof.parent = root.key
	root.children = append(root.children, eof.key)
	d.eof = eof.key
	return d
}

// NewFromSource creates a Document over the bytes spanned by src, sharing
// the backing Buffer.  Positions in the document are relative to
// src.Start().
func NewFromSource(src Source, opts ...Option) (*Document, error) {
	sub, err := src.Buffer().Slice(src.Start(), src.Size())
	if err != nil {
		return nil, err
	}
	d := New(sub, opts...)
	if err := sub.Release(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Document) newNode(kind Kind) *node {
	d.nextKey++
	n := &node{key: d.nextKey, kind: kind}
	d.nodes[n.key] = n
	return n
}

func (d *Document) Buffer() *Buffer { return d.buf }

func (d *Document) Logger() *slog.Logger { return d.logger }

// Size is the recorded size of the root.
func (d *Document) Size() int64 { return d.nodes[d.root].size }

func (d *Document) Root() Key { return d.root }

func (d *Document) Eof() Key { return d.eof }

func (d *Document) Has(k Key) bool {
	_, ok := d.nodes[k]
	return ok
}

func (d *Document) Kind(k Key) Kind {
	if n, ok := d.nodes[k]; ok {
		return n.kind
	}
	return KindInvalid
}

// NodeSize returns the size of k recorded by the last split or Fixup.
func (d *Document) NodeSize(k Key) int64 {
	if n, ok := d.nodes[k]; ok {
		return n.size
	}
	return 0
}

func (d *Document) Parent(k Key) Key {
	if n, ok := d.nodes[k]; ok {
		return n.parent
	}
	return 0
}

// Children returns a copy of the child keys of a composite.
func (d *Document) Children(k Key) []Key {
	n, ok := d.nodes[k]
	if !ok || n.kind != KindComposite {
		return nil
	}
	return append([]Key(nil), n.children...)
}

func (d *Document) Leaf(k Key) (Leaf, bool) {
	n, ok := d.nodes[k]
	if !ok || n.kind != KindLeaf {
		return nil, false
	}
	return n.leaf, true
}

// RawBytes returns the bytes of a raw node.  They alias the Buffer.
func (d *Document) RawBytes(k Key) ([]byte, bool) {
	n, ok := d.nodes[k]
	if !ok || n.kind != KindRaw {
		return nil, false
	}
	return n.buf.data[n.start : n.start+n.size], true
}

// KeyOf returns the key of the node holding leaf.
func (d *Document) KeyOf(leaf Leaf) (Key, bool) {
	for k, n := range d.nodes {
		if n.kind == KindLeaf && n.leaf == leaf {
			return k, true
		}
	}
	return 0, false
}

// Pos returns the absolute position of k in the current layout.
func (d *Document) Pos(k Key) (int64, bool) {
	if _, ok := d.nodes[k]; !ok {
		return 0, false
	}
	d.ensurePositions()
	return d.pos[k], true
}

func (d *Document) ensurePositions() {
	if d.posValid {
		return
	}
	d.pos = d.layout()
	d.posValid = true
}

// layout assigns prefix-sum positions from recorded sizes.
func (d *Document) layout() map[Key]int64 {
	pos := make(map[Key]int64, len(d.nodes))
	var visit func(k Key, at int64)
	visit = func(k Key, at int64) {
		pos[k] = at
		n := d.nodes[k]
		for _, c := range n.children {
			visit(c, at)
			at += d.nodes[c].size
		}
	}
	visit(d.root, 0)
	return pos
}

func (d *Document) invalidate() {
	d.posValid = false
}

// Locate returns the deepest non-composite node containing abs together
// with the offset of abs inside it.
func (d *Document) Locate(abs int64) (Pointer, error) {
	size := d.Size()
	if abs < 0 || abs > size {
		return Pointer{}, &BoundsError{Pos: abs, Want: 0, Have: size}
	}
	if abs == size {
		return Pointer{Node: d.eof}, nil
	}
	d.ensurePositions()
	n := d.nodes[d.root]
	for n.kind == KindComposite {
		children := n.children
		i := sort.Search(len(children), func(i int) bool {
			c := children[i]
			return d.pos[c]+d.nodes[c].size > abs
		})
		if i == len(children) {
			return Pointer{Node: n.key, Offset: abs - d.pos[n.key]}, nil
		}
		n = d.nodes[children[i]]
	}
	return Pointer{Node: n.key, Offset: abs - d.pos[n.key]}, nil
}

// Split replaces the raw node ptr.Node with up to three nodes: a raw
// prefix holding the bytes before ptr.Offset, the leaf returned by build,
// and a raw suffix with whatever the leaf did not cover.  build sees a
// Source over [ptr.Offset, end of the raw node).  Split is atomic: when
// build fails the tree and the label registry are left unchanged.
func (d *Document) Split(ptr Pointer, build BuildFunc) (Key, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if d.splitting {
		return 0, structuralf("Split", "split of node %d while another split is in progress", ptr.Node)
	}
	raw, ok := d.nodes[ptr.Node]
	if !ok || raw.kind != KindRaw {
		return 0, structuralf("Split", "node %d is not a raw node", ptr.Node)
	}
	if ptr.Offset < 0 || ptr.Offset > raw.size {
		return 0, &BoundsError{Pos: raw.start + ptr.Offset, Want: 0, Have: raw.size}
	}

	src := Source{buf: raw.buf, start: raw.start + ptr.Offset, end: raw.start + raw.size}
	d.splitting = true
	d.labels.pending = d.labels.pending[:0]
	leaf, err := build(&src)
	if err == nil {
		if leaf == nil {
			err = structuralf("Split", "build returned no leaf")
		} else if sz := leaf.Size(); sz < 0 || sz > raw.size-ptr.Offset {
			err = structuralf("Split", "%s of size %d does not fit in %d remaining bytes", leaf.TypeName(), sz, raw.size-ptr.Offset)
			if c, ok := leaf.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
	d.splitting = false
	if err != nil {
		for _, l := range d.labels.pending {
			d.labels.forget(l)
		}
		d.labels.pending = d.labels.pending[:0]
		return 0, err
	}
	d.labels.pending = d.labels.pending[:0]

	key := d.commitSplit(raw, ptr.Offset, leaf)
	d.logger.Debug("split", "type", leaf.TypeName(), "pos", d.pos[key], "size", leaf.Size())
	return key, nil
}

func (d *Document) commitSplit(raw *node, off int64, leaf Leaf) Key {
	d.ensurePositions()
	base := d.pos[raw.key]
	parent := d.nodes[raw.parent]
	leafSize := leaf.Size()

	var repl []Key
	var prefix, suffix *node
	if off > 0 {
		prefix = d.newNode(KindRaw)
		prefix.buf, prefix.start, prefix.size = raw.buf, raw.start, off
		prefix.parent = parent.key
		d.pos[prefix.key] = base
		repl = append(repl, prefix.key)
	}
	n := d.newNode(KindLeaf)
	n.leaf, n.size, n.parent = leaf, leafSize, parent.key
	d.pos[n.key] = base + off
	repl = append(repl, n.key)
	if rest := raw.size - off - leafSize; rest > 0 {
		suffix = d.newNode(KindRaw)
		suffix.buf, suffix.start, suffix.size = raw.buf, raw.start+off+leafSize, rest
		suffix.parent = parent.key
		d.pos[suffix.key] = base + off + leafSize
		repl = append(repl, suffix.key)
	}

	d.labels.moveAll(raw.key, func(o int64) Pointer {
		switch {
		case o < off:
			return Pointer{Node: prefix.key, Offset: o}
		case o-off < leafSize || suffix == nil:
			return Pointer{Node: n.key, Offset: o - off}
		default:
			return Pointer{Node: suffix.key, Offset: o - off - leafSize}
		}
	})

	i := indexOf(parent.children, raw.key)
	children := make([]Key, 0, len(parent.children)-1+len(repl))
	children = append(children, parent.children[:i]...)
	children = append(children, repl...)
	children = append(children, parent.children[i+1:]...)
	parent.children = children

	delete(d.nodes, raw.key)
	delete(d.pos, raw.key)
	return n.key
}

// SplitAt splits the raw node containing the absolute position abs.
func (d *Document) SplitAt(abs int64, build BuildFunc) (Key, error) {
	ptr, err := d.Locate(abs)
	if err != nil {
		return 0, err
	}
	return d.Split(ptr, build)
}

// SplitLabel splits at the current anchor of l.
func (d *Document) SplitLabel(l *Label, build BuildFunc) (Key, error) {
	ptr, err := d.LabelTarget(l)
	if err != nil {
		return 0, err
	}
	return d.Split(ptr, build)
}

func indexOf(keys []Key, k Key) int {
	for i, c := range keys {
		if c == k {
			return i
		}
	}
	return -1
}

// Walk calls fn for every node in pre-order, starting at the root.
func (d *Document) Walk(fn func(k Key, kind Kind) error) error {
	var visit func(k Key) error
	visit = func(k Key) error {
		n := d.nodes[k]
		if err := fn(k, n.kind); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(d.root)
}

// Find returns every leaf of type T in tree order.
func Find[T Leaf](d *Document) []T {
	var out []T
	_ = d.Walk(func(k Key, kind Kind) error {
		if kind != KindLeaf {
			return nil
		}
		if t, ok := d.nodes[k].leaf.(T); ok {
			out = append(out, t)
		}
		return nil
	})
	return out
}

// Close closes every leaf implementing io.Closer and drops the document's
// reference to its Buffer.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	for _, k := range d.keysInOrder() {
		n := d.nodes[k]
		if n.kind != KindLeaf {
			continue
		}
		if c, ok := n.leaf.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", n.leaf.TypeName(), err)
			}
		}
	}
	if err := d.buf.Release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (d *Document) keysInOrder() []Key {
	var keys []Key
	_ = d.Walk(func(k Key, _ Kind) error {
		keys = append(keys, k)
		return nil
	})
	return keys
}
