// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"fmt"
	"io"
)

// Key is the stable identity of a node inside one Document.  The zero Key
// never names a node.
type Key uint64

// Kind is the structural variant of a node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindRaw
	KindComposite
	KindEof
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindComposite:
		return "composite"
	case KindEof:
		return "eof"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Pointer addresses a byte inside a node.  It is a transient handle:
// positions inside the tree move, keys do not.
type Pointer struct {
	Node   Key
	Offset int64
}

// Leaf is a format-defined node that owns decoded fields.
type Leaf interface {
	// TypeName is the registered name of the leaf kind, e.g. "stcm.header".
	TypeName() string
	// Size is the encoded size for the current field values.
	Size() int64
	// Dump appends exactly Size() bytes to s.
	Dump(s *Sink) error
	Inspect(w io.Writer) error
}

// Fixuper is implemented by leaves whose fields are derived from other
// parts of the document, such as counts of a table elsewhere.
type Fixuper interface {
	Fixup(d *Document) error
}

// BuildFunc decodes a leaf from src.  The leaf occupies the first
// leaf.Size() bytes of src.
type BuildFunc func(src *Source) (Leaf, error)

type node struct {
	key    Key
	kind   Kind
	parent Key
	size   int64 // recorded size, refreshed by Fixup

	// KindRaw
	buf   *Buffer
	start int64

	// KindComposite
	children []Key

	// KindLeaf
	leaf Leaf
}

func (n *node) typeName() string {
	if n.kind == KindLeaf {
		return n.leaf.TypeName()
	}
	return n.kind.String()
}
