// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package stsc parses STSC script bytecode.  Instructions are discovered
// by following control flow from the entry point; bytes never reached
// stay raw.
package stsc

import (
	"fmt"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
)

const Name = "stsc"

// Register adds the STSC opener and leaf types to r.
func Register(r *format.Registry) error {
	if err := r.RegisterOpener(Name, format.Opener{
		Sniff: format.Magic("STSC", MinHeaderSize),
		Open:  Open,
	}); err != nil {
		return err
	}
	for _, t := range []format.LeafType{
		{Name: "stsc.header", New: func() dom.Leaf { return &Header{} }},
		{Name: "stsc.instruction", New: func() dom.Leaf {
			in, _ := NewInstruction(0x17)
			return in
		}},
		{Name: "stsc.jump_table", New: func() dom.Leaf { return &JumpTable{} }},
		{Name: "stsc.expression_tree", New: func() dom.Leaf { return &ExpressionTree{} }},
		{Name: "stsc.expression_list", New: func() dom.Leaf { return &ExpressionList{} }},
		{Name: "stsc.string", New: func() dom.Leaf { return &String{} }},
	} {
		t.Format = Name
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

// Open parses src as an STSC script.
func Open(src dom.Source, r *format.Registry) (*dom.Document, error) {
	return format.Parse(src, r, Parse)
}

// Parse splits the header, every reachable instruction and every string
// they reference out of an unparsed document.
func Parse(d *dom.Document) error {
	hk, err := d.SplitAt(0, parseHeader(d))
	if err != nil {
		return err
	}
	leaf, _ := d.Leaf(hk)
	h := leaf.(*Header)

	texts, err := decodeCode(d, h.EntryPoint)
	if err != nil {
		return err
	}
	for _, l := range texts {
		if err := splitString(d, l); err != nil {
			return err
		}
	}
	return nil
}

func decodeCode(d *dom.Document, entry *dom.Label) ([]*dom.Label, error) {
	start, err := d.LabelPos(entry)
	if err != nil {
		return nil, err
	}
	queue := []int64{start}
	var texts []*dom.Label
	for len(queue) > 0 {
		pos := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		ptr, err := d.Locate(pos)
		if err != nil {
			return nil, err
		}
		switch d.Kind(ptr.Node) {
		case dom.KindRaw:
		case dom.KindLeaf:
			leaf, _ := d.Leaf(ptr.Node)
			if _, ok := leaf.(Instr); ok && ptr.Offset == 0 {
				continue
			}
			return nil, dom.Validatef("stsc.code", pos, "code position inside %s", leaf.TypeName())
		default:
			return nil, dom.Validatef("stsc.code", pos, "code position at end of stream")
		}

		k, err := d.Split(ptr, decodeInstruction(d))
		if err != nil {
			return nil, err
		}
		leaf, _ := d.Leaf(k)
		in := leaf.(Instr)
		d.Logger().Debug("instruction", "pos", pos, "opcode", in.Op())

		code, text := in.Targets()
		for _, l := range code {
			p, err := d.LabelPos(l)
			if err != nil {
				return nil, err
			}
			queue = append(queue, p)
		}
		texts = append(texts, text...)
		if next := pos + in.Size(); !in.Terminal() && next < d.Size() {
			queue = append(queue, next)
		}
	}
	return texts, nil
}

func splitString(d *dom.Document, l *dom.Label) error {
	ptr, err := d.LabelTarget(l)
	if err != nil {
		return err
	}
	switch d.Kind(ptr.Node) {
	case dom.KindRaw:
		if _, err := d.Split(ptr, parseString); err != nil {
			return fmt.Errorf("string %s: %w", l, err)
		}
		return nil
	case dom.KindLeaf:
		leaf, _ := d.Leaf(ptr.Node)
		if _, ok := leaf.(*String); ok && ptr.Offset == 0 {
			return nil
		}
		pos, _ := d.LabelPos(l)
		return dom.Validatef("stsc.string", pos, "string position inside %s", leaf.TypeName())
	default:
		pos, _ := d.LabelPos(l)
		return dom.Validatef("stsc.string", pos, "string position at end of stream")
	}
}

// Instructions returns every decoded instruction in stream order.
func Instructions(d *dom.Document) []Instr {
	return dom.Find[Instr](d)
}
