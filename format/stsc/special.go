// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stsc

import (
	"fmt"
	"io"
	"strings"

	"github.com/bpowers/bindoc/dom"
)

const (
	opJumpTable      = 0x0d
	opExpressionTree = 0x1d
	opExpressionList = 0x1e

	exprNodeSize  = 9
	exprEntrySize = 8

	listFlag      = 0x8000
	listCountMask = 0x07ff
)

func labelNames(ls []*dom.Label) string {
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = "@" + l.String()
	}
	return strings.Join(names, ", ")
}

// JumpTable is opcode 0x0d: a u8 count followed by that many code
// positions.
type JumpTable struct {
	Entries []*dom.Label `bindoc:"targets"`
}

func (t *JumpTable) TypeName() string { return "stsc.jump_table" }

func (t *JumpTable) Op() uint8 { return opJumpTable }

func (t *JumpTable) Terminal() bool { return false }

func (t *JumpTable) Size() int64 { return 2 + 4*int64(len(t.Entries)) }

func (t *JumpTable) Targets() (code, text []*dom.Label) { return t.Entries, nil }

func (t *JumpTable) Dump(s *dom.Sink) error {
	if len(t.Entries) > 0xff {
		return fmt.Errorf("jump_table: %d targets do not fit in a u8 count", len(t.Entries))
	}
	s.WriteU8(opJumpTable)
	s.WriteU8(uint8(len(t.Entries)))
	for _, l := range t.Entries {
		if err := s.WriteLabel32(l); err != nil {
			return err
		}
	}
	return nil
}

func (t *JumpTable) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "instr(0x0d jump_table, %s)\n", labelNames(t.Entries))
	return err
}

func decodeJumpTable(d *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error) {
	pos := src.Pos()
	n, err := src.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	if err := src.CheckRemaining(4 * int64(n)); err != nil {
		return nil, dom.Validatef("stsc.jump_table.count", pos, "%d targets overrun the stream", n)
	}
	t := &JumpTable{Entries: make([]*dom.Label, 0, n)}
	for i := 0; i < int(n); i++ {
		l, err := readLabel(d, src, "stsc.jump_table.target", src.Pos())
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, l)
	}
	return t, nil
}

// ExprNode is one node of an expression tree.  Left and Right are 1-based
// node indices; 0 means no child.
type ExprNode struct {
	Operation uint8
	Value     uint32
	Left      uint16
	Right     uint16
}

// ExpressionTree is opcode 0x1d: a code position followed by a binary
// expression tree stored as an index addressed node array.
type ExpressionTree struct {
	Target *dom.Label `bindoc:"target"`
	Nodes  []ExprNode `bindoc:"nodes"`
}

func (t *ExpressionTree) TypeName() string { return "stsc.expression_tree" }

func (t *ExpressionTree) Op() uint8 { return opExpressionTree }

func (t *ExpressionTree) Terminal() bool { return false }

func (t *ExpressionTree) Targets() (code, text []*dom.Label) {
	return []*dom.Label{t.Target}, nil
}

func (t *ExpressionTree) Size() int64 { return 1 + 6 + exprNodeSize*int64(len(t.Nodes)) }

func (t *ExpressionTree) Dump(s *dom.Sink) error {
	if len(t.Nodes) > 0xffff {
		return fmt.Errorf("expression_tree: %d nodes do not fit in a u16 count", len(t.Nodes))
	}
	s.WriteU8(opExpressionTree)
	s.WriteU16(uint16(len(t.Nodes)))
	if err := s.WriteLabel32(t.Target); err != nil {
		return err
	}
	for _, n := range t.Nodes {
		s.WriteU8(n.Operation)
		s.WriteU32(n.Value)
		s.WriteU16(n.Left)
		s.WriteU16(n.Right)
	}
	return nil
}

func (t *ExpressionTree) Inspect(w io.Writer) error {
	var b strings.Builder
	t.inspectNode(&b, 0, make(map[int]bool))
	_, err := fmt.Fprintf(w, "instr(0x1d expression_tree, @%s, %s)\n", t.Target, b.String())
	return err
}

func (t *ExpressionTree) inspectNode(b *strings.Builder, i int, onPath map[int]bool) {
	if i < 0 || i >= len(t.Nodes) {
		b.WriteString("nil")
		return
	}
	if onPath[i] {
		fmt.Fprintf(b, "<cycle %d>", i)
		return
	}
	onPath[i] = true
	n := t.Nodes[i]
	fmt.Fprintf(b, "{%d, %d, ", n.Operation, n.Value)
	t.inspectNode(b, int(n.Left)-1, onPath)
	b.WriteString(", ")
	t.inspectNode(b, int(n.Right)-1, onPath)
	b.WriteString("}")
	delete(onPath, i)
}

func decodeExpressionTree(d *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error) {
	pos := src.Pos()
	if err := src.CheckRemaining(6); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	n, err := src.ReadU16()
	if err != nil {
		return nil, err
	}
	if int64(n)*exprNodeSize > src.Remaining()-4 {
		return nil, dom.Validatef("stsc.expression_tree.count", pos, "%d nodes overrun the stream", n)
	}
	t := &ExpressionTree{Nodes: make([]ExprNode, 0, n)}
	if t.Target, err = readLabel(d, src, "stsc.expression_tree.target", pos+2); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		npos := src.Pos()
		var nd ExprNode
		if err := src.ReadFixed(&nd); err != nil {
			return nil, err
		}
		if nd.Left > n {
			return nil, dom.Validatef("stsc.expression_tree.left", npos+5, "index %d beyond %d nodes", nd.Left, n)
		}
		if nd.Right > n {
			return nil, dom.Validatef("stsc.expression_tree.right", npos+7, "index %d beyond %d nodes", nd.Right, n)
		}
		t.Nodes = append(t.Nodes, nd)
	}
	return t, nil
}

// ExprEntry pairs an expression id with a code position.
type ExprEntry struct {
	Expression uint32
	Target     *dom.Label
}

// ExpressionList is opcode 0x1e: a u16 field, a u16 size whose top bit is
// a flag, then size entries.  With the flag set only the low 11 bits
// count.
type ExpressionList struct {
	Field0  uint16      `bindoc:"field_0"`
	Flag    bool        `bindoc:"flag"`
	Entries []ExprEntry `bindoc:"entries"`
}

func (l *ExpressionList) TypeName() string { return "stsc.expression_list" }

func (l *ExpressionList) Op() uint8 { return opExpressionList }

func (l *ExpressionList) Terminal() bool { return false }

func (l *ExpressionList) Targets() (code, text []*dom.Label) {
	for _, e := range l.Entries {
		code = append(code, e.Target)
	}
	return code, nil
}

func (l *ExpressionList) Size() int64 { return 1 + 4 + exprEntrySize*int64(len(l.Entries)) }

func (l *ExpressionList) Dump(s *dom.Sink) error {
	limit := listFlag - 1
	if l.Flag {
		limit = listCountMask
	}
	if len(l.Entries) > limit {
		return fmt.Errorf("expression_list: %d entries exceed %d", len(l.Entries), limit)
	}
	size := uint16(len(l.Entries))
	if l.Flag {
		size |= listFlag
	}
	s.WriteU8(opExpressionList)
	s.WriteU16(l.Field0)
	s.WriteU16(size)
	for _, e := range l.Entries {
		s.WriteU32(e.Expression)
		if err := s.WriteLabel32(e.Target); err != nil {
			return err
		}
	}
	return nil
}

func (l *ExpressionList) Inspect(w io.Writer) error {
	parts := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		parts[i] = fmt.Sprintf("{%d, @%s}", e.Expression, e.Target)
	}
	_, err := fmt.Fprintf(w, "instr(0x1e expression_list, %d, %t, {%s})\n", l.Field0, l.Flag, strings.Join(parts, ", "))
	return err
}

func decodeExpressionList(d *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error) {
	pos := src.Pos()
	if err := src.CheckRemaining(4); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	field0, err := src.ReadU16()
	if err != nil {
		return nil, err
	}
	size, err := src.ReadU16()
	if err != nil {
		return nil, err
	}
	l := &ExpressionList{Field0: field0, Flag: size&listFlag != 0}
	count := size
	if l.Flag {
		if size&^(listFlag|listCountMask) != 0 {
			return nil, dom.Validatef("stsc.expression_list.size", pos+2, "flagged size 0x%04x has bits outside the count", size)
		}
		count = size & listCountMask
	}
	if int64(count)*exprEntrySize > src.Remaining() {
		return nil, dom.Validatef("stsc.expression_list.size", pos+2, "%d entries overrun the stream", count)
	}
	l.Entries = make([]ExprEntry, 0, count)
	for i := 0; i < int(count); i++ {
		expr, err := src.ReadU32()
		if err != nil {
			return nil, err
		}
		target, err := readLabel(d, src, "stsc.expression_list.target", src.Pos())
		if err != nil {
			return nil, err
		}
		l.Entries = append(l.Entries, ExprEntry{Expression: expr, Target: target})
	}
	return l, nil
}
