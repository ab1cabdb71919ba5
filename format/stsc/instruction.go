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

// Instr is implemented by every instruction leaf.
type Instr interface {
	dom.Leaf
	Op() uint8
	// Terminal instructions never fall through to the next one.
	Terminal() bool
	// Targets returns the labels of code to follow and of strings to
	// split.
	Targets() (code, text []*dom.Label)
}

// ArgKind is the encoding of one argument of a plain instruction.
type ArgKind uint8

const (
	ArgU8 ArgKind = iota + 1
	ArgU16
	ArgU32
	ArgF32
	ArgCode // u32 position of code
	ArgText // u32 position of a C string
	ArgData // u32 position of opaque data
)

func (k ArgKind) size() int64 {
	switch k {
	case ArgU8:
		return 1
	case ArgU16:
		return 2
	default:
		return 4
	}
}

// Arg is one decoded argument.  Value holds integers, Float holds ArgF32
// and Label holds the three position kinds.
type Arg struct {
	Kind  ArgKind
	Value uint32
	Float float32
	Label *dom.Label
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgF32:
		return fmt.Sprintf("%g", a.Float)
	case ArgCode, ArgText, ArgData:
		return "@" + a.Label.String()
	default:
		return fmt.Sprint(a.Value)
	}
}

// Instruction is a plain instruction: an opcode followed by a fixed list
// of arguments.  The opcode selects the argument layout, so it cannot be
// changed in place; Replace the node with a NewInstruction instead.
type Instruction struct {
	Opcode uint8 `bindoc:"opcode,readonly"`
	Args   []Arg `bindoc:"args"`
}

func (in *Instruction) TypeName() string { return "stsc.instruction" }

func (in *Instruction) Op() uint8 { return in.Opcode }

func (in *Instruction) entry() *opcodeEntry { return &opcodes[in.Opcode] }

func (in *Instruction) Terminal() bool { return in.entry().terminal }

func (in *Instruction) Size() int64 {
	size := int64(1)
	for _, a := range in.Args {
		size += a.Kind.size()
	}
	return size
}

func (in *Instruction) Targets() (code, text []*dom.Label) {
	for _, a := range in.Args {
		switch a.Kind {
		case ArgCode:
			code = append(code, a.Label)
		case ArgText:
			text = append(text, a.Label)
		}
	}
	return code, text
}

// checkLayout reports whether Args match the layout of Opcode.
func (in *Instruction) checkLayout() error {
	e := in.entry()
	if !implemented.IsSet(int64(in.Opcode)) {
		return &dom.UnsupportedOpcodeError{Opcode: in.Opcode, Pos: -1}
	}
	if e.special {
		return fmt.Errorf("opcode 0x%02x (%s) is not a plain instruction", in.Opcode, e.name)
	}
	if len(in.Args) != len(e.args) {
		return fmt.Errorf("%s takes %d arguments, got %d", e.name, len(e.args), len(in.Args))
	}
	for i, a := range in.Args {
		if a.Kind != e.args[i] {
			return fmt.Errorf("%s arg %d: kind %d, want %d", e.name, i, a.Kind, e.args[i])
		}
	}
	return nil
}

func (in *Instruction) Dump(s *dom.Sink) error {
	if err := in.checkLayout(); err != nil {
		return err
	}
	name := in.entry().name
	s.WriteU8(in.Opcode)
	for i, a := range in.Args {
		switch a.Kind {
		case ArgU8:
			s.WriteU8(uint8(a.Value))
		case ArgU16:
			s.WriteU16(uint16(a.Value))
		case ArgU32:
			s.WriteU32(a.Value)
		case ArgF32:
			s.WriteF32(a.Float)
		case ArgCode, ArgText, ArgData:
			if a.Label == nil {
				return fmt.Errorf("%s arg %d: missing label", name, i)
			}
			if err := s.WriteLabel32(a.Label); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s arg %d: unknown kind %d", name, i, a.Kind)
		}
	}
	return nil
}

func (in *Instruction) Inspect(w io.Writer) error {
	args := make([]string, 0, len(in.Args)+1)
	args = append(args, fmt.Sprintf("0x%02x %s", in.Opcode, in.entry().name))
	for _, a := range in.Args {
		args = append(args, a.String())
	}
	_, err := fmt.Fprintf(w, "instr(%s)\n", strings.Join(args, ", "))
	return err
}

// NewInstruction builds a plain instruction.  The argument kinds must
// match the layout of op.
func NewInstruction(op uint8, args ...Arg) (*Instruction, error) {
	in := &Instruction{Opcode: op, Args: append([]Arg(nil), args...)}
	if err := in.checkLayout(); err != nil {
		return nil, err
	}
	return in, nil
}

func decodePlain(d *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error) {
	var size int64
	for _, k := range e.args {
		size += k.size()
	}
	if err := src.CheckRemaining(size); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	in := &Instruction{Opcode: e.opcode, Args: make([]Arg, len(e.args))}
	for i, k := range e.args {
		pos := src.Pos()
		a := Arg{Kind: k}
		var err error
		switch k {
		case ArgU8:
			var v uint8
			v, err = src.ReadU8()
			a.Value = uint32(v)
		case ArgU16:
			var v uint16
			v, err = src.ReadU16()
			a.Value = uint32(v)
		case ArgU32:
			a.Value, err = src.ReadU32()
		case ArgF32:
			a.Float, err = src.ReadF32()
		default:
			a.Label, err = readLabel(d, src, fmt.Sprintf("stsc.%s.arg%d", e.name, i), pos)
		}
		if err != nil {
			return nil, err
		}
		in.Args[i] = a
	}
	return in, nil
}

// readLabel decodes an absolute position, which must lie inside the
// stream, and returns its label.
func readLabel(d *dom.Document, src *dom.Source, field string, pos int64) (*dom.Label, error) {
	v, err := src.ReadU32()
	if err != nil {
		return nil, err
	}
	if int64(v) >= d.Size() {
		return nil, dom.Validatef(field, pos, "0x%x not below stream size 0x%x", v, d.Size())
	}
	return d.LabelAt(int64(v))
}
