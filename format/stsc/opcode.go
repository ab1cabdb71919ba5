// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stsc

import (
	"fmt"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/internal/bitset"
)

type decodeFunc func(d *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error)

type opcodeEntry struct {
	opcode   uint8
	name     string
	terminal bool
	special  bool
	args     []ArgKind
	decode   decodeFunc
}

var (
	// opcodes is indexed by the first byte of an instruction.  Every slot
	// has a decoder; slots without an implementation decode to an
	// *dom.UnsupportedOpcodeError.
	opcodes [256]opcodeEntry

	// implemented marks the slots with a real decoder.
	implemented = bitset.New(256)
)

func plain(op uint8, name string, terminal bool, args ...ArgKind) {
	define(opcodeEntry{opcode: op, name: name, terminal: terminal, args: args, decode: decodePlain})
}

func define(e opcodeEntry) {
	if implemented.IsSet(int64(e.opcode)) {
		panic(fmt.Sprintf("stsc: opcode 0x%02x defined twice", e.opcode))
	}
	opcodes[e.opcode] = e
	implemented.Set(int64(e.opcode))
}

func decodeUnsupported(_ *dom.Document, e *opcodeEntry, src *dom.Source) (Instr, error) {
	return nil, &dom.UnsupportedOpcodeError{Opcode: e.opcode, Pos: src.Pos() - 1}
}

func init() {
	for i := range opcodes {
		opcodes[i] = opcodeEntry{opcode: uint8(i), name: "unsupported", decode: decodeUnsupported}
	}

	plain(0x00, "end", true)
	plain(0x01, "jump", true, ArgCode)
	plain(0x02, "call", false, ArgCode)
	plain(0x03, "return", true)
	plain(0x04, "jump_if", false, ArgU8, ArgCode)
	plain(0x05, "jump_unless", false, ArgU8, ArgCode)
	plain(0x06, "set_flag", false, ArgU16, ArgU8)
	plain(0x07, "set_var", false, ArgU16, ArgU32)
	plain(0x08, "set_float", false, ArgU16, ArgF32)
	plain(0x09, "add_var", false, ArgU16, ArgU32)
	plain(0x0a, "message", false, ArgU16, ArgText, ArgText)
	plain(0x0b, "choice", false, ArgText, ArgCode)
	plain(0x0c, "wait", false, ArgU32)
	define(opcodeEntry{opcode: 0x0d, name: "jump_table", special: true, decode: decodeJumpTable})
	plain(0x0e, "play_sound", false, ArgU16, ArgU8)
	plain(0x0f, "play_bgm", false, ArgU16, ArgU8)
	plain(0x10, "show_image", false, ArgU16, ArgU16, ArgU16)
	plain(0x11, "hide_image", false, ArgU16)
	plain(0x12, "set_position", false, ArgU16, ArgF32, ArgF32)
	plain(0x13, "fade", false, ArgU8, ArgU32)
	plain(0x14, "data_ref", false, ArgData)
	plain(0x15, "compare_var", false, ArgU16, ArgU32)
	plain(0x16, "random", false, ArgU16, ArgU32)
	plain(0x17, "nop", false)
	plain(0x18, "debug_print", false, ArgText)
	// 0x19 has no known layout.
	plain(0x1a, "call_native", false, ArgU16, ArgU8)
	define(opcodeEntry{opcode: 0x1d, name: "expression_tree", special: true, decode: decodeExpressionTree})
	define(opcodeEntry{opcode: 0x1e, name: "expression_list", special: true, decode: decodeExpressionList})

	for i := range opcodes {
		if opcodes[i].decode == nil || opcodes[i].opcode != uint8(i) {
			panic(fmt.Sprintf("stsc: dispatch slot 0x%02x is not defined", i))
		}
	}
}

// Supported reports whether op has a decoder.
func Supported(op uint8) bool {
	return implemented.IsSet(int64(op))
}

// OpcodeName returns the mnemonic of op, or "unsupported".
func OpcodeName(op uint8) string {
	return opcodes[op].name
}

// SupportedCount is the number of opcodes with a decoder.
func SupportedCount() int {
	return int(implemented.Count())
}

func decodeInstruction(d *dom.Document) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		op, err := src.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("stsc opcode: %w", err)
		}
		e := &opcodes[op]
		in, err := e.decode(d, e, src)
		if err != nil {
			return nil, err
		}
		return in, nil
	}
}
