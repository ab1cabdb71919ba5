// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package sample builds synthetic STCM, STSC and CL3 files for tests and
// cmd/gen-testdata.
package sample

import (
	"encoding/binary"
	"fmt"

	"github.com/bpowers/bindoc/dom"
)

// Layout maps label names used while assembling a file to their offsets.
type Layout map[string]int64

type fixup struct {
	name string
	pos  int64
}

// asm is a two pass assembler: references to labels are written as
// placeholders and patched once every label is known.
type asm struct {
	*dom.Sink
	at   Layout
	refs []fixup
}

func newAsm() *asm {
	return &asm{Sink: dom.NewSink(), at: make(Layout)}
}

func (a *asm) mark(name string) {
	a.at[name] = a.Len()
}

// ref writes a u32 placeholder for the offset of name.
func (a *asm) ref(name string) {
	a.refs = append(a.refs, fixup{name: name, pos: a.Len()})
	a.WriteU32(0)
}

// name writes s NUL padded to n bytes.
func (a *asm) name(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	a.WriteBytes(b)
}

func (a *asm) finish() ([]byte, Layout) {
	b := a.Bytes()
	for _, r := range a.refs {
		pos, ok := a.at[r.name]
		if !ok {
			panic(fmt.Sprintf("sample: undefined label %q", r.name))
		}
		binary.LittleEndian.PutUint32(b[r.pos:], uint32(pos))
	}
	return b, a.at
}
