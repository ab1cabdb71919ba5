// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package sample

import "math"

// STSC returns a script exercising plain instructions, a jump table, an
// expression tree and an expression list, followed by the strings the
// script references and one byte of trailing padding.
func STSC() ([]byte, Layout) {
	a := newAsm()
	a.WriteBytes([]byte("STSC"))
	a.ref("entry")
	a.WriteU32(1)
	for i := 0; i < 0x20; i++ {
		a.WriteU8(byte(i))
	}

	a.mark("entry")
	// message
	a.WriteU8(0x0a)
	a.WriteU16(1)
	a.ref("speaker")
	a.ref("line")
	// jump_if
	a.WriteU8(0x04)
	a.WriteU8(1)
	a.ref("sub")
	// jump table
	a.mark("table")
	a.WriteU8(0x0d)
	a.WriteU8(2)
	a.ref("sub")
	a.ref("other")
	// expression tree: root {op 1, left 2, right 0}, leaf {op 2, value 7}
	a.mark("tree")
	a.WriteU8(0x1d)
	a.WriteU16(2)
	a.ref("other")
	a.WriteU8(1)
	a.WriteU32(0)
	a.WriteU16(2)
	a.WriteU16(0)
	a.WriteU8(2)
	a.WriteU32(7)
	a.WriteU16(0)
	a.WriteU16(0)
	// expression list, flagged, one entry
	a.mark("list")
	a.WriteU8(0x1e)
	a.WriteU16(7)
	a.WriteU16(0x8001)
	a.WriteU32(3)
	a.ref("sub")
	// set_var
	a.WriteU8(0x07)
	a.WriteU16(2)
	a.WriteU32(100)
	// end
	a.mark("end")
	a.WriteU8(0x00)

	a.mark("sub")
	// nop, return
	a.WriteU8(0x17)
	a.WriteU8(0x03)

	a.mark("other")
	// set_float, jump
	a.WriteU8(0x08)
	a.WriteU16(3)
	a.WriteU32(math.Float32bits(1.5))
	a.WriteU8(0x01)
	a.ref("sub")

	a.mark("speaker")
	a.WriteBytes([]byte("hello\x00"))
	a.mark("line")
	a.WriteBytes([]byte("world\x00"))
	a.mark("padding")
	a.WriteU8(0xff)
	return a.finish()
}

// STSCWith returns a minimal script whose entry point holds code.
func STSCWith(code []byte) []byte {
	a := newAsm()
	a.WriteBytes([]byte("STSC"))
	a.WriteU32(12)
	a.WriteU32(0)
	a.WriteBytes(code)
	b, _ := a.finish()
	return b
}
