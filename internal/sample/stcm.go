// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package sample

// STCM returns a container with some code bytes, an export table with a
// code and a data export, a collection link header and table, and the two
// strings the link table names.
func STCM() ([]byte, Layout) {
	a := newAsm()
	a.name("STCM2L", 0x20)
	a.ref("exports")
	a.WriteU32(2)
	a.WriteU32(0x11)
	a.ref("collection_link")

	a.mark("code")
	for i := 0; i < 16; i++ {
		a.WriteU8(byte(0xc0 + i))
	}

	a.mark("exports")
	a.WriteU32(0)
	a.name("main", 0x20)
	a.ref("code")
	a.WriteU32(1)
	a.name("names", 0x20)
	a.ref("strings")

	a.mark("collection_link")
	a.WriteU32(0)
	a.ref("links")
	a.WriteU32(1)
	a.WriteZeros(13 * 4)

	a.mark("links")
	a.ref("hero")
	a.ref("sword")
	a.WriteZeros(6 * 4)

	a.mark("strings")
	a.mark("hero")
	a.name("hero", 8)
	a.mark("sword")
	a.name("sword", 8)
	return a.finish()
}

// STCMHeaderOnly returns an STCM header without exports or collection
// links, followed by rest.
func STCMHeaderOnly(rest []byte) []byte {
	a := newAsm()
	a.name("STCM2L", 0x20)
	if len(rest) > 0 {
		a.WriteU32(0x30)
	} else {
		a.WriteU32(0)
	}
	a.WriteU32(0)
	a.WriteU32(0)
	a.WriteU32(0)
	a.WriteBytes(rest)
	b, _ := a.finish()
	return b
}
