// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package sample

import "fmt"

// File is one member of a CL3 archive.
type File struct {
	Name  string
	Data  []byte
	Links []uint32 // ids of linked files
}

// CL3 returns an archive with a FILE_COLLECTION and a FILE_LINK section
// holding files, in order.
func CL3(files ...File) ([]byte, Layout) {
	a := newAsm()
	a.WriteBytes([]byte("CL3L"))
	a.WriteU32(0)
	a.WriteU32(3)
	a.WriteU32(2)
	a.ref("sections")
	a.WriteU32(0)

	nlinks := 0
	for _, f := range files {
		nlinks += len(f.Links)
	}

	a.mark("sections")
	a.name("FILE_COLLECTION", 0x20)
	a.WriteU32(uint32(len(files)))
	a.WriteU32(uint32(len(files) * 0x230))
	a.ref("collection")
	a.WriteZeros(9 * 4)
	a.name("FILE_LINK", 0x20)
	a.WriteU32(uint32(nlinks))
	a.WriteU32(uint32(nlinks * 0x20))
	a.ref("links")
	a.WriteZeros(9 * 4)

	a.mark("collection")
	link := 0
	for i, f := range files {
		a.name(f.Name, 0x200)
		a.WriteU32(0)
		a.ref(fmt.Sprintf("file%d", i))
		a.WriteU32(uint32(len(f.Data)))
		a.WriteU32(uint32(link))
		a.WriteU32(uint32(len(f.Links)))
		a.WriteZeros(7 * 4)
		link += len(f.Links)
	}

	a.mark("links")
	for _, f := range files {
		for j, id := range f.Links {
			a.WriteU32(0)
			a.WriteU32(id)
			a.WriteU32(uint32(j))
			a.WriteZeros(5 * 4)
		}
	}

	for i, f := range files {
		a.mark(fmt.Sprintf("file%d", i))
		a.WriteBytes(f.Data)
	}
	return a.finish()
}
