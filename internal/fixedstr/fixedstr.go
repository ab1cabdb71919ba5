// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package fixedstr handles NUL padded string fields of a fixed width.
package fixedstr

import (
	"bytes"
	"fmt"
	"strings"
)

// Get returns the bytes of b up to the first NUL.
func Get(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// Valid reports whether b holds a string terminated inside the field and
// followed only by NUL padding.
func Valid(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	n := bytes.IndexByte(b[:len(b)-1], 0)
	if n < 0 {
		n = len(b) - 1
	}
	for _, c := range b[n:] {
		if c != 0 {
			return false
		}
	}
	return true
}

// Set stores s NUL padded into b.  s must leave room for the terminator.
func Set(b []byte, s string) error {
	if len(s) >= len(b) {
		return fmt.Errorf("string of %d bytes does not fit in a %d byte field", len(s), len(b))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("string %q contains NUL", s)
	}
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
	return nil
}

// Name32 is a 0x20 byte field.
type Name32 [0x20]byte

func (n *Name32) String() string     { return Get(n[:]) }
func (n *Name32) Set(s string) error { return Set(n[:], s) }
func (n *Name32) Valid() bool        { return Valid(n[:]) }

// Name512 is a 0x200 byte field.
type Name512 [0x200]byte

func (n *Name512) String() string     { return Get(n[:]) }
func (n *Name512) Set(s string) error { return Set(n[:], s) }
func (n *Name512) Valid() bool        { return Valid(n[:]) }
