// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFixedUp is returned by Dump when a node's recorded size no
	// longer matches its content.  Call Fixup after editing.
	ErrNotFixedUp = errors.New("document not fixed up: node sizes are stale")

	// ErrClosed is returned when operating on a closed document.
	ErrClosed = errors.New("document closed")
)

// BoundsError reports a read or write beyond the available bytes.
type BoundsError struct {
	Pos  int64 // absolute buffer position of the access
	Want int64
	Have int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("access of %d bytes at 0x%x out of bounds (%d available)", e.Want, e.Pos, e.Have)
}

// ValidationError reports a decoded field outside of its allowed domain.
type ValidationError struct {
	Field string // dotted path, e.g. "stcm.header.export_offset"
	Pos   int64  // absolute file position of the field
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s at 0x%x: %s", e.Field, e.Pos, e.Msg)
}

// Validatef returns a *ValidationError for field at pos.
func Validatef(field string, pos int64, format string, args ...any) error {
	return &ValidationError{Field: field, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedFormatError is returned when no opener recognizes an input.
type UnsupportedFormatError struct {
	Magic []byte // up to the first 4 bytes of the input
	Size  int64
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format (magic %q, %d bytes)", e.Magic, e.Size)
}

// UnsupportedOpcodeError reports a dispatch table miss.
type UnsupportedOpcodeError struct {
	Opcode uint8
	Pos    int64
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode 0x%02x at 0x%x", e.Opcode, e.Pos)
}

// StructuralInvariantError reports an edit that would break the tree's
// no-gap/no-overlap invariants.
type StructuralInvariantError struct {
	Op  string
	Msg string
}

func (e *StructuralInvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func structuralf(op string, format string, args ...any) error {
	return &StructuralInvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ResolveError is returned by Dump when a label cannot be resolved to a
// position, usually because the node it was anchored to was removed.
type ResolveError struct {
	Label string
	Msg   string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("label %s: %s", e.Label, e.Msg)
}
