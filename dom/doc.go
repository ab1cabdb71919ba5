// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package dom is a binary document object model: a tree of typed nodes
// overlaid on an immutable byte buffer.
//
// A Document starts out as a single raw node spanning its Buffer.  Format
// code repeatedly Splits raw regions into leaves and registers Labels for
// the cross-references it discovers.  Labels are anchored to a node and an
// offset inside it, never to an absolute position, so they survive
// structural edits.  After editing, Fixup re-derives recorded sizes and
// Dump lays the tree out again, resolving every label to its new
// position.  Unmodified documents dump byte-for-byte identical to their
// input.
package dom
