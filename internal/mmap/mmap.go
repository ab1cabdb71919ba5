// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap maps files read-only into memory.
package mmap

import (
	"errors"
	"os"
)

// ErrNotSupported is returned on platforms without mmap support.
var ErrNotSupported = errors.New("mmap not supported on this platform")

type Options uint

const (
	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 0

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 1
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Map maps the first size bytes of f read-only.  The mapping stays valid
// after f is closed; release it with Unmap.
func Map(f *os.File, size int, opt Options) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("mmap: size must be positive")
	}
	return mmap(f, size, opt)
}

// Unmap unmaps the given slice from memory. The slice must have been returned
// by Map.
func Unmap(b []byte) error {
	return munmap(b)
}
