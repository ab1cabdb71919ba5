// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package dom

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/bindoc/internal/mmap"
)

type bufferState struct {
	refs    atomic.Int32
	release func() error
}

// Buffer is an immutable, reference counted view of document bytes.
// Sub-views created with Slice share the backing memory and the count;
// the backing memory is released when the last reference goes away.
type Buffer struct {
	data  []byte
	state *bufferState
}

func newBuffer(data []byte, release func() error) *Buffer {
	state := &bufferState{release: release}
	state.refs.Store(1)
	return &Buffer{data: data, state: state}
}

// NewBuffer wraps data, which must not be modified afterwards.  The
// returned Buffer holds one reference.
func NewBuffer(data []byte) *Buffer {
	return newBuffer(data, nil)
}

// ReadFile loads the contents of path into a heap-backed Buffer.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	return NewBuffer(data), nil
}

// MapFile maps path read-only into memory.  Empty files and platforms
// without mmap fall back to ReadFile.
func MapFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	if fi.Size() == 0 {
		return NewBuffer(nil), nil
	}

	data, err := mmap.Map(f, int(fi.Size()), mmap.RandomAccess)
	if errors.Is(err, mmap.ErrNotSupported) {
		return ReadFile(path)
	} else if err != nil {
		return nil, fmt.Errorf("mmap.Map: %w", err)
	}
	return newBuffer(data, func() error { return mmap.Unmap(data) }), nil
}

// Len returns the number of addressable bytes.
func (b *Buffer) Len() int64 {
	return int64(len(b.data))
}

// Bytes returns the underlying bytes.  Callers must not modify them.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Slice returns a sub-view of n bytes starting at off.  The sub-view holds
// its own reference and must be released separately.
func (b *Buffer) Slice(off, n int64) (*Buffer, error) {
	if off < 0 || n < 0 || off+n > b.Len() {
		return nil, &BoundsError{Pos: off, Want: n, Have: b.Len() - off}
	}
	b.Retain()
	return &Buffer{data: b.data[off : off+n : off+n], state: b.state}, nil
}

// Retain adds a reference.
func (b *Buffer) Retain() {
	b.state.refs.Add(1)
}

// Release drops a reference, unmapping the backing memory when it is the
// last one.
func (b *Buffer) Release() error {
	n := b.state.refs.Add(-1)
	if n < 0 {
		return errors.New("buffer released too many times")
	}
	if n == 0 && b.state.release != nil {
		release := b.state.release
		b.state.release = nil
		if err := release(); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	}
	return nil
}

// Refs reports the current reference count shared by b and its sub-views.
func (b *Buffer) Refs() int32 {
	return b.state.refs.Load()
}

// Fingerprint returns a farm fingerprint of the content.
func (b *Buffer) Fingerprint() uint64 {
	return farm.Fingerprint64(b.data)
}
