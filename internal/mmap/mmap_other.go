// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !unix

package mmap

import "os"

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	return nil, ErrNotSupported
}

func munmap(b []byte) error {
	return ErrNotSupported
}
