// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build unix

package mmap

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap: %w", err)
	}

	advice := -1
	if opt.Has(SequentialAccess) {
		advice = syscall.MADV_SEQUENTIAL
	} else if opt.Has(RandomAccess) {
		advice = syscall.MADV_RANDOM
	}
	if advice >= 0 {
		// ENOSYS only means the kernel ignores the hint
		if err := unix.Madvise(b, advice); err != nil && err != syscall.ENOSYS {
			_ = unix.Munmap(b)
			return nil, fmt.Errorf("madvise: %w", err)
		}
	}

	return b, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
