// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bindoc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bpowers/bindoc/dom"
)

// WriteFile dumps d to path.  The bytes are written to a temporary file
// next to path and renamed into place, so path is never left half
// written.  d must be fixed up.
func WriteFile(d *dom.Document, path string) error {
	b, err := d.Dump()
	if err != nil {
		return fmt.Errorf("d.Dump: %w", err)
	}

	path, err = filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "bindoc-write.*.tmp")
	if err != nil {
		return fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("f.Write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Chmod(0644): %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}
