// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import "github.com/bpowers/bindoc/dom"

// Magic returns a Sniff function matching inputs of at least minSize bytes
// that start with magic.
func Magic(magic string, minSize int64) func(src dom.Source) bool {
	return func(src dom.Source) bool {
		if src.Size() < minSize || src.Size() < int64(len(magic)) {
			return false
		}
		b := make([]byte, len(magic))
		if err := src.Peek(0, b); err != nil {
			return false
		}
		return string(b) == magic
	}
}

// Parse creates a document over src and runs parse on it.  When parse
// fails the document is closed and no document is returned.
func Parse(src dom.Source, r *Registry, parse func(d *dom.Document) error) (*dom.Document, error) {
	d, err := dom.NewFromSource(src, r.DocumentOptions()...)
	if err != nil {
		return nil, err
	}
	if err := parse(d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}
