// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cl3

import (
	"errors"
	"fmt"
	"io"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
)

// File is an archive member.  Its bytes are a document of their own,
// parsed by whichever registered format recognizes them, and share the
// archive's buffer.
type File struct {
	Doc *dom.Document `bindoc:"document"`
}

func (f *File) TypeName() string { return "cl3.file" }

func (f *File) Size() int64 {
	if f.Doc == nil {
		return 0
	}
	return f.Doc.Size()
}

// Fixup fixes up the member document.
func (f *File) Fixup(*dom.Document) error {
	if f.Doc == nil {
		return nil
	}
	return f.Doc.Fixup()
}

func (f *File) Dump(s *dom.Sink) error {
	if f.Doc == nil {
		return nil
	}
	b, err := f.Doc.Dump()
	if err != nil {
		return err
	}
	s.WriteBytes(b)
	return nil
}

func (f *File) Inspect(w io.Writer) error {
	if f.Doc == nil {
		_, err := fmt.Fprintln(w, "cl3.file(empty)")
		return err
	}
	if _, err := fmt.Fprintf(w, "cl3.file(size=0x%x)\n", f.Doc.Size()); err != nil {
		return err
	}
	return f.Doc.Inspect(w)
}

// Close closes the member document.
func (f *File) Close() error {
	if f.Doc == nil {
		return nil
	}
	return f.Doc.Close()
}

func embedFile(r *format.Registry, size uint32) dom.BuildFunc {
	return func(src *dom.Source) (dom.Leaf, error) {
		sub, err := src.Sub(0, int64(size))
		if err != nil {
			return nil, fmt.Errorf("cl3 file data: %w", err)
		}
		if r != nil {
			doc, err := r.Open(sub)
			if err == nil {
				return &File{Doc: doc}, nil
			}
			var ue *dom.UnsupportedFormatError
			if !errors.As(err, &ue) {
				return nil, err
			}
		}
		var opts []dom.Option
		if r != nil {
			opts = r.DocumentOptions()
		}
		doc, err := dom.NewFromSource(sub, opts...)
		if err != nil {
			return nil, err
		}
		return &File{Doc: doc}, nil
	}
}
