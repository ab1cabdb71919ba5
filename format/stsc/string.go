// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package stsc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/bpowers/bindoc/dom"
)

// String is a NUL terminated string referenced by an instruction.
type String struct {
	Text string `bindoc:"text"`
}

func (s *String) TypeName() string { return "stsc.string" }

func (s *String) Size() int64 { return int64(len(s.Text)) + 1 }

func (s *String) Dump(sink *dom.Sink) error {
	if strings.IndexByte(s.Text, 0) >= 0 {
		return fmt.Errorf("string %q contains NUL", s.Text)
	}
	sink.WriteBytes([]byte(s.Text))
	sink.WriteU8(0)
	return nil
}

func (s *String) Inspect(w io.Writer) error {
	_, err := fmt.Fprintf(w, "stsc.string(%q)\n", s.Text)
	return err
}

func parseString(src *dom.Source) (dom.Leaf, error) {
	pos := src.Pos()
	b, err := src.Bytes(src.Remaining())
	if err != nil {
		return nil, err
	}
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		return nil, dom.Validatef("stsc.string", pos, "unterminated string")
	}
	return &String{Text: string(b[:n])}, nil
}
