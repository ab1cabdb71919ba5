// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package bindoc opens STCM, STSC and CL3 files as editable documents.
//
// A document is a tree of nodes over the bytes of the file.  Structures a
// format understands become typed leaves, everything else stays raw, and
// dumping an unmodified document reproduces the input byte for byte.
package bindoc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/format"
	"github.com/bpowers/bindoc/format/cl3"
	"github.com/bpowers/bindoc/format/stcm"
	"github.com/bpowers/bindoc/format/stsc"
)

// Formats lists the built-in formats in the order they are tried.
var Formats = []string{stcm.Name, stsc.Name, cl3.Name}

// Option configures NewRegistry, Open and OpenFile.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	formats []string
	mmap    bool
}

// WithLogger sets an optional logger for parsing and fixup progress.
// If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithFormats restricts the formats that are tried, in the given order.
func WithFormats(names ...string) Option {
	return func(opts *options) {
		opts.formats = names
	}
}

// WithMmap makes OpenFile map files into memory instead of reading them.
func WithMmap(enabled bool) Option {
	return func(opts *options) {
		opts.mmap = enabled
	}
}

func newOptions(opts []Option) options {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry(opts ...Option) (*format.Registry, error) {
	options := newOptions(opts)
	return newRegistry(options)
}

func newRegistry(options options) (*format.Registry, error) {
	r := format.NewRegistry(format.WithLogger(options.logger))
	for _, register := range []func(*format.Registry) error{stcm.Register, stsc.Register, cl3.Register} {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	if len(options.formats) > 0 {
		if err := r.Enable(options.formats...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Open parses buf with the first format that recognizes it.  The document
// holds its own reference to buf.
func Open(buf *dom.Buffer, opts ...Option) (*dom.Document, error) {
	r, err := NewRegistry(opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.OpenBuffer(buf)
}

// OpenFile loads path and parses it.
func OpenFile(path string, opts ...Option) (*dom.Document, error) {
	options := newOptions(opts)
	r, err := newRegistry(options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var buf *dom.Buffer
	if options.mmap {
		buf, err = dom.MapFile(path)
	} else {
		buf, err = dom.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	options.logger.Debug("loaded", "path", path, "size", buf.Len(), "mmap", options.mmap)

	d, err := r.OpenBuffer(buf)
	if relErr := buf.Release(); relErr != nil && err == nil {
		_ = d.Close()
		return nil, fmt.Errorf("buf.Release: %w", relErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
