// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package format holds the registry of format openers and leaf types.
package format

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/bpowers/bindoc/dom"
)

// ErrRegistryClosed is returned by a Registry after Close.
var ErrRegistryClosed = errors.New("format registry closed")

// Opener recognizes and parses one format.  Sniff inspects a short
// signature and must not fail; Open parses the whole input.
type Opener struct {
	Sniff func(src dom.Source) bool
	Open  func(src dom.Source, r *Registry) (*dom.Document, error)
}

// LeafType describes one leaf kind for introspection.
type LeafType struct {
	Name   string // e.g. "stcm.header"
	Format string
	New    func() dom.Leaf
}

type namedOpener struct {
	name string
	Opener
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets an optional logger, also handed to the documents the
// registry opens.  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Registry is an ordered chain of openers plus the leaf types of every
// registered format.  Openers are consulted in registration order and the
// first one whose Sniff matches parses the input.
type Registry struct {
	openers []namedOpener
	types   map[string]LeafType
	logger  *slog.Logger
	closed  bool
}

func NewRegistry(opts ...Option) *Registry {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}
	return &Registry{
		types:  make(map[string]LeafType),
		logger: options.logger,
	}
}

func (r *Registry) Logger() *slog.Logger { return r.logger }

// DocumentOptions returns the options documents opened through r should
// be created with.
func (r *Registry) DocumentOptions() []dom.Option {
	return []dom.Option{dom.WithLogger(r.logger)}
}

// RegisterOpener appends o to the opener chain.
func (r *Registry) RegisterOpener(name string, o Opener) error {
	if r.closed {
		return ErrRegistryClosed
	}
	if o.Sniff == nil || o.Open == nil {
		return fmt.Errorf("opener %q: Sniff and Open are required", name)
	}
	for _, existing := range r.openers {
		if existing.name == name {
			return fmt.Errorf("opener %q already registered", name)
		}
	}
	r.openers = append(r.openers, namedOpener{name: name, Opener: o})
	return nil
}

// RegisterType records a leaf type.
func (r *Registry) RegisterType(t LeafType) error {
	if r.closed {
		return ErrRegistryClosed
	}
	if t.Name == "" || t.New == nil {
		return fmt.Errorf("leaf type %q: Name and New are required", t.Name)
	}
	if _, ok := r.types[t.Name]; ok {
		return fmt.Errorf("leaf type %q already registered", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Enable keeps only the named openers, in the given order.
func (r *Registry) Enable(names ...string) error {
	if r.closed {
		return ErrRegistryClosed
	}
	enabled := make([]namedOpener, 0, len(names))
	for _, name := range names {
		found := false
		for _, o := range r.openers {
			if o.name == name {
				enabled = append(enabled, o)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown format %q", name)
		}
	}
	r.openers = enabled
	return nil
}

// Openers returns the opener names in consultation order.
func (r *Registry) Openers() []string {
	names := make([]string, len(r.openers))
	for i, o := range r.openers {
		names[i] = o.name
	}
	return names
}

// Types returns every registered leaf type sorted by name.
func (r *Registry) Types() []LeafType {
	out := make([]LeafType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewLeaf constructs an empty leaf of the named type.
func (r *Registry) NewLeaf(name string) (dom.Leaf, error) {
	if r.closed {
		return nil, ErrRegistryClosed
	}
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown leaf type %q", name)
	}
	return t.New(), nil
}

// Open parses src with the first opener that recognizes it.  A parse
// failure of that opener is returned as is; no other opener is tried.
func (r *Registry) Open(src dom.Source) (*dom.Document, error) {
	if r.closed {
		return nil, ErrRegistryClosed
	}
	for _, o := range r.openers {
		if !o.Sniff(src) {
			continue
		}
		r.logger.Debug("open", "format", o.name, "size", src.Size())
		d, err := o.Open(src, r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.name, err)
		}
		return d, nil
	}
	magic := make([]byte, min(src.Size(), 4))
	_ = src.Peek(0, magic)
	return nil, &dom.UnsupportedFormatError{Magic: magic, Size: src.Size()}
}

// OpenBuffer opens all of buf.
func (r *Registry) OpenBuffer(buf *dom.Buffer) (*dom.Document, error) {
	return r.Open(dom.NewSource(buf))
}

// Close tears the registry down.  Documents it opened stay valid.
func (r *Registry) Close() error {
	r.closed = true
	r.openers = nil
	r.types = nil
	return nil
}
