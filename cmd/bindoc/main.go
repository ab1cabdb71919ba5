// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// bindoc inspects and rewrites STCM, STSC and CL3 files.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgryski/go-farm"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"github.com/bpowers/bindoc"
	"github.com/bpowers/bindoc/dom"
	"github.com/bpowers/bindoc/internal/config"
)

const usage = `Usage:
  bindoc [flags] inspect FILE...
  bindoc [flags] roundtrip FILE...
  bindoc [flags] rewrite IN OUT
  bindoc [flags] types

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	stdout io.Writer
	opts   []bindoc.Option
}

func run(args []string, stdout, stderr io.Writer) error {
	var configPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("bindoc", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	c := &command{
		stdout: stdout,
		opts: []bindoc.Option{
			bindoc.WithLogger(logger),
			bindoc.WithFormats(cfg.Formats...),
			bindoc.WithMmap(cfg.Mmap),
		},
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return errors.New("missing command")
	}
	switch cmd, files := rest[0], rest[1:]; cmd {
	case "inspect":
		return c.forEach(files, c.inspect)
	case "roundtrip":
		return c.forEach(files, c.roundtrip)
	case "rewrite":
		if len(files) != 2 {
			return errors.New("rewrite takes IN and OUT")
		}
		return c.rewrite(files[0], files[1])
	case "types":
		if len(files) != 0 {
			return fmt.Errorf("unexpected argument: %s", files[0])
		}
		return c.types()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, usage)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

func (c *command) forEach(files []string, fn func(path string, d *dom.Document) error) error {
	if len(files) == 0 {
		return errors.New("no input files")
	}
	for _, path := range files {
		d, err := bindoc.OpenFile(path, c.opts...)
		if err != nil {
			return err
		}
		err = fn(path, d)
		if closeErr := d.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (c *command) inspect(path string, d *dom.Document) error {
	fmt.Fprintf(c.stdout, "%s:\n", path)
	return d.Inspect(c.stdout)
}

// roundtrip fixes up and dumps d and checks the result against the input.
func (c *command) roundtrip(path string, d *dom.Document) error {
	if err := d.Fixup(); err != nil {
		return err
	}
	out, err := d.Dump()
	if err != nil {
		return err
	}
	in := d.Buffer().Fingerprint()
	got := farm.Fingerprint64(out)
	if in != got {
		color.New(color.FgRed).Fprintf(c.stdout, "%s: mismatch\n", path)
		return fmt.Errorf("roundtrip mismatch: input %016x (%d bytes), output %016x (%d bytes)", in, d.Buffer().Len(), got, len(out))
	}
	color.New(color.FgGreen).Fprintf(c.stdout, "%s: ok %016x\n", path, got)
	return nil
}

func (c *command) rewrite(in, out string) error {
	d, err := bindoc.OpenFile(in, c.opts...)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	if err := d.Fixup(); err != nil {
		return err
	}
	return bindoc.WriteFile(d, out)
}

func (c *command) types() error {
	r, err := bindoc.NewRegistry(c.opts...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	fmt.Fprintln(c.stdout, "formats:")
	for _, name := range r.Openers() {
		fmt.Fprintf(c.stdout, "  %s\n", name)
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.stdout)
	t.AppendHeader(table.Row{"Type", "Format", "Field", "Kind", "Access"})
	for _, lt := range r.Types() {
		fields, err := dom.Fields(lt.New())
		if err != nil {
			return fmt.Errorf("%s: %w", lt.Name, err)
		}
		if len(fields) == 0 {
			t.AppendRow(table.Row{lt.Name, lt.Format, "", "", ""})
		}
		for _, f := range fields {
			access := "rw"
			if !f.Settable {
				access = "ro"
			}
			t.AppendRow(table.Row{lt.Name, lt.Format, f.Name, f.Type, access})
		}
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
