// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gen-testdata writes synthetic sample files for every supported format.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bpowers/bindoc/internal/sample"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var out string
	flagSet := pflag.NewFlagSet("gen-testdata", pflag.ContinueOnError)
	flagSet.StringVarP(&out, "out", "o", "testdata", "directory to write sample files to")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}
	for name, data := range samples() {
		path := filepath.Join(out, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("os.WriteFile: %w", err)
		}
		fmt.Printf("%s: %d bytes\n", path, len(data))
	}
	return nil
}

func samples() map[string][]byte {
	scene, _ := sample.STCM()
	script, _ := sample.STSC()
	archive, _ := sample.CL3(
		sample.File{Name: "scene.stcm", Data: scene, Links: []uint32{1}},
		sample.File{Name: "script.stsc", Data: script},
		sample.File{Name: "readme.txt", Data: []byte("synthetic sample archive\n")},
	)
	return map[string][]byte{
		"scene.stcm":  scene,
		"script.stsc": script,
		"archive.cl3": archive,
	}
}
