// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bpowers/bindoc/internal/config"
	"github.com/bpowers/bindoc/internal/sample"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func samples(t *testing.T) (dir string, stcm, stsc string) {
	t.Helper()
	dir = t.TempDir()
	scene, _ := sample.STCM()
	script, _ := sample.STSC()
	stcm = filepath.Join(dir, "scene.stcm")
	stsc = filepath.Join(dir, "script.stsc")
	require.NoError(t, os.WriteFile(stcm, scene, 0644))
	require.NoError(t, os.WriteFile(stsc, script, 0644))
	return dir, stcm, stsc
}

func TestInspect(t *testing.T) {
	_, stcm, stsc := samples(t)
	out, err := runCmd(t, "inspect", stcm, stsc)
	require.NoError(t, err)
	require.Contains(t, out, stcm+":")
	require.Contains(t, out, "stcm.header(")
	require.Contains(t, out, "instr(0x00 end)")
}

func TestRoundtrip(t *testing.T) {
	_, stcm, stsc := samples(t)
	out, err := runCmd(t, "roundtrip", stcm, stsc)
	require.NoError(t, err)
	require.Contains(t, out, stcm+": ok ")
	require.Contains(t, out, stsc+": ok ")
}

func TestRewrite(t *testing.T) {
	dir, stcm, _ := samples(t)
	dst := filepath.Join(dir, "copy.stcm")
	_, err := runCmd(t, "rewrite", stcm, dst)
	require.NoError(t, err)

	want, err := os.ReadFile(stcm)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTypes(t *testing.T) {
	out, err := runCmd(t, "types")
	require.NoError(t, err)
	require.Contains(t, out, "formats:\n  stcm\n  stsc\n  cl3\n")
	for _, want := range []string{"TYPE", "ACCESS", "stcm.header", "magic", "text", "stsc.expression_tree", "cl3.file_links", "list", "ro"} {
		require.Contains(t, out, want)
	}
}

func TestConfig(t *testing.T) {
	dir, stcm, _ := samples(t)
	path := filepath.Join(dir, "bindoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("formats: [stsc]\nmmap: false\n"), 0644))

	out, err := runCmd(t, "--config", path, "types")
	require.NoError(t, err)
	require.Contains(t, out, "formats:\n  stsc\n")
	require.NotContains(t, out, "  stcm\n")

	// stcm is not enabled
	_, err = runCmd(t, "--config", path, "inspect", stcm)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("colour: red\n"), 0644))
	_, err = runCmd(t, "--config", path, "types")
	require.Error(t, err)
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"inspect"},
		{"rewrite", "only-one"},
		{"types", "extra"},
		{"--log-level", "loud", "types"},
		{"--no-such-flag"},
	} {
		_, err := runCmd(t, args...)
		require.Error(t, err, "%v", args)
	}

	_, err := runCmd(t, "--help")
	require.NoError(t, err)
}
