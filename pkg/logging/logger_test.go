// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.level.String())
		})
	}
}

func TestWriterCapture(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "test", Quiet: true, Writer: &buf})
	defer logger.Close()

	logger.Info("document loaded", "format", "json")

	out := buf.String()
	assert.Contains(t, out, "document loaded")
	assert.Contains(t, out, "format=json")
	assert.Contains(t, out, "service=test")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Quiet: true, Writer: &buf})
	defer logger.Close()

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "kept too")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Quiet: true, Writer: &buf})
	defer logger.Close()

	child := logger.With("path", "a.b[0]")
	child.Info("evaluated")
	logger.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "path=a.b[0]")
	assert.NotContains(t, lines[1], "path=")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "dotpath", Quiet: true})
	logger.Info("to file", "k", "v")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "dotpath_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".log"))

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	// file output is JSON
	assert.Contains(t, string(raw), `"msg":"to file"`)
	assert.Contains(t, string(raw), `"k":"v"`)
}

func TestCloseWithoutFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	assert.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".dotpath"), expandPath("~/.dotpath"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "rel/path", expandPath("rel/path"))
}
