// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		cases := map[string]slog.Level{
			"":        slog.LevelInfo,
			"info":    slog.LevelInfo,
			"DEBUG":   slog.LevelDebug,
			"warn":    slog.LevelWarn,
			"Warning": slog.LevelWarn,
			" error ": slog.LevelError,
		}
		for in, want := range cases {
			got, err := ParseLevel(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("unknown value falls back to info", func(t *testing.T) {
		got, err := ParseLevel("verbose")
		assert.Error(t, err)
		assert.Equal(t, slog.LevelInfo, got)
	})
}

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf, Service: "momentum-test"})
	defer logger.Close()

	logger.Slog().Info("plan created", "plan_id", 7)
	logger.Slog().Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "plan created")
	assert.Contains(t, out, "plan_id=7")
	assert.Contains(t, out, "service=momentum-test")
	assert.NotContains(t, out, "hidden")
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})
	defer logger.Close()

	logger.Slog().Warn("synthesis degraded", "reason", "timeout")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "synthesis degraded", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "timeout", record["reason"])
	assert.Equal(t, "momentum", record["service"])
}

func TestNew_WithLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	var console bytes.Buffer
	logger := New(Config{LogDir: tmpDir, Service: "svc", Output: &console})

	logger.Slog().Info("to both", "plan_id", 3)
	logger.Slog().With("request_id", "r1").Info("with attrs")
	require.NoError(t, logger.Close())

	files, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "svc_"))

	data, err := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, string(data), `"service":"svc"`)
	assert.Contains(t, string(data), `"request_id":"r1"`)
	assert.Contains(t, console.String(), "to both")
	assert.Contains(t, console.String(), "request_id=r1")
}

func TestNew_DefaultServiceNamesLogFile(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Output: &bytes.Buffer{}})
	defer logger.Close()

	files, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "momentum_"))
}

func TestNew_UnwritableLogDirFallsBackToConsole(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	var console bytes.Buffer
	logger := New(Config{LogDir: blocker, Output: &console})
	defer logger.Close()

	logger.Slog().Info("still logged")
	assert.Contains(t, console.String(), "File logging disabled")
	assert.Contains(t, console.String(), "still logged")
}

func TestClose_Idempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Output: &bytes.Buffer{}})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
