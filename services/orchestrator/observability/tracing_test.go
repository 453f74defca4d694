// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingConfig_ResolvedExporter(t *testing.T) {
	assert.Equal(t, ExporterNone, TracingConfig{}.ResolvedExporter())
	assert.Equal(t, ExporterOTLP, TracingConfig{Endpoint: "localhost:4317"}.ResolvedExporter())
	assert.Equal(t, ExporterStdout, TracingConfig{Exporter: "stdout", Endpoint: "x"}.ResolvedExporter())
}

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Stdout(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: ExporterStdout})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInitTracing_OTLPDialsLazily(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Endpoint: "127.0.0.1:1",
		Insecure: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
