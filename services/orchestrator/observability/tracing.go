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
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Trace exporters accepted by TracingConfig.Exporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// ErrUnknownExporter is returned for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// TracingConfig selects where spans go.
type TracingConfig struct {
	// Exporter is otlp, stdout or none. Empty means otlp when Endpoint is
	// set and none otherwise.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC receiver, e.g. localhost:4317.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards Endpoint.
	Insecure bool `yaml:"insecure"`

	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

// ResolvedExporter applies the empty-exporter rule.
func (c TracingConfig) ResolvedExporter() string {
	if c.Exporter != "" {
		return c.Exporter
	}
	if c.Endpoint != "" {
		return ExporterOTLP
	}
	return ExporterNone
}

// InitTracing installs the global TracerProvider.
//
// # Description
//
// With exporter none nothing is installed and otel's no-op provider stays in
// place, so spans cost next to nothing. The W3C trace context propagator is
// installed in every case so inbound trace headers are honoured.
//
// # Outputs
//
//   - shutdown: Flushes and stops the exporter. Always non-nil on success.
//   - error: ErrUnknownExporter or an exporter construction failure.
func InitTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	var (
		exporter sdktrace.SpanExporter
		conn     *grpc.ClientConn
	)
	switch cfg.ResolvedExporter() {
	case ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterOTLP:
		creds := credentials.NewClientTLSFromCert(nil, "")
		if cfg.Insecure {
			creds = insecure.NewCredentials()
		}
		conn, err = grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
		if err != nil {
			return nil, fmt.Errorf("dial otlp collector %s: %w", cfg.Endpoint, err)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "momentum"
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if conn != nil {
			err = errors.Join(err, conn.Close())
		}
		return err
	}, nil
}
