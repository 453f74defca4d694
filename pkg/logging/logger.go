// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the process-wide structured logger for Momentum.
//
// Components never hold a *Logger. The entry point (the momentum CLI or the
// container server) calls New, installs the result with
// slog.SetDefault(logger.Slog()), and every package logs through the slog
// package functions with key/value pairs:
//
//	logger := logging.New(logging.Config{Level: slog.LevelInfo, Service: "momentum"})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//	slog.Info("plan created", "plan_id", plan.ID)
//
// Records go to the console (text, or JSON for log shippers) and, when
// Config.LogDir is set, also to a daily JSON file.
//
// # Security Considerations
//
// Nothing is redacted automatically. Do not log API keys or raw model
// credentials; log their presence instead:
//
//	slog.Info("llm configured", "api_key_present", apiKey != "")
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "warning", "error", case-insensitive) into a slog level.
//
// Empty input yields Info. Unknown input yields Info and an error so the
// caller can warn about the typo without failing startup.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Config configures the Logger. The zero value logs Info+ as text to stderr.
type Config struct {
	// Level is the minimum level written to every destination.
	Level slog.Level

	// LogDir adds a JSON file "{Service}_{YYYY-MM-DD}.log" in this
	// directory, created with 0750 permissions.
	LogDir string

	// Service is attached to every record as the "service" attribute and
	// names the log file. Default: "momentum".
	Service string

	// JSON switches the console handler to JSON.
	JSON bool

	// Output replaces stderr as the console destination.
	Output io.Writer
}

// Logger owns the slog handler chain and the optional log file.
//
// # Thread Safety
//
// Safe for concurrent use. Close is guarded by a mutex.
type Logger struct {
	slog *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from the configuration.
//
// A log file that cannot be opened is reported on the console and skipped;
// it never prevents the service starting.
func New(config Config) *Logger {
	service := config.Service
	if service == "" {
		service = "momentum"
	}
	opts := &slog.HandlerOptions{Level: config.Level}

	console := config.Output
	if console == nil {
		console = os.Stderr
	}
	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(console, opts)
	} else {
		handler = slog.NewTextHandler(console, opts)
	}

	logger := &Logger{}
	var fileErr error
	if config.LogDir != "" {
		logger.file, fileErr = openLogFile(config.LogDir, service)
		if fileErr == nil {
			handler = teeHandler{handler, slog.NewJSONHandler(logger.file, opts)}
		}
	}

	logger.slog = slog.New(handler.WithAttrs([]slog.Attr{slog.String("service", service)}))
	if fileErr != nil {
		logger.slog.Warn("File logging disabled", "log_dir", config.LogDir, "error", fileErr)
	}
	return logger
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Slog returns the underlying *slog.Logger for slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	return err
}

// teeHandler writes each record to the console and the log file.
type teeHandler [2]slog.Handler

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h[0].Enabled(ctx, level) || h[1].Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h {
		if handler.Enabled(ctx, r.Level) {
			errs = append(errs, handler.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{h[0].WithAttrs(attrs), h[1].WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{h[0].WithGroup(name), h[1].WithGroup(name)}
}
