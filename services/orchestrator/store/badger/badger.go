// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger implements the Plan Store on BadgerDB.
//
// BadgerDB has no relations, so ownership is kept with an explicit index:
//
//	plan/<plan id>                     plan record (JSON)
//	task/<task id>                     task record (JSON)
//	idx/plan_task/<plan id>/<task id>  empty marker, one per owned task
//	seq/plan, seq/task                 ID sequences
//
// IDs in keys are zero-padded so lexical key order equals numeric order.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how often a read-write transaction is replayed
// after badger.ErrConflict.
const maxConflictRetries = 5

// Config holds configuration for the BadgerDB instance behind the store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a value log rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns defaults for a persistent store.
func DefaultConfig() Config {
	return Config{
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns defaults for tests and demos.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps a BadgerDB instance with value log GC and transaction helpers.
type DB struct {
	*badger.DB
	gc       *gcRunner
	inMemory bool

	// writeMu serializes read-write transactions within this process so
	// conflicts only arise from other processes sharing the directory.
	writeMu sync.Mutex
}

// OpenDB opens BadgerDB and starts value log GC when configured.
//
// # Description
//
// An empty Path with InMemory unset is treated as in-memory so the store
// factory can pass "no path" straight through.
//
// # Outputs
//
//   - *DB: The opened database. Caller must call Close().
//   - error: Non-nil if the directory or database cannot be opened.
func OpenDB(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		cfg.InMemory = true
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.NumVersionsToKeep <= 0 {
		cfg.NumVersionsToKeep = 1
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	wrapped := &DB{DB: db, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		wrapped.gc = newGCRunner(db, cfg.GCInterval, ratio, cfg.Logger)
		wrapped.gc.start()
	}
	return wrapped, nil
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.gc != nil {
		d.gc.stop()
		d.gc = nil
	}
	return d.DB.Close()
}

// update runs fn in a read-write transaction and commits it, replaying the
// whole transaction when the commit loses an optimistic conflict.
func (d *DB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context cancelled: %w", ctxErr)
		}
		d.writeMu.Lock()
		err = d.withTxn(fn)
		d.writeMu.Unlock()
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (d *DB) withTxn(fn func(txn *badger.Txn) error) error {
	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// view runs fn in a read-only transaction.
func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// gcRunner periodically triggers value log GC.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *gcRunner) collect() {
	err := r.db.RunValueLogGC(r.ratio)
	if r.logger == nil {
		return
	}
	switch {
	case err == nil:
		r.logger.Debug("Plan store value log GC completed")
	case errors.Is(err, badger.ErrNoRewrite):
		// Nothing to reclaim.
	default:
		r.logger.Warn("Plan store value log GC failed", "error", err)
	}
}
