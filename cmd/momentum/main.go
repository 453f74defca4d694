// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command momentum runs the learning plan service and manages plans locally.
//
// # Usage
//
//	momentum serve --config momentum.yaml
//	momentum plans create --goal "Learn Rust" --weeks 4
//	momentum plans list --limit 20
//	momentum plans show 1
//	momentum tasks complete 3
//	momentum tasks complete 3 --undo
//
// Configuration is read from .env, then the optional YAML file, then the
// environment. See orchestrator.LoadConfig.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
