// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command melon-worker runs the melon worker agent: it registers with a
// melon-master, sends heartbeats, and supervises the jobs assigned to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jontk/melon/internal/worker"
	"github.com/jontk/melon/pkg/config"
	"github.com/jontk/melon/pkg/logging"
	"github.com/jontk/melon/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "melon-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.NewWorkerDefault()
	cfg.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{
		Level:     level,
		Format:    logging.FormatJSON,
		Output:    os.Stdout,
		Component: "melon-worker",
		Version:   "dev",
	})

	metr := metrics.NewInMemoryCollector()
	agent := worker.New(cfg, logger, metr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("melon-worker starting", "master_addr", cfg.MasterAddr, "listen_addr", cfg.ListenAddr)
	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("melon-worker shut down cleanly")
	return nil
}
