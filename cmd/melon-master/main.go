// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command melon-master runs the melon scheduler daemon: job submission and
// lifecycle tracking, worker node registry, placement, and liveness sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jontk/melon/internal/httpapi"
	"github.com/jontk/melon/internal/master"
	"github.com/jontk/melon/internal/store/sqlstore"
	"github.com/jontk/melon/pkg/config"
	"github.com/jontk/melon/pkg/logging"
	"github.com/jontk/melon/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "melon-master:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.NewMasterDefault()
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
		Component: "melon-master",
		Version:   "dev",
	})

	repo, err := sqlstore.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	metr := metrics.NewInMemoryCollector()

	sched, err := master.New(cfg, repo, logger, metr, master.DialWorker)
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpcServer := master.NewRPCServer(sched, logger)
	rpcMux := http.NewServeMux()
	rpcMux.Handle("/rpc", rpcServer)
	rpcHTTPServer := &http.Server{Addr: cfg.ListenAddr, Handler: rpcMux}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("rpc listener starting", "addr", cfg.ListenAddr)
		if err := rpcHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("rpc listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return rpcHTTPServer.Close()
	})

	if cfg.HTTPListenAddr != "" {
		apiRouter := httpapi.NewRouter(sched, logger)
		apiServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: apiRouter}

		g.Go(func() error {
			logger.Info("http api starting", "addr", cfg.HTTPListenAddr)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http api listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return apiServer.Close()
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("melon-master shut down cleanly")
	return nil
}
