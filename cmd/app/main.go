package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"teeout/internal/adapters/config"
	"teeout/internal/adapters/filesystem"
	logadapter "teeout/internal/adapters/logger"
	"teeout/internal/adapters/server"
	"teeout/internal/core/ports"
	"teeout/internal/core/services/output"
	"teeout/internal/tee"
)

const defaultConfigPath = "teeout.json"

func main() {
	// 1. Load configuration
	configPath := os.Getenv("TEEOUT_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	var configProvider ports.ConfigProvider = config.NewJSONProvider(configPath)
	cfg, err := configProvider.LoadConfig(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "teeout:", err)
		os.Exit(1)
	}

	// 2. Setup log broadcaster and the diagnostic stream.
	// Logs go to the console and the websocket broadcaster, never into the
	// files the output streams are mirrored to.
	logBroadcaster := server.NewLogBroadcaster()
	go logBroadcaster.Start()
	diag := tee.New(tee.AsSink(os.Stderr), logBroadcaster)

	slogger := logadapter.NewJSON(diag, cfg.LogLevel)
	slog.SetDefault(slogger)
	logger := logadapter.NewSlogAdapter(slogger)

	// 3. Output context owning the stdout and stderr tee streams
	opener := filesystem.NewOpener(logger, true)
	outputService := output.NewService(logger, opener, os.Stdout, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := outputService.Apply(ctx, cfg); err != nil {
		logger.Error("Failed to retarget output streams", "error", err)
	}

	outputService.Stdout().Printf("%d : Hello world :-) !\n", cfg.Rank)
	outputService.Stderr().Printf("%d : Hello world :-( !\n", cfg.Rank)

	// 4. Optional control server
	if cfg.HTTPPort > 0 {
		httpServer := server.NewHTTPServer(logger, outputService, logBroadcaster, cfg.HTTPHost, cfg.HTTPPort, cfg.OutputDir)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(httpServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down HTTP server")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return httpServer.Stop(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			logger.Error("HTTP server exited with an error", "error", err)
		}
	}

	// 5. Teardown
	diag.Rebind(tee.AsSink(os.Stderr), nil)
	logBroadcaster.Close()
	if err := outputService.Shutdown(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "teeout:", err)
		os.Exit(1)
	}
}
