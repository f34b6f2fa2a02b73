package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"gpscodec-svr/internal/codec/dialect"
	"gpscodec-svr/internal/config"
	"gpscodec-svr/internal/dispatcher"
	"gpscodec-svr/internal/grpcclient"
	"gpscodec-svr/internal/link"
	"gpscodec-svr/internal/observability"
	"gpscodec-svr/internal/server"
	"gpscodec-svr/internal/session"
	"gpscodec-svr/internal/store"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start one TCP listener per configured protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel)
	logger.Info("Starting gpscodec-svr...", "ports", cfg.Ports(), "registry", cfg.RegistryBackend)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inicializar el backend del registro antes de los listeners
	opts, closeBackend, err := registryOptions(ctx, cfg, logger)
	if err != nil {
		logger.Error("registry backend init failed", "backend", cfg.RegistryBackend, "error", err)
		return err
	}
	defer closeBackend()
	registry := session.NewRegistry(opts)

	var sinks []dispatcher.Sink
	var notifier dispatcher.DeviceNotifier
	if cfg.ProxyAddr != "" {
		lc := link.NewClient(cfg.ProxyAddr, logger)
		go lc.Run(ctx)
		sinks = append(sinks, lc)
		notifier = lc
	} else {
		logger.Info("link: disabled (no proxy address configured)")
	}
	if cfg.GRPCServer != "" {
		gc, err := grpcclient.NewGRPCClient(cfg.GRPCServer, logger)
		if err != nil {
			return err
		}
		defer gc.Close()
		sinks = append(sinks, gc)
	}

	rawDir := ""
	if cfg.RawLog {
		rawDir = "logs"
	}
	d := dispatcher.New(dispatcher.Options{
		Registry:  registry,
		Sinks:     sinks,
		Notifier:  notifier,
		Logger:    logger,
		RawLogDir: rawDir,
	})

	go func() {
		if err := observability.StartMetricsServer(ctx, cfg.MetricsPort); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, len(cfg.Ports()))
	for proto, port := range cfg.Ports() {
		if _, err := dialect.New(proto); err != nil {
			return err
		}
		wg.Add(1)
		go func(proto, port string) {
			defer wg.Done()
			handler := func(ctx context.Context, c net.Conn) {
				dec, _ := dialect.New(proto)
				d.Serve(ctx, c, dec)
			}
			if err := server.Start(ctx, ":"+port, handler, logger.With("protocol", proto)); err != nil {
				logger.Error("TCP server failed", "protocol", proto, "error", err)
				errs <- fmt.Errorf("%s listener: %w", proto, err)
				stop()
			}
		}(proto, port)
	}
	wg.Wait()
	close(errs)

	var joined error
	for err := range errs {
		joined = errors.Join(joined, err)
	}
	logger.Info("gpscodec-svr stopped")
	return joined
}

// registryOptions arma el Provisioner/FixStore según REGISTRY_BACKEND.
func registryOptions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Options, func(), error) {
	opts := session.Options{Strict: cfg.StrictDevices, Logger: logger}
	allow := cfg.AllowList()

	switch cfg.RegistryBackend {
	case "redis":
		rs, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return opts, nil, err
		}
		if err := rs.Provision(ctx, allow...); err != nil {
			_ = rs.Close()
			return opts, nil, err
		}
		opts.Provisioner, opts.Fixes = rs, rs
		return opts, func() { _ = rs.Close() }, nil

	case "bolt":
		bs, err := store.OpenBolt(cfg.BoltPath)
		if err != nil {
			return opts, nil, err
		}
		if err := bs.Provision(ctx, allow...); err != nil {
			_ = bs.Close()
			return opts, nil, err
		}
		opts.Provisioner, opts.Fixes = bs, bs
		return opts, func() { _ = bs.Close() }, nil
	}

	opts.Provisioner = session.NewAllowList(allow...)
	return opts, func() {}, nil
}
