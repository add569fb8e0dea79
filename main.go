package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/ipc"
	"github.com/angch/vastlogmon/logger"
	"github.com/angch/vastlogmon/monitor"
	"github.com/angch/vastlogmon/sources"
	"github.com/angch/vastlogmon/sysstat"
	"github.com/angch/vastlogmon/transport"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	exitCompleted   = 0
	exitConfigError = 1
	exitTimedOut    = 2
	exitCancelled   = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitConfigError
	}

	logger.Init(cfg.Logging)
	defer logger.Sync()

	if cfg.ShowStatus {
		instances, err := ipc.ListInstances(ipc.GetSocketDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list instances: %v\n", err)
			return exitConfigError
		}
		printInstanceTable(os.Stdout, instances)
		return exitCompleted
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get(ctx).With("instance", cfg.Stream.Instance)
	ctx = logger.WithContext(ctx, log)

	src, client, err := buildSource(cfg)
	if err != nil {
		log.Errorw("Failed to set up log source", "error", err)
		return exitConfigError
	}

	alert, err := cfg.AlertDetector()
	if err != nil {
		log.Errorw("Failed to create alert detector", "error", err)
		return exitConfigError
	}

	sinks := monitor.MultiSink{monitor.NewWriterSink(os.Stdout, false)}

	var sentrySink *monitor.SentrySink
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     cfg.Sentry.Release,
		})
		if err != nil {
			log.Errorw("Failed to initialize Sentry", "error", err)
			return exitConfigError
		}
		defer sentry.Flush(2 * time.Second)
		log.Debugw("Initialized Sentry", "environment", cfg.Sentry.Environment, "release", cfg.Sentry.Release)

		collector := sysstat.New()
		go collector.Run(ctx)

		sentrySink = monitor.NewSentrySink(sentry.CurrentHub(), cfg.Stream.Instance, collector)
		sentrySink.Alert = alert
		sinks = append(sinks, sentrySink)
	}

	streamer, err := monitor.New(src, sinks, monitor.Options{Alert: alert})
	if err != nil {
		log.Errorw("Failed to create streamer", "error", err)
		return exitConfigError
	}

	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	applyReload := func(newCfg *config.Config) {
		rotateAPIKey(ctx, client, newCfg)
	}
	reload := func() error {
		if cfg.Path == "" {
			return errors.New("no config file to reload")
		}
		newCfg, err := reloadConfig(config.CommandLine, cfg.Path)
		if err != nil {
			return err
		}
		applyReload(newCfg)
		return nil
	}

	startIPC(ctx, cfg, streamer.Status, reload)
	if cfg.Path != "" {
		go watchConfig(ctx, config.CommandLine, cfg.Path, applyReload)
	}

	res, err := streamer.Stream(ctx, cfg.Stream.Instance, cfg.PollInterval(), cfg.Timeout())
	if err != nil {
		log.Errorw("Failed to start stream", "error", err)
		return exitConfigError
	}
	if sentrySink != nil {
		sentrySink.ReportResult(res)
	}
	return exitCode(res.Reason)
}

// buildSource returns the provider source, or a replay source for a dump
// file. The client is nil when replaying.
// rotateAPIKey hands the reloaded key to the client. An empty key never
// replaces the current one.
func rotateAPIKey(ctx context.Context, client *transport.Client, cfg *config.Config) {
	if client == nil {
		return
	}
	log := logger.Get(ctx)
	if cfg.API.APIKey == "" {
		log.Warnw("Reloaded config has no API key, keeping the current one")
		return
	}
	client.SetAPIKey(cfg.API.APIKey)
	log.Infow("Rotated provider API key")
}

func buildSource(cfg *config.Config) (sources.LogSource, *transport.Client, error) {
	if cfg.Stream.Replay != "" {
		return sources.NewReplaySource("replay", cfg.Stream.Replay), nil, nil
	}
	client, err := transport.New(cfg.API.BaseURL, cfg.API.APIKey, cfg.RequestTimeout())
	if err != nil {
		return nil, nil, err
	}
	return sources.NewVastSource("vast", client, cfg.API.Endpoints), client, nil
}

func startIPC(ctx context.Context, cfg *config.Config, statusFunc func() monitor.Status, reload func() error) {
	log := logger.Get(ctx)
	dir := ipc.GetSocketDir()
	if err := ipc.EnsureSecureDirectory(dir); err != nil {
		log.Warnw("IPC disabled, socket directory is not usable", "dir", dir, "error", err)
		return
	}
	socketPath := filepath.Join(dir, ipc.SocketName(os.Getpid()))
	go func() {
		if err := ipc.StartServer(ctx, socketPath, cfg, statusFunc, reload); err != nil {
			log.Warnw("IPC server stopped", "error", err)
		}
	}()
}

func serveMetrics(ctx context.Context, port int) {
	log := logger.Get(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	log.Infow("Serving metrics", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warnw("Metrics server failed", "error", err)
	}
}

func exitCode(reason monitor.Reason) int {
	switch reason {
	case monitor.ReasonCompleted:
		return exitCompleted
	case monitor.ReasonTimedOut:
		return exitTimedOut
	case monitor.ReasonCancelled:
		return exitCancelled
	default:
		return exitConfigError
	}
}
