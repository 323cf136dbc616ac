package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clientcore/internal/orchestrator"
	"clientcore/pkg/netclient"
)

func main() {
	var cfgPath string
	var metricsAddr string
	var target string
	var interval time.Duration
	flag.StringVar(&cfgPath, "c", "config.yaml", "config path")
	flag.StringVar(&metricsAddr, "metrics", "", "prometheus metrics listen address, e.g. :9100")
	flag.StringVar(&target, "url", "", "URL to probe on an interval; empty disables probing")
	flag.DurationVar(&interval, "interval", 30*time.Second, "probe interval")
	flag.Parse()

	cfg, err := orchestrator.LoadConfig(cfgPath)
	if err != nil {
		fatal("config: %v", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fatal("logger: %v", err)
	}
	defer log.Sync()

	client, err := netclient.New(cfg, log)
	if err != nil {
		fatal("client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr != "" || cfg.Metrics.Enable {
		addr := metricsAddr
		if addr == "" {
			addr = cfg.Metrics.Listen
		}
		orchestrator.EnableMetrics()
		go func() {
			if err := orchestrator.StartMetricsServer(ctx, addr); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("prometheus metrics listening", zap.String("addr", addr))
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutting down...")
		cancel()
	}()

	if target == "" {
		log.Info("no -url given, idling until interrupted")
		<-ctx.Done()
		return
	}

	u, err := url.Parse(target)
	if err != nil {
		fatal("url: %v", err)
	}

	cfg.PingInterval = interval
	orchestrator.RunPingLoop(ctx, cfg, log, func(pingCtx context.Context) (time.Duration, error) {
		start := time.Now()
		resp, err := client.Do(pingCtx, "GET", u, nil, nil)
		if err != nil {
			return 0, err
		}
		log.Info("probe response", zap.Int("status", resp.StatusCode), zap.String("url", u.String()))
		return time.Since(start), nil
	})
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func fatal(format string, args ...any) {
	log, _ := zap.NewProduction()
	if log != nil {
		log.Sugar().Fatalf(format, args...)
		return
	}
	os.Exit(1)
}
