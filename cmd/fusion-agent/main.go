package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fusionwatch/fusionwatch/internal/actuator"
	"github.com/fusionwatch/fusionwatch/internal/agent"
	"github.com/fusionwatch/fusionwatch/internal/api"
	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/history"
	"github.com/fusionwatch/fusionwatch/internal/metrics"
	"github.com/fusionwatch/fusionwatch/internal/publish"
	"github.com/fusionwatch/fusionwatch/internal/reader"
	"github.com/fusionwatch/fusionwatch/internal/rowlog"
	"github.com/fusionwatch/fusionwatch/internal/store"
	"github.com/fusionwatch/fusionwatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Agent.Log.Level)}))
	slog.SetDefault(logger.With("run_id", uuid.NewString()))

	slog.Info("fusion-agent starting",
		"config", *configPath,
		"reader", cfg.Agent.Reader.Type,
		"poll_interval", cfg.Agent.PollInterval,
		"http_port", cfg.Server.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg); err != nil {
		slog.Error("fusion-agent stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("fusion-agent shut down")
}

func run(ctx context.Context, configPath string, cfg *config.Config) error {
	rd, err := reader.New(cfg.Agent)
	if err != nil {
		return err
	}
	act, err := actuator.New(cfg.Agent.Actuator)
	if err != nil {
		return err
	}

	// A result older than three poll intervals means the loop has stalled.
	st := store.New(cfg.Server.HistorySize, 3*cfg.Agent.PollInterval)
	m := metrics.New()
	hub := ws.New(st, cfg.Server.BroadcastInterval)

	g, gctx := errgroup.WithContext(ctx)

	var sinks []agent.Sink
	if !cfg.Agent.RowLog.Disabled {
		csvLog, err := rowlog.NewCSV(cfg.Agent.RowLog.Dir)
		if err != nil {
			return err
		}
		defer csvLog.Close()
		sinks = append(sinks, agent.Sink{Name: "csv", Logger: csvLog})
		slog.Info("row log enabled", "dir", cfg.Agent.RowLog.Dir)
	}

	// Remote sinks are drained by their own goroutines so a slow broker or
	// database never delays a cycle.
	queued := func(name string, l rowlog.Logger) {
		q := agent.NewQueue(name, l, agent.DefaultQueueSize, m.SinkError)
		g.Go(func() error { q.Run(gctx); return nil })
		sinks = append(sinks, agent.Sink{Name: name, Logger: q})
	}

	hist, err := history.New(ctx, cfg.Agent.History)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
		queued("history", history.Logger{Storage: hist})
		cleaner := history.NewCleaner(hist, cfg.Agent.History.Retention)
		g.Go(func() error { cleaner.Run(gctx); return nil })
		slog.Info("history enabled", "backend", cfg.Agent.History.Backend, "retention", cfg.Agent.History.Retention)
	}

	if mc := cfg.Agent.Publish.MQTT; mc.Broker != "" {
		mq, err := publish.NewMQTT(ctx, mc)
		if err != nil {
			return err
		}
		defer mq.Close()
		queued("mqtt", mq)
		slog.Info("mqtt publisher enabled", "broker", mc.Broker, "topic", mc.Topic)
	}

	if rc := cfg.Agent.Publish.Redis; rc.Addr != "" {
		rp, err := publish.NewRedis(ctx, rc)
		if err != nil {
			return err
		}
		defer rp.Close()
		queued("redis", rp)
		slog.Info("redis publisher enabled", "addr", rc.Addr, "prefix", rc.Prefix)
	}

	ag := agent.New(cfg.Agent.CycleOptions(), cfg.Agent.PollInterval, agent.Deps{
		Reader:   rd,
		Store:    st,
		Metrics:  m,
		Sinks:    sinks,
		Actuator: act,
		OnResult: func(*fusion.Result) { hub.Notify() },
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", api.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)(api.New(st, hist)))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return ag.Run(gctx) })
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(updated *config.Config) {
			ag.UpdateThresholds(updated.Agent.Thresholds)
			slog.Info("config hot-reloaded, thresholds queued for next cycle")
		})
		if err != nil {
			// Running without hot-reload is not fatal.
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
