package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"

	"calrss/internal/config"
	"calrss/internal/feed"
	"calrss/internal/ics"
	appLog "calrss/internal/log"
	"calrss/internal/store"
	"calrss/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(zapcore.DebugLevel)
	}
	defer appLog.Sync()

	appLog.Info("calrss starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config/env listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"sources", len(conf.Sources),
		"policy", conf.Policy,
		"window_filter", conf.WindowFilter,
		"look_ahead_days", conf.LookAheadDays,
		"expand_recurring", conf.ExpandRecurring,
		"cache_ttl", conf.TTL().String(),
		"durable_cache", conf.DatabaseURL != "",
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Result cache: postgres when configured, else process-local.
	var st store.Store
	if conf.DatabaseURL != "" {
		pg, err := store.OpenPostgres(conf.DatabaseURL)
		if err != nil {
			appLog.Error("failed to open feed cache database", err)
			os.Exit(1)
		}
		defer pg.Close()
		st = pg
	} else {
		appLog.Info("no DATABASE_URL set; feed cache will not survive restarts")
		st = store.NewMemory()
	}

	gen := feed.NewGenerator(conf, ics.NewFetcher())

	if flags.once {
		if err := web.Refresh(ctx, st, gen); err != nil {
			appLog.Error("one-shot refresh failed", err)
			os.Exit(1)
		}
		appLog.Info("one-shot refresh completed")
		return
	}

	// Optional cron pre-warming of the cache.
	if conf.RefreshCron != "" {
		c := cron.New()
		_, err := c.AddFunc(conf.RefreshCron, func() {
			if err := web.Refresh(ctx, st, gen); err != nil {
				appLog.Error("scheduled refresh failed", err)
			}
		})
		if err != nil {
			appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	if err := web.StartServer(ctx, conf, st, gen); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}
	appLog.Info("calrss exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to YAML config file (optional; env vars override)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Generate the feed once, store it, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
