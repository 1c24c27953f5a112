package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/netmond/internal/api"
	"github.com/dmdmdm-nz/netmond/internal/config"
	"github.com/dmdmdm-nz/netmond/internal/netmon"
	"github.com/dmdmdm-nz/netmond/internal/runtime"
	"github.com/dmdmdm-nz/netmond/pkg/cli"
)

func main() {
	flags := cli.ParseFlags()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	applyOverrides(&cfg, flags)

	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: Host=%s", cfg.Host)
	log.Infof("Config: Port=%d", cfg.Port)
	log.Infof("Config: LogLevel=%s", cfg.LogLevel)
	log.Infof("Config: ProbeTimeout=%s", cfg.ProbeTimeout())
	log.Infof("Config: ReconcileInterval=%s", cfg.ReconcileInterval())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	monitor := netmon.NewMonitor(netmon.Config{
		ReconcileInterval: cfg.ReconcileInterval(),
		Probe: netmon.ProberConfig{
			Timeout:   cfg.ProbeTimeout(),
			CacheSize: cfg.Probe.CacheSize,
			CacheTTL:  cfg.ProbeCacheTTL(),
		},
		Workers:    cfg.Probe.Workers,
		QueueDepth: cfg.Probe.QueueDepth,
	})
	apiSvc := api.NewService(cfg.Host, cfg.Port)

	// Wire before starting so the API never sees a nil monitor.
	apiSvc.AttachMonitor(monitor)

	super := runtime.NewSupervisor()
	super.Add("monitor", func(ctx context.Context) error { return monitor.Start(ctx) }, monitor.Close)
	super.Add("api", func(ctx context.Context) error { return apiSvc.Start(ctx) }, apiSvc.Close)

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("supervisor start failed")
		os.Exit(1)
	}
	if err := super.Wait(ctx); err != nil {
		log.WithError(err).Error("supervisor wait failed")
		os.Exit(1)
	}
}

func applyOverrides(cfg *config.Config, flags *cli.Flags) {
	if flags.Host != "" {
		cfg.Host = flags.Host
	}
	if flags.Port != 0 {
		cfg.Port = flags.Port
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
