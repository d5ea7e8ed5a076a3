// Package main implements the core service daemon's entry point.
//
// The startup sequence follows the same layered approach the control API
// and recorder packages assume:
//  1. Load and validate configuration
//  2. Initialize structured logging
//  3. Core services: device probe, broker client
//  4. Distribution: event bus
//  5. Managers: ingest supervisor, recorder coordinator
//  6. API: WebSocket control server, HTTP health server
//
// Shutdown reverses this order so the control surfaces stop accepting new
// work before the components they depend on are torn down.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/r58io/core-service/internal/apiserver"
	"github.com/r58io/core-service/internal/broker"
	"github.com/r58io/core-service/internal/common"
	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/health"
	"github.com/r58io/core-service/internal/ingest"
	"github.com/r58io/core-service/internal/logging"
	"github.com/r58io/core-service/internal/probe"
	"github.com/r58io/core-service/internal/recorder"
	"github.com/r58io/core-service/internal/security"
)

// namedStoppable adapts an arbitrary shutdown closure to common.Stoppable so
// the daemon's teardown sequence can run through a single uniform loop
// instead of a hand-written block per component.
type namedStoppable struct {
	name string
	fn   func(context.Context) error
}

func (n namedStoppable) Stop(ctx context.Context) error { return n.fn(ctx) }

// variantAdapter bridges internal/ingest.Supervisor's VariantFor (returning
// ingest.Variant) to internal/recorder.VariantLookup (expecting
// recorder.Variant). The two packages deliberately never import each
// other's types, so the two Variant types are distinct despite sharing an
// underlying representation; this is the one place that reconciles them.
type variantAdapter struct {
	supervisor *ingest.Supervisor
}

func (a variantAdapter) VariantFor(cameraID string) (recorder.Variant, bool) {
	v, ok := a.supervisor.VariantFor(cameraID)
	return recorder.Variant(v), ok
}

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to the YAML configuration file")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	loader := config.NewConfigLoader()
	cfg, err := loader.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *dumpConfig {
		if err := config.DumpEffectiveConfig(os.Stdout, cfg); err != nil {
			log.Fatalf("failed to dump configuration: %v", err)
		}
		return
	}

	if err := logging.SetupLogging(&logging.LoggingConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		MaxFileSize:    cfg.Logging.MaxFileSize,
		BackupCount:    cfg.Logging.BackupCount,
		ConsoleEnabled: cfg.Logging.ConsoleEnabled,
	}); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	logger := logging.GetLogger("coreserviced")
	logger.Info("starting core service")

	configWatcher, err := config.NewConfigWatcher(*configPath, func(newCfg *config.Config) error {
		return logging.SetupLogging(&logging.LoggingConfig{
			Level:          newCfg.Logging.Level,
			Format:         newCfg.Logging.Format,
			FileEnabled:    newCfg.Logging.FileEnabled,
			FilePath:       newCfg.Logging.FilePath,
			MaxFileSize:    newCfg.Logging.MaxFileSize,
			BackupCount:    newCfg.Logging.BackupCount,
			ConsoleEnabled: newCfg.Logging.ConsoleEnabled,
		})
	})
	if err != nil {
		logger.WithError(err).Warn("failed to create configuration watcher, hot reload disabled")
	} else if err := configWatcher.Start(); err != nil {
		logger.WithError(err).Warn("failed to start configuration watcher, hot reload disabled")
		configWatcher = nil
	}

	prober := probe.New(probe.ModeIoctl, logging.GetLogger("probe"))
	brokerClient := broker.NewClient(cfg.Broker, logging.GetLogger("broker"))
	brokerMonitor := broker.NewHealthMonitor(brokerClient, cfg.Broker.Timeout, logging.GetLogger("broker.health"))

	// supervisor and coordinator are referenced by bus's snapshot closure
	// before they exist, and the bus itself is a constructor argument to
	// supervisor. eventbus.New calls the closure once while constructing the
	// bus, before the assignments below, so the closure skips whichever of
	// the two is still nil.
	var supervisor *ingest.Supervisor
	var coordinator *recorder.Coordinator

	bus := eventbus.New(cfg.EventBus, func() map[string]interface{} {
		snap := map[string]interface{}{}
		if supervisor != nil {
			snap["cameras"] = supervisor.Status()
		}
		if coordinator != nil {
			snap["session"] = coordinator.Status()
		}
		return snap
	}, logging.GetLogger("eventbus"))

	supervisor = ingest.NewSupervisor(cfg.Ingest, cfg.Cameras, prober, brokerClient.PreviewURL, bus, logging.GetLogger("ingest"))
	coordinator = recorder.NewCoordinator(cfg.Recorder, variantAdapter{supervisor: supervisor}, supervisor, brokerClient, bus, logging.GetLogger("recorder"))

	jwtHandler, err := security.NewJWTHandler(cfg.Security.JWTSecretKey, logging.GetLogger("security"))
	if err != nil {
		logger.WithError(err).Fatal("failed to create JWT handler")
	}
	if cfg.Security.RateLimitRequests > 0 {
		jwtHandler.SetRateLimit(int64(cfg.Security.RateLimitRequests), cfg.Security.RateLimitWindow)
	}

	apiSrv := apiserver.NewServer(cfg.Server, jwtHandler, supervisor, coordinator, bus, logging.GetLogger("apiserver"))

	healthAggregator := health.NewAggregator()
	healthAggregator.Register("broker", brokerMonitor.ComponentStatus)
	healthAggregator.Register("ingest", func() health.ComponentStatus {
		status := health.StatusHealthy
		for _, cam := range supervisor.Status() {
			if cam.State == ingest.StateError {
				status = health.StatusDegraded
			}
		}
		return health.ComponentStatus{Name: "ingest", Status: status, UpdatedAt: time.Now()}
	})
	healthAggregator.Register("recorder", func() health.ComponentStatus {
		return health.ComponentStatus{Name: "recorder", Status: health.StatusHealthy, UpdatedAt: time.Now()}
	})

	healthServer, err := health.NewHTTPHealthServer(&cfg.HTTPHealth, healthAggregator, logging.GetLogger("health"))
	if err != nil {
		logger.WithError(err).Fatal("failed to create HTTP health server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.StartAll(ctx); err != nil {
		logger.WithError(err).Warn("one or more cameras failed to start at boot")
	}
	supervisor.StartHealthLoop(ctx)
	brokerMonitor.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return apiSrv.Start(groupCtx) })
	group.Go(func() error { return healthServer.Start(groupCtx) })

	logger.Info("core service started")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping services")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	shutdownSequence := []namedStoppable{
		{name: "config.watcher", fn: func(ctx context.Context) error {
			if configWatcher == nil {
				return nil
			}
			return configWatcher.Stop()
		}},
		{name: "broker.health", fn: func(ctx context.Context) error {
			brokerMonitor.Stop()
			return nil
		}},
		{name: "recorder.session", fn: func(ctx context.Context) error {
			_, err := coordinator.StopSession(ctx, "")
			return err
		}},
		{name: "ingest.pipelines", fn: supervisor.StopAll},
		{name: "ingest.supervisor", fn: func(ctx context.Context) error {
			supervisor.Shutdown()
			return nil
		}},
		{name: "broker.client", fn: func(ctx context.Context) error {
			return brokerClient.Close()
		}},
	}

	for _, svc := range shutdownSequence {
		if err := common.StopWithTimeout(svc, shutdownTimeout); err != nil {
			logger.WithField("component", svc.name).WithError(err).Warn("component failed to stop cleanly during shutdown")
		}
	}

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
	logger.Info("core service stopped")
}
