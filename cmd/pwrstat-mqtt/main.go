// pwrstat-mqtt publishes CyberPower UPS status to an MQTT broker.
//
// It reads the UPS state with the pwrstat CLI on a fixed interval and
// publishes each snapshot as a JSON object to one topic. The broker
// connection is fail-soft: outages are logged and retried once per
// interval, and the process keeps running until it receives a signal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/karolbe/ha-cp-ups/internal/history"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/config"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/database"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/influxdb"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/logging"
	"github.com/karolbe/ha-cp-ups/internal/infrastructure/mqtt"
	"github.com/karolbe/ha-cp-ups/internal/process"
	"github.com/karolbe/ha-cp-ups/internal/publisher"
	"github.com/karolbe/ha-cp-ups/internal/ups"
	"github.com/karolbe/ha-cp-ups/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	configFlag := flag.String("config", "", "path to config file (default $PWRSTAT_CONFIG or "+defaultConfigPath+")")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(*configFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Broker failures never end it; only configuration and local storage
// errors do.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting pwrstat-mqtt",
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	source := ups.NewSource(cfg.Status, log.With("component", "ups"))

	if cfg.Status.Daemon.Managed {
		daemon, startErr := startDaemon(ctx, cfg.Status.Daemon, source, log)
		if startErr != nil {
			return fmt.Errorf("starting pwrstatd: %w", startErr)
		}
		defer func() {
			st := daemon.Stats()
			log.Info("stopping pwrstatd", "status", st.Status, "uptime", st.Uptime, "restarts", st.RestartCount)
			if stopErr := daemon.Stop(); stopErr != nil {
				log.Error("error stopping pwrstatd", "error", stopErr)
			}
		}()
	}

	var observers []publisher.Observer

	if cfg.Database.Enabled {
		db, openErr := openHistory(ctx, cfg.Database)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("publish history enabled",
			"path", cfg.Database.Path,
			"retention", cfg.Database.Retention(),
		)

		repo := history.NewSQLiteRepository(db.DB)
		observers = append(observers,
			history.NewRecorder(repo, cfg.Database.Retention(), nil, log.With("component", "history")))
	}

	if cfg.InfluxDB.Enabled {
		// Telemetry is optional; an unreachable server does not stop publishing.
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			log.Warn("InfluxDB unavailable, continuing without it", "error", connErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
			observers = append(observers, influxObserver{client: influxClient})
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	session := mqtt.NewSession(cfg.MQTT, mqtt.WithLogger(log.With("component", "mqtt")))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT session configured",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", session.ClientID(),
		"auth", session.AuthEnabled(),
		"topic", cfg.MQTT.Topic,
	)

	// The first tick connects; failures are retried once per interval.
	loop := publisher.NewLoop(session, source, publisher.ConfigFrom(cfg.MQTT),
		publisher.WithLogger(log.With("component", "publisher")),
		publisher.WithObservers(observers...),
	)
	loop.Run(ctx)

	log.Info("shutdown signal received, cleaning up")
	log.Info("pwrstat-mqtt stopped")
	return nil
}

// getConfigPath resolves the configuration file path: the -config flag,
// then PWRSTAT_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("PWRSTAT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openHistory opens and migrates the publish history database.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

// startDaemon starts pwrstatd under supervision. The daemon is considered
// hung when the pwrstat CLI cannot talk to it at all; an answer without UPS
// fields still counts as healthy.
func startDaemon(ctx context.Context, cfg config.DaemonConfig, source *ups.Source, log *logging.Logger) (*process.Manager, error) {
	procCfg := process.ConfigFrom(cfg)
	procCfg.HealthCheckFunc = func(ctx context.Context) error {
		if _, err := source.Read(ctx); errors.Is(err, ups.ErrCommandFailed) {
			return err
		}
		return nil
	}

	manager := process.NewManager(procCfg)
	manager.SetLogger(log.With("component", "pwrstatd"))

	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("pwrstatd started", "pid", manager.PID(), "binary", cfg.Binary)
	return manager, nil
}

// influxObserver writes every publish cycle, and every published snapshot,
// to InfluxDB.
type influxObserver struct {
	client *influxdb.Client
}

// Observe implements publisher.Observer.
func (o influxObserver) Observe(_ context.Context, c publisher.Cycle) {
	o.client.WriteCycle(c.Topic, c.Result.String(), c.At)
	if c.Result.Published() {
		o.client.WriteStatus(c.Snapshot, c.At)
	}
}
