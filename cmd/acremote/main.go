// acremote keeps an MQTT-connected air-conditioner remote in sync with the
// unit it controls.
//
// It connects to the broker, waits for the unit to announce itself on its
// retained ready topic, and only then reports the link as fully connected.
// Status changes are logged, stored in SQLite and optionally exported to
// InfluxDB. With the console enabled an interactive prompt drives the link.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Gowrisankar10354/ac-remote-final/migrations"

	"github.com/Gowrisankar10354/ac-remote-final/internal/history"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/database"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/influxdb"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/logging"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/mqtt"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"

	// shutdownTimeout bounds the clean MQTT disconnect on exit.
	shutdownTimeout = 3 * time.Second

	// startupCheckTimeout bounds the infrastructure health check.
	startupCheckTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Default()
	log.Info("starting acremote",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := config.LoadEnvFile(getEnvFilePath()); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The console must exist before the real logger so log lines can be
	// routed around the prompt.
	var con *console
	if cfg.Console.Enabled {
		con, err = newConsole(cfg.Console, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("starting console: %w", err)
		}
		log = logging.NewWithWriter(con.Stderr(), cfg.Logging, version)
	} else {
		log = logging.New(cfg.Logging, version)
	}
	log.Info("configuration loaded",
		"path", configPath,
		"device_id", cfg.Device.ID,
		"level", cfg.Logging.Level,
	)

	// History (optional)
	var (
		db       *database.DB
		repo     *history.SQLiteRepository
		recorder *history.Recorder
	)
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}

		repo = history.NewSQLiteRepository(db.DB)
		if retention := cfg.GetRetention(); retention > 0 {
			pruned, pruneErr := repo.Prune(ctx, retention)
			if pruneErr != nil {
				log.Warn("pruning link history failed", "error", pruneErr)
			} else if pruned > 0 {
				log.Info("pruned link history", "rows", pruned, "retention", retention)
			}
		}

		recorder = history.NewRecorder(repo, cfg.Device.ID, log.With("component", "history"), history.DefaultBuffer)
		defer recorder.Close()
		log.Info("link history enabled", "path", cfg.Database.Path)
	} else {
		log.Info("link history disabled")
	}

	// Metrics (optional)
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := startupCheck(ctx, db, influx); err != nil {
		return fmt.Errorf("startup health check: %w", err)
	}

	// Link
	transport := mqtt.New(cfg.MQTT)
	transport.SetLogger(log.With("component", "mqtt"))

	ctrl, err := link.New(link.Options{
		Transport: transport,
		Topics: link.Topics{
			Command: cfg.Device.Topics.Command,
			Status:  cfg.Device.Topics.Status,
			Ready:   cfg.Device.Topics.Ready,
		},
		ReadyTimeout: cfg.Device.ReadyTimeout,
		QoS:          byte(cfg.Device.QoS), // #nosec G115 -- validated 0..2
		OnStatus:     statusFanout(cfg.Device.ID, recorder, influx, con),
		OnData:       dataSink(log, con),
		Logger:       log.With("component", "link", "device_id", cfg.Device.ID),
	})
	if err != nil {
		return fmt.Errorf("creating link controller: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		ctrl.Disconnect()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer waitCancel()
		if waitErr := transport.WaitIdle(waitCtx); waitErr != nil {
			log.Warn("MQTT disconnect did not finish", "error", waitErr)
		}
	}()

	if cfg.Device.ConnectOnStart {
		log.Info("connecting to MQTT broker",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		ctrl.Connect()
	}

	if con != nil {
		var reader historyReader
		if repo != nil {
			reader = repo
		}
		con.attach(ctrl, reader, healthChecks(ctrl, transport, db, influx))
		con.Run(ctx, cancel)
	} else {
		log.Info("running headless")
		<-ctx.Done()
	}

	log.Info("shutting down")
	return nil
}

// statusFanout delivers each status notification to every enabled sink.
// Nil sinks are skipped.
func statusFanout(deviceID string, recorder *history.Recorder, influx *influxdb.Client, con *console) link.StatusListener {
	return func(s link.Status) {
		if recorder != nil {
			recorder.Observe(s)
		}
		if influx != nil {
			influx.WriteLinkStatus(deviceID, s)
		}
		if con != nil {
			con.printStatus(s)
		}
	}
}

// dataSink handles payloads from the device's status topic.
func dataSink(log *logging.Logger, con *console) link.DataListener {
	return func(payload []byte) {
		log.Debug("device data received", "bytes", len(payload))
		if con != nil {
			con.printData(payload)
		}
	}
}

// healthChecker is implemented by every component with a HealthCheck.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// namedCheck pairs a component name with its health check.
type namedCheck struct {
	name  string
	check healthChecker
}

// healthChecks lists the checks the console's health command runs.
func healthChecks(ctrl *link.Controller, transport *mqtt.Transport, db *database.DB, influx *influxdb.Client) []namedCheck {
	checks := []namedCheck{
		{name: "mqtt", check: transport},
		{name: "device", check: ctrl},
	}
	if db != nil {
		checks = append(checks, namedCheck{name: "database", check: db})
	}
	if influx != nil {
		checks = append(checks, namedCheck{name: "influxdb", check: influx})
	}
	return checks
}

// startupCheck verifies local infrastructure before the link starts.
// The broker and device are excluded: they are expected to come and go.
func startupCheck(ctx context.Context, db *database.DB, influx *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	var errs []error
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

// getConfigPath returns the configuration file path.
// Checks ACREMOTE_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("ACREMOTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// getEnvFilePath returns the dotenv file loaded before the configuration.
func getEnvFilePath() string {
	if path := os.Getenv("ACREMOTE_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvFile
}
