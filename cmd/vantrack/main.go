// VanTrack Core - Vehicle Telematics Gateway
//
// This is the main entry point for the VanTrack Core daemon. It keeps an
// authenticated session with the telematics cloud, polls the change feed,
// maintains the in-memory device registry, and bridges state and commands
// to the host framework over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/vantrack/vantrack-core/migrations"

	"github.com/vantrack/vantrack-core/internal/account"
	"github.com/vantrack/vantrack-core/internal/cloud"
	"github.com/vantrack/vantrack-core/internal/infrastructure/config"
	"github.com/vantrack/vantrack-core/internal/infrastructure/database"
	"github.com/vantrack/vantrack-core/internal/infrastructure/influxdb"
	"github.com/vantrack/vantrack-core/internal/infrastructure/logging"
	"github.com/vantrack/vantrack-core/internal/infrastructure/mqtt"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting VanTrack Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open the session cache database
	db, err := database.Open(database.Config{
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
	log.Info("database ready", "path", cfg.Database.Path)

	// Cloud session, preferring a cached login over a fresh one
	sess, err := cloud.NewSession(cfg, log)
	if err != nil {
		return fmt.Errorf("creating cloud session: %w", err)
	}
	defer sess.Close()

	store := cloud.NewSessionStore(db)
	restoreSession(ctx, sess, store, cfg, log)

	api := cloud.NewAPI(cfg, sess, log)
	acct := account.New(cfg, api, log)

	// The first enumeration doubles as session validation: an expired
	// cached session surfaces here, and one login fixes it.
	if err := acct.RefreshDevices(ctx); err != nil {
		if !errors.Is(err, cloud.ErrAuthFailed) {
			return fmt.Errorf("refreshing devices: %w", err)
		}
		log.Info("cached session rejected, logging in")
		if err := acct.Authenticate(ctx); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
		if err := acct.RefreshDevices(ctx); err != nil {
			return fmt.Errorf("refreshing devices: %w", err)
		}
	}
	saveSession(ctx, sess, store, cfg, log)
	log.Info("account ready", "devices", len(acct.Devices()))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
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
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bridge the account to the host framework
	if mqttClient != nil || influxClient != nil {
		b := newBridge(ctx, acct, mqttClient, influxClient, byte(cfg.MQTT.QoS), log)
		if err := b.start(); err != nil {
			return fmt.Errorf("starting bridge: %w", err)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Prime the registry before the first timer interval elapses.
	acct.PollNow()

	log.Info("initialisation complete, polling")
	if err := acct.Run(ctx); err != nil {
		return fmt.Errorf("poll loop: %w", err)
	}

	// Persist whatever session the cloud last issued so the next start
	// can resume it.
	saveSession(context.WithoutCancel(ctx), sess, store, cfg, log)

	log.Info("VanTrack Core stopped")
	return nil
}

// restoreSession loads a cached login into the session, if one exists.
// Every failure here is recoverable: worst case the daemon logs in fresh.
func restoreSession(ctx context.Context, sess *cloud.Session, store *cloud.SessionStore, cfg *config.Config, log *logging.Logger) {
	blob, err := store.Load(ctx, cfg.Cloud.Username)
	if errors.Is(err, cloud.ErrNoSession) {
		log.Info("no cached session")
		return
	}
	if err != nil {
		log.Warn("session cache unavailable", "error", err)
		return
	}
	if err := sess.RestoreCookies(blob); err != nil {
		log.Warn("cached session unusable", "error", err)
		return
	}
	log.Info("cached session restored")
}

// saveSession persists the current session cookies.
func saveSession(ctx context.Context, sess *cloud.Session, store *cloud.SessionStore, cfg *config.Config, log *logging.Logger) {
	blob, err := sess.ExportCookies()
	if err != nil {
		log.Warn("exporting session failed", "error", err)
		return
	}
	if err := store.Save(ctx, cfg.Cloud.Username, blob); err != nil {
		log.Warn("caching session failed", "error", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses VANTRACK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VANTRACK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
