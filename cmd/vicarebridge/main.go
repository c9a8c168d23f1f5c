// ViCare Bridge
//
// This is the main entry point for the ViCare bridge. It polls Viessmann
// heating devices through the ViCare cloud API and exposes them as Home
// Assistant entities over MQTT:
//   - sensors, binary sensors, switches and buttons per data point
//   - climate entities per heating circuit
//   - a water heater per device with domestic hot water
//
// Usage:
//
//	vicarebridge                 run the bridge
//	vicarebridge token [flags]   print an API bearer token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	_ "github.com/nerrad567/vicare-bridge/migrations"

	"github.com/nerrad567/vicare-bridge/internal/api"
	bridge "github.com/nerrad567/vicare-bridge/internal/bridges/vicare"
	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/database"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/vicare-bridge/internal/registry"
	"github.com/nerrad567/vicare-bridge/internal/vicare"
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

const startupTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting ViCare bridge",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	log.Debug("effective configuration", "config", cfg.String())

	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("capability catalog: %w", err)
	}

	// Open database
	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	entityRegistry := registry.NewRegistry(registry.NewSQLiteRepository(db.DB))
	entityRegistry.SetLogger(log)
	if refreshErr := entityRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity registry: %w", refreshErr)
	}
	stats := entityRegistry.Stats()
	log.Info("entity registry initialised", "entities", stats.Entities, "devices", stats.Devices)

	vendor, err := newVendorClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating ViCare client: %w", err)
	}
	log.Info("ViCare client ready", "api_url", cfg.Vicare.APIURL, "heating_type", cfg.Vicare.HeatingType)

	// Connect to MQTT broker
	topics := mqtt.Topics{Prefix: cfg.Bridge.TopicPrefix, DiscoveryPrefix: cfg.Bridge.DiscoveryPrefix}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry bridge.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	vicareBridge, err := startBridge(ctx, cfg, vendor, mqttClient, entityRegistry, telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping ViCare bridge")
		vicareBridge.Stop()
	}()

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Bridge:   vicareBridge,
			Registry: entityRegistry,
			MQTT:     mqttClient,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridge, InfluxDB, MQTT, database.
	return nil
}

// newVendorClient builds the authenticated ViCare API client.
func newVendorClient(ctx context.Context, cfg *config.Config) (*vicare.Client, error) {
	timeout := cfg.GetVicareTimeout()
	ts, err := vicare.NewTokenSource(ctx, vicare.TokenSourceConfig{
		ClientID:   cfg.Vicare.ClientID,
		TokenURL:   cfg.Vicare.TokenURL,
		TokenFile:  cfg.Vicare.TokenFile,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	// The token source outlives startup, so it is not bound to ctx.
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = timeout

	return vicare.NewClient(vicare.Options{
		BaseURL:       cfg.Vicare.APIURL,
		HTTPClient:    httpClient,
		CacheDuration: cfg.GetCacheDuration(),
	})
}

// startBridge creates the bridge and runs its initial device discovery.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	vendor *vicare.Client,
	mqttClient *mqtt.Client,
	store *registry.Registry,
	telemetry bridge.Telemetry,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	dedup := logging.NewDeduplicator(log, cfg.GetDedupTimeout())

	b, err := bridge.NewBridge(bridge.Options{
		Config: bridge.Config{
			BridgeID:        cfg.MQTT.Broker.ClientID,
			Version:         version,
			HeatingType:     cfg.Vicare.HeatingType,
			ScanInterval:    cfg.GetScanInterval(),
			HealthInterval:  time.Duration(cfg.Bridge.HealthInterval) * time.Second,
			PollConcurrency: cfg.Bridge.PollConcurrency,
			Discovery:       cfg.Bridge.Discovery,
			Debug:           cfg.Vicare.Debug || log.DebugEnabled(),
		},
		Vendor:     vendor,
		MQTT:       mqttClient,
		Topics:     mqttClient.Topics(),
		Logger:     log.With("component", "bridge"),
		PollLogger: dedup,
		Registry:   store,
		Telemetry:  telemetry,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ViCare bridge: %w", err)
	}

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		b.OnReconnect()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := b.Start(startCtx); err != nil {
		b.Stop()
		return nil, fmt.Errorf("starting ViCare bridge: %w", err)
	}
	log.Info("ViCare bridge started", "devices", len(b.Devices()), "entities", len(b.Entities()))
	return b, nil
}

// getConfigPath returns the configuration file path.
// Uses VICARE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VICARE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// runToken prints a bearer token for the HTTP API, signed with the
// configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueToken(cfg.API.JWT.Secret, *subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
