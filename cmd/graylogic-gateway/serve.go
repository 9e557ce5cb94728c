package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-gateway/internal/api"
	"github.com/nerrad567/gray-logic-gateway/internal/audit"
	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/redisstore"
	"github.com/nerrad567/gray-logic-gateway/internal/notify"
	"github.com/nerrad567/gray-logic-gateway/internal/placement"
	"github.com/nerrad567/gray-logic-gateway/internal/platform"
	"github.com/nerrad567/gray-logic-gateway/internal/platform/mock"
	"github.com/nerrad567/gray-logic-gateway/internal/platform/mqttbridge"
	"github.com/nerrad567/gray-logic-gateway/internal/telemetry"
	"github.com/nerrad567/gray-logic-gateway/internal/thing"
	"github.com/nerrad567/gray-logic-gateway/migrations"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway until interrupted",
		Long: `Run the gateway: load things and placements from the database, install
the enabled platform integrations and serve the REST and WebSocket API.

SIGINT or SIGTERM triggers a graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts.configPath)
		},
	}
}

// run is the gateway's lifecycle, separated from the command for
// testability. It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Token store and authority
	tokens, redisClient, err := openTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
	}
	if mem, ok := tokens.(*auth.MemoryTokenStore); ok && cfg.TokenTTL() > 0 {
		go mem.SweepLoop(ctx, cfg.TokenTTL())
	}
	log.Info("token store ready", "store", cfg.Security.Tokens.Store, "ttl", cfg.TokenTTL())

	authLog := log.Component("auth")
	users := auth.NewUserRepository(db.DB)
	if cfg.Security.SeedAdmin {
		if _, seedErr := auth.SeedAdmin(ctx, users, authLog); seedErr != nil {
			return fmt.Errorf("seeding admin: %w", seedErr)
		}
	}
	authority := auth.NewAuthority(users, tokens,
		auth.WithTTL(cfg.TokenTTL()),
		auth.WithLogger(authLog),
	)

	// Thing directory, loaded once from the database
	thingRepo := thing.NewSQLiteRepository(db.DB)
	records, err := thingRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading things: %w", err)
	}
	directory := thing.NewDirectory()
	directory.SetLogger(log.Component("things"))
	if loadErr := directory.Load(records); loadErr != nil {
		return fmt.Errorf("loading thing directory: %w", loadErr)
	}
	log.Info("thing directory initialised", "things", directory.Len())

	registry := platform.NewRegistry()
	registry.SetLogger(log.Component("platforms"))
	if cfg.Platforms.Mock.Enabled {
		registry.Install(mock.New())
	}

	// MQTT broker (optional)
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
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.Platforms.MQTT.Enabled {
		bridge := mqttbridge.New(mqttClient, cfg.Platforms.MQTT.Protocols, cfg.Platforms.MQTT.ThingTypes)
		bridge.SetLogger(log.Component("mqttbridge"))
		registry.Install(bridge)
		if startErr := bridge.Start(ctx, directory); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping MQTT bridge", "error", stopErr)
			}
		}()
	}
	log.Info("platforms installed", "builders", registry.Len())

	// InfluxDB (optional)
	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bus observers
	auditRepo := audit.NewSQLiteRepository(db.DB)
	observers := []notify.Observer{
		thing.NewStatePersister(thingRepo),
		audit.NewRecorder(auditRepo),
	}
	if mqttClient != nil {
		observers = append(observers, mqttbridge.NewStatePublisher(mqttClient))
	}
	if influxClient != nil {
		observers = append(observers, telemetry.NewRecorder(influxClient))
	}
	events := directory.Events()
	for _, o := range observers {
		if subErr := events.Subscribe(o); subErr != nil {
			return fmt.Errorf("subscribing %v: %w", o, subErr)
		}
		defer events.Unsubscribe(o)
	}

	gw, err := gateway.New(gateway.Deps{
		Authority:  authority,
		Things:     directory,
		Placements: placement.NewSQLiteRepository(db.DB),
		Builders:   registry,
		Audit:      auditRepo,
		Logger:     log.Component("gateway"),
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	apiDeps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.Component("api"),
		Gateway:  gw,
		Events:   events,
		BusStats: directory.BusStats,
		DB:       db.DB,
		Things:   directory.Len,
		Version:  version,
	}
	if influxClient != nil {
		apiDeps.TelemetryErrors = influxClient.WriteErrors
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, redisClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, bus observers,
	// InfluxDB, MQTT bridge, MQTT, Redis, database.

	log.Info("Gray Logic Gateway stopped")
	return nil
}

// openTokenStore returns the configured token store. The Redis client is
// non-nil only for the redis store; the caller closes it.
func openTokenStore(ctx context.Context, cfg *config.Config) (auth.TokenStore, *redisstore.Client, error) {
	if cfg.Security.Tokens.Store != config.TokenStoreRedis {
		return auth.NewMemoryTokenStore(), nil, nil
	}
	client, err := redisstore.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	return auth.NewRedisTokenStore(client), client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients that are nil are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, redisClient *redisstore.Client) error {
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

	if redisClient != nil {
		if err := redisClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}
