package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beacons-sync/internal/bridge"
	"beacons-sync/internal/config"
	"beacons-sync/internal/database/influx"
	"beacons-sync/internal/database/postgres"
	"beacons-sync/internal/database/postgres/listeners"
	"beacons-sync/internal/database/postgres/repositories"
	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/logger"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/handlers"
	"beacons-sync/internal/services"

	"github.com/rs/zerolog/log"
)

type Application struct {
	config *config.Config

	postgresDB      *postgres.PostgresDB
	listenerManager *listeners.ListenerManager
	influxDB        *influx.InfluxDB

	regionRepository *repositories.RegionRepository

	bridge            bridge.Manager
	beaconListService *services.BeaconListService
	regionService     *services.RegionService

	mqttClient   interfaces.IMqClient
	topicManager interfaces.ITopicManager
	router       *mq.Router
	subscriber   *mq.Subscriber

	shutdownChan chan os.Signal
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func main() {
	app := &Application{}

	if err := app.initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := app.run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func (app *Application) initialize() error {
	var err error

	app.config, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.NewLogger(app.config.Logger)
	log.Info().
		Str("component", "main").
		Str("service", app.config.Service.Name).
		Str("version", app.config.Service.Version).
		Str("platform", app.config.Beacon.Platform).
		Str("device_id", app.config.Beacon.DeviceID).
		Msg("Setting up service...")

	app.ctx, app.cancelFunc = context.WithCancel(context.Background())
	app.shutdownChan = make(chan os.Signal, 1)
	signal.Notify(app.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.initializeDatabases(); err != nil {
		return fmt.Errorf("error while initialize databases: %w", err)
	}

	if err := app.initializeMQTT(); err != nil {
		return fmt.Errorf("error while initializing MQTT: %w", err)
	}

	app.initializeRepositories()

	if err := app.initializeServices(); err != nil {
		return fmt.Errorf("error while initializing services: %w", err)
	}

	if err := app.setupTableListeners(); err != nil {
		return fmt.Errorf("error while setting up table listeners: %w", err)
	}

	if err := app.setupTopicHandlers(); err != nil {
		return fmt.Errorf("error while setting up topic handlers: %w", err)
	}

	if err := app.restoreRegions(); err != nil {
		return fmt.Errorf("error while restoring regions: %w", err)
	}

	log.Info().Msg("Successfully initialized application")
	return nil
}

func (app *Application) initializeDatabases() error {
	var err error

	app.postgresDB, err = postgres.NewConnection(app.config.Postgres)
	if err != nil {
		return fmt.Errorf("could not connect to PostgreSQL: %w", err)
	}

	app.influxDB, err = influx.NewConnection(app.config.InfluxDB, logger.GetLogger("influxdb"))
	if err != nil {
		return fmt.Errorf("could not connect to InfluxDB: %w", err)
	}

	log.Info().
		Str("component", "main").
		Str("host", app.config.Postgres.Host).
		Msg("Successfully initialized databases")
	return nil
}

func (app *Application) initializeMQTT() error {
	app.topicManager = mq.NewTopicManager(app.config.MQTT.BaseTopic)
	app.mqttClient = mq.NewClient(app.config.MQTT, logger.GetLogger("mq-client"))

	connectCtx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	if err := app.mqttClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect to MQTT broker: %w", err)
	}

	log.Info().
		Str("component", "main").
		Str("broker", app.config.MQTT.GetUrl()).
		Msg("Successfully initialized MQTT client")
	return nil
}

func (app *Application) initializeRepositories() {
	app.regionRepository = repositories.NewRegionRepository(app.postgresDB.GetDB())

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized repositories")
}

func (app *Application) initializeServices() error {
	var err error

	app.bridge, err = bridge.New(
		bridge.Platform(app.config.Beacon.Platform),
		app.config.Beacon.DeviceID,
		app.mqttClient,
		app.topicManager,
		logger.GetLogger("bridge"),
	)
	if err != nil {
		return fmt.Errorf("could not create bridge: %w", err)
	}

	app.beaconListService = services.NewBeaconListService(
		app.mqttClient,
		app.topicManager,
		influx.NewObservationWriter(app.influxDB.GetWriteAPI(), logger.GetLogger("observation-writer")),
		app.config.Service.TimeFormat,
		logger.GetLogger("beacon-list-service"),
	)

	app.regionService = services.NewRegionService(
		app.regionRepository,
		app.bridge,
		app.config.Beacon,
		logger.GetLogger("region-service"),
	)

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized services")
	return nil
}

func (app *Application) setupTableListeners() error {
	app.listenerManager = listeners.NewListenerManager(
		app.postgresDB.GetDB(),
		app.postgresDB.GetDsn(),
		app.config.Service.HandlerTimeout,
		logger.GetLogger("listener-manager"),
	)

	regionListener := listeners.NewRegionTableListener(
		logger.GetLogger("region-listener"),
		app.mqttClient,
		app.topicManager,
		app.regionService,
	)
	if err := app.listenerManager.RegisterListener(regionListener); err != nil {
		return fmt.Errorf("failed to register region listener: %w", err)
	}

	if err := app.listenerManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize listener manager: %w", err)
	}

	app.listenerManager.Start()

	log.Info().Msg("All table listeners initialized and started")
	return nil
}

func (app *Application) setupTopicHandlers() error {
	app.router = mq.NewRouter(logger.GetLogger("router"))

	rangingHandler := handlers.NewRangingHandler(app.topicManager, app.beaconListService, logger.GetLogger("ranging-handler"))
	enterHandler := handlers.NewMonitorEnterHandler(app.topicManager, app.beaconListService, logger.GetLogger("monitor-handler"))
	exitHandler := handlers.NewMonitorExitHandler(app.topicManager, app.beaconListService, logger.GetLogger("monitor-handler"))
	statusHandler := handlers.NewStatusHandler(app.topicManager, app.regionService, app.beaconListService, logger.GetLogger("status-handler"))
	regionHandler := handlers.NewRegionControlHandler(app.topicManager, app.regionService, logger.GetLogger("region-control-handler"))

	app.router.RegisterHandler(rangingHandler.Topic(), rangingHandler)
	app.router.RegisterHandler(enterHandler.Topic(), enterHandler)
	app.router.RegisterHandler(exitHandler.Topic(), exitHandler)
	app.router.RegisterHandler(statusHandler.Topic(), statusHandler)
	app.router.RegisterHandler(regionHandler.Topic(), regionHandler)

	app.subscriber = mq.NewSubscriber(
		app.mqttClient,
		app.router,
		app.config.Service.HandlerTimeout,
		logger.GetLogger("subscriber"),
	)
	if err := app.subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("error subscribing to beacon topics: %w", err)
	}

	return nil
}

func (app *Application) restoreRegions() error {
	ctx, cancel := context.WithTimeout(app.ctx, app.config.Service.HandlerTimeout)
	defer cancel()

	if err := app.regionService.Bootstrap(ctx); err != nil {
		return err
	}

	return app.regionService.Restore(ctx, app.regionService.DeviceID())
}

func (app *Application) run() error {
	select {
	case sig := <-app.shutdownChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-app.ctx.Done():
		log.Info().Msg("context cancelled, shutting down application")
	}

	return app.shutdown()
}

func (app *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Service.ShutdownTimeout)
	defer cancel()

	var errs []error

	if app.regionService != nil {
		if err := app.regionService.StopAll(ctx); err != nil {
			log.Error().Err(err).Msg("Error stopping regions on device")
			errs = append(errs, err)
		}
	}

	if app.listenerManager != nil {
		app.listenerManager.Stop()
	}

	if app.mqttClient != nil {
		app.mqttClient.Disconnect(ctx)
	}

	if app.influxDB != nil {
		app.influxDB.Close()
	}

	if app.postgresDB != nil {
		if err := app.postgresDB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing PostgreSQL connection")
			errs = append(errs, err)
		}
	}

	app.cancelFunc()

	log.Info().Msg("Shutdown complete")
	return errors.Join(errs...)
}
