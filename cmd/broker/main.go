package main

import (
	"context"
	"errors"
	"os"

	"labbroker/internal/agent"
	"labbroker/internal/catalog"
	"labbroker/internal/coordinator"
	"labbroker/internal/dispatch"
	"labbroker/internal/handler"
	"labbroker/internal/lock"
	"labbroker/internal/negotiation"
	"labbroker/internal/notify"
	"labbroker/internal/repository"
	"labbroker/internal/reputation"
	"labbroker/internal/scheduler"
	"labbroker/internal/validator"
	"labbroker/pkg/app"
	"labbroker/pkg/config"
	"labbroker/pkg/kafka"
	kafka_config "labbroker/pkg/kafka/config"
	kafka_middleware "labbroker/pkg/kafka/middleware"
)

const (
	ServiceName   = "labbroker"
	ReputationKey = "labbroker:reputation"
)

func main() {
	cfg := config.Load(ServiceName)
	if cfg.UsesMongo() {
		cfg.SetMongo()
	}
	if cfg.UsesRedis() {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	build(cfg).Run()
}

// build wires every component for the configured backends.
func build(cfg *config.Config) *app.Application {
	store := newStore(cfg)
	locker := newLocker(cfg)
	tracker := newTracker(cfg)
	v := validator.New(cfg.Log)
	registry := agent.NewRegistry(store, locker, v, cfg)
	seedMemoryCatalog(cfg, registry)

	hub := notify.NewHub(notify.DefaultBufferSize, cfg.Log)
	notifier, stopNotify := newNotifier(cfg, hub)

	sched := scheduler.New(store, locker, notifier, cfg)
	coord := coordinator.New(coordinator.Dependencies{
		Extractor:   coordinator.JSONExtractor{},
		Validator:   v,
		Registry:    registry,
		Dispatcher:  dispatch.NewDispatcher(dispatch.RegistrySource(registry), cfg.DispatchMaxConcurrency, cfg.DispatchTimeout, cfg.Log),
		Negotiation: negotiation.NewEngine(store, locker, tracker, nil, cfg),
		Scheduler:   sched,
		Reputation:  tracker,
		Notifier:    notifier,
	}, cfg)

	application := app.NewApplication(cfg)
	application.SetApp(
		handler.NewHealthHandler(cfg.Client, cfg.Log),
		handler.NewEventsHandler(hub, cfg.Log),
		handler.NewBrokerHandler(coord, sched, registry, cfg.Log),
	)
	application.OnShutdown(stopNotify)
	return application
}

func newStore(cfg *config.Config) repository.Store {
	if cfg.StoreBackend == config.BackendMongo {
		cfg.Log.Info("Using Mongo store", "database", cfg.MongoDatabaseName)
		return repository.NewMongoStore(cfg)
	}
	cfg.Log.Info("Using in-memory store")
	return repository.NewMemoryStore()
}

// newLocker always serializes in-process first so concurrent requests in
// one instance do not poll the shared backend.
func newLocker(cfg *config.Config) lock.Locker {
	local := lock.NewKeyedMutex()
	switch cfg.LockBackend {
	case config.BackendMongo:
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return lock.Chain(local, lock.NewMongoLocker(db, cfg.LockTTL, cfg.LockRetryInterval, cfg.Log))
	case config.BackendRedis:
		return lock.Chain(local, lock.NewRedisLocker(cfg.Client.Redis, cfg.LockTTL, cfg.LockRetryInterval, cfg.Log))
	default:
		return local
	}
}

func newTracker(cfg *config.Config) reputation.Tracker {
	if cfg.ReputationBackend == config.BackendRedis {
		return reputation.NewRedisTracker(cfg.Client.Redis, ReputationKey, cfg.DefaultReputation)
	}
	return reputation.NewMemoryTracker(cfg.DefaultReputation)
}

// seedMemoryCatalog loads the YAML catalog into a fresh in-memory store.
// Mongo deployments are seeded by the migrate job instead.
func seedMemoryCatalog(cfg *config.Config, registry *agent.Registry) {
	if cfg.StoreBackend != config.BackendMemory || cfg.CatalogFile == "" {
		return
	}
	if _, err := os.Stat(cfg.CatalogFile); errors.Is(err, os.ErrNotExist) {
		cfg.Log.Warn("Catalog file not found, starting with an empty catalog", "file", cfg.CatalogFile)
		return
	}
	resources, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog", "error", err)
	}
	if _, err := catalog.Seed(context.Background(), registry, resources, cfg.Log); err != nil {
		cfg.Log.Fatal("Failed to seed catalog", "error", err)
	}
}

// newNotifier delivers to the local hub directly, or through Kafka when
// enabled so every instance relays events to its own subscribers.
func newNotifier(cfg *config.Config, hub *notify.Hub) (notify.Notifier, func()) {
	if !cfg.NotifyKafkaEnabled {
		return hub, func() {}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotifyTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.NotifyTopic, notify.NewRelay(hub, cfg.Log).Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Kafka relay stopped", "error", err)
		}
	}()

	stop := func() {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
	return notify.NewKafkaNotifier(producer, ServiceName, cfg.Log), stop
}
