package config

import "time"

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendLocal  = "local"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "labbroker"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort = "8080"

	DefaultLogLevel = "info"

	DefaultStoreBackend      = BackendMongo
	DefaultReputationBackend = BackendMemory
	// An empty lock backend follows the store: mongo locks for the mongo
	// store, local locks otherwise.
	DefaultLockBackend       = ""
	DefaultLockTTL           = 10 * time.Second
	DefaultLockRetryInterval = 50 * time.Millisecond

	DefaultNegotiationThreshold   = 8
	DefaultDefaultReputation      = 10
	DefaultDefaultPriority        = 3
	DefaultPriorityTiers          = "P=1,B=2"
	DefaultDispatchMaxConcurrency = 40
	DefaultDispatchTimeout        = 5 * time.Second

	DefaultNotifyTopic = "labbroker.events"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultIdempotencyBackend = BackendMemory
	DefaultIdempotencyTTL     = 24 * time.Hour

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultCatalogFile = "catalog.yaml"
)
