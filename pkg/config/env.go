package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStoreBackend      = "STORE_BACKEND"
	EnvReputationBackend = "REPUTATION_BACKEND"
	EnvLockBackend       = "LOCK_BACKEND"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"
	EnvSingleInstance    = "SINGLE_INSTANCE"

	EnvNegotiationThreshold   = "NEGOTIATION_THRESHOLD"
	EnvDefaultReputation      = "DEFAULT_REPUTATION"
	EnvDefaultPriority        = "DEFAULT_PRIORITY"
	EnvPriorityTiers          = "PRIORITY_TIERS"
	EnvDispatchMaxConcurrency = "DISPATCH_MAX_CONCURRENCY"
	EnvDispatchTimeout        = "DISPATCH_TIMEOUT"

	EnvNotifyKafkaEnabled = "NOTIFY_KAFKA_ENABLED"
	EnvNotifyTopic        = "NOTIFY_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvIdempotencyBackend = "IDEMPOTENCY_BACKEND"
	EnvIdempotencyTTL     = "IDEMPOTENCY_TTL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCatalogFile = "CATALOG_FILE"
)
