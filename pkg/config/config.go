package config

import (
	"fmt"
	"labbroker/pkg/client"
	"labbroker/pkg/logger"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	StoreBackend      string
	ReputationBackend string
	LockBackend       string
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	// SingleInstance allows process-local locks over a shared store.
	SingleInstance bool

	NegotiationThreshold   int
	DefaultReputation      int
	DefaultPriority        int
	PriorityTiers          map[string]int
	DispatchMaxConcurrency int
	DispatchTimeout        time.Duration

	NotifyKafkaEnabled bool
	NotifyTopic        string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	IdempotencyBackend string
	IdempotencyTTL     time.Duration

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CatalogFile string

	Log    *logger.Logger
	Client *client.Client

	priorityTiersRaw string
	priorityTiersErr error
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		StoreBackend:      strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),
		ReputationBackend: strings.ToLower(getEnvStr(EnvReputationBackend, DefaultReputationBackend)),
		LockTTL:           getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockRetryInterval: getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),
		SingleInstance:    getEnvBool(EnvSingleInstance, false),

		NegotiationThreshold:   getEnvNum(EnvNegotiationThreshold, DefaultNegotiationThreshold),
		DefaultReputation:      getEnvNum(EnvDefaultReputation, DefaultDefaultReputation),
		DefaultPriority:        getEnvNum(EnvDefaultPriority, DefaultDefaultPriority),
		DispatchMaxConcurrency: getEnvNum(EnvDispatchMaxConcurrency, DefaultDispatchMaxConcurrency),
		DispatchTimeout:        getEnvDuration(EnvDispatchTimeout, DefaultDispatchTimeout),

		NotifyKafkaEnabled: getEnvBool(EnvNotifyKafkaEnabled, false),
		NotifyTopic:        getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		IdempotencyBackend: strings.ToLower(getEnvStr(EnvIdempotencyBackend, DefaultIdempotencyBackend)),
		IdempotencyTTL:     getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CatalogFile: getEnvStr(EnvCatalogFile, DefaultCatalogFile),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
	cfg.LockBackend = ResolveLockBackend(cfg.StoreBackend, getEnvStr(EnvLockBackend, DefaultLockBackend))
	cfg.priorityTiersRaw = getEnvStr(EnvPriorityTiers, DefaultPriorityTiers)
	cfg.PriorityTiers, cfg.priorityTiersErr = ParsePriorityTiers(cfg.priorityTiersRaw)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.MongoConnTimeout)
}

// UsesMongo reports whether any configured backend needs a Mongo connection.
func (cfg *Config) UsesMongo() bool {
	return cfg.StoreBackend == BackendMongo || cfg.LockBackend == BackendMongo
}

// UsesRedis reports whether any configured backend needs a Redis connection.
func (cfg *Config) UsesRedis() bool {
	return cfg.ReputationBackend == BackendRedis || cfg.LockBackend == BackendRedis || cfg.IdempotencyBackend == BackendRedis
}

// ParsePriorityTiers parses "P=1,B=2" into a category code to priority map.
// Codes are upper-cased.
func ParsePriorityTiers(raw string) (map[string]int, error) {
	tiers := make(map[string]int)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tiers, nil
	}
	for _, part := range strings.Split(raw, ",") {
		code, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid priority tier %q, expected CODE=N", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid priority for tier %s: %q", code, value)
		}
		tiers[code] = n
	}
	return tiers, nil
}

// ResolveLockBackend picks the lock backend for a store when none is set.
// A shared store gets a shared lock so commits serialize across instances.
func ResolveLockBackend(storeBackend, lockBackend string) string {
	lockBackend = strings.ToLower(strings.TrimSpace(lockBackend))
	if lockBackend != "" {
		return lockBackend
	}
	if strings.ToLower(storeBackend) == BackendMongo {
		return BackendMongo
	}
	return BackendLocal
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case BackendMongo, BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [mongo, memory], got: %s", cfg.StoreBackend))
	}
	switch cfg.ReputationBackend {
	case BackendMemory, BackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("ReputationBackend must be one of [memory, redis], got: %s", cfg.ReputationBackend))
	}
	switch cfg.LockBackend {
	case BackendLocal, BackendMongo, BackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [local, mongo, redis], got: %s", cfg.LockBackend))
	}
	if cfg.StoreBackend == BackendMongo && cfg.LockBackend == BackendLocal && !cfg.SingleInstance {
		errors = append(errors, "LockBackend local cannot guard a shared mongo store; use mongo or redis, or set SINGLE_INSTANCE=true")
	}
	switch cfg.IdempotencyBackend {
	case BackendMemory, BackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("IdempotencyBackend must be one of [memory, redis], got: %s", cfg.IdempotencyBackend))
	}

	if cfg.UsesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}
	if cfg.UsesRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.LockRetryInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockRetryInterval must be positive, got: %s", cfg.LockRetryInterval))
	}
	if cfg.DispatchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("DispatchTimeout must be positive, got: %s", cfg.DispatchTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.DispatchMaxConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("DispatchMaxConcurrency must be positive, got: %d", cfg.DispatchMaxConcurrency))
	}

	if cfg.NegotiationThreshold < 0 {
		errors = append(errors, fmt.Sprintf("NegotiationThreshold cannot be negative, got: %d", cfg.NegotiationThreshold))
	}
	if cfg.DefaultPriority < 0 {
		errors = append(errors, fmt.Sprintf("DefaultPriority cannot be negative, got: %d", cfg.DefaultPriority))
	}
	if cfg.priorityTiersErr != nil {
		errors = append(errors, fmt.Sprintf("PriorityTiers is invalid: %v", cfg.priorityTiersErr))
	}

	if cfg.NotifyKafkaEnabled && cfg.NotifyTopic == "" {
		errors = append(errors, "NotifyTopic cannot be empty when Kafka notifications are enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"reputation_backend", cfg.ReputationBackend,
		"lock_backend", cfg.LockBackend,
		"single_instance", cfg.SingleInstance,
		"lock_ttl", cfg.LockTTL,
		"negotiation_threshold", cfg.NegotiationThreshold,
		"default_reputation", cfg.DefaultReputation,
		"default_priority", cfg.DefaultPriority,
		"priority_tiers", formatTiers(cfg.PriorityTiers),
		"dispatch_max_concurrency", cfg.DispatchMaxConcurrency,
		"dispatch_timeout", cfg.DispatchTimeout,
		"notify_kafka_enabled", cfg.NotifyKafkaEnabled,
		"notify_topic", cfg.NotifyTopic,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"idempotency_backend", cfg.IdempotencyBackend,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func formatTiers(tiers map[string]int) string {
	codes := make([]string, 0, len(tiers))
	for code := range tiers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s=%d", code, tiers[code]))
	}
	return strings.Join(parts, ",")
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}
