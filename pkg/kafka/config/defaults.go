package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // all replicas
	DefaultProducerCompression  = "snappy"

	// Every broker instance relays events to its own subscribers, so the
	// group id is suffixed with the host name at load time.
	DefaultConsumerGroupID        = "labbroker-relay"
	DefaultConsumerMaxWait        = 500 * time.Millisecond
	DefaultConsumerMaxBytes       = 1 * 1024 * 1024 // 1MB
	DefaultConsumerCommitInterval = 1 * time.Second

	DefaultEnableMiddleware = true
)
