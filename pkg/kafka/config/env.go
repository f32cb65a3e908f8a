package kafka_config

const (
	EnvKafkaBrokers = "KAFKA_BROKERS"

	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"

	EnvKafkaConsumerGroupID   = "KAFKA_CONSUMER_GROUP_ID"
	EnvKafkaConsumerMaxWait   = "KAFKA_CONSUMER_MAX_WAIT"
	EnvKafkaConsumerMaxBytes  = "KAFKA_CONSUMER_MAX_BYTES"
	EnvKafkaConsumerCommitInt = "KAFKA_CONSUMER_COMMIT_INTERVAL"

	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"
)
