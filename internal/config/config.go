package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                int
	SubgraphURL         string
	TargetAddress       string
	GatewayURL          string
	WebAPIBaseURL       string
	WebAddr             string
	QueryAddr           string
	RPCURL              string
	ChainID             uint64
	DBDriver            string
	DBDSN               string
	RedisAddr           string
	CacheTTL            time.Duration
	OtelEndpoint        string
	ContractAddress     string
	StartBlock          uint64
	Confirmations       uint64
	BatchSize           uint64
	PollInterval        time.Duration
	KafkaBrokers        []string
	KafkaTopicPrefix    string
	KafkaGroupID        string
	MapperBatchSize     int
	MapperFlushInterval time.Duration
	LogLevel            string
	LogFile             string
	LogMaxSizeMB        int
	LogMaxBackups       int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	port, err := parseUintEnv(source, "PORT", 5000)
	if err != nil {
		return Config{}, err
	}
	if port == 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT: %d", port)
	}
	chainID, err := parseUintEnv(source, "CHAIN_ID", 1)
	if err != nil {
		return Config{}, err
	}
	startBlock, err := parseUintEnv(source, "START_BLOCK", 0)
	if err != nil {
		return Config{}, err
	}
	confirmations, err := parseUintEnv(source, "CONFIRMATIONS", 0)
	if err != nil {
		return Config{}, err
	}
	batchSize, err := parseUintEnv(source, "BATCH_SIZE", 1000)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDurationEnv(source, "CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	mapperBatchSize, err := parseUintEnv(source, "MAPPER_BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	mapperFlushInterval, err := parseDurationEnv(source, "MAPPER_FLUSH_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	dbDriver := strings.ToLower(stringEnv(source, "DB_DRIVER", "sqlite"))
	if dbDriver != "mysql" && dbDriver != "sqlite" {
		return Config{}, fmt.Errorf("invalid DB_DRIVER: %s", dbDriver)
	}
	dbDSN := stringEnv(source, "DB_DSN", "")
	if dbDSN == "" {
		if dbDriver == "mysql" {
			dbDSN = "root:@tcp(127.0.0.1:3306)/transfers?parseTime=true"
		} else {
			dbDSN = "data/transfers.db"
		}
	}

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")

	return Config{
		Port:                int(port),
		SubgraphURL:         stringEnv(source, "SUBGRAPH_URL", "http://localhost:8000/graphql"),
		TargetAddress:       strings.ToLower(stringEnv(source, "TARGET_ADDRESS", "")),
		GatewayURL:          stringEnv(source, "GATEWAY_URL", "http://localhost:5000"),
		WebAPIBaseURL:       stringEnv(source, "WEB_API_BASE_URL", "http://localhost:3000"),
		WebAddr:             stringEnv(source, "WEB_ADDR", ":3000"),
		QueryAddr:           stringEnv(source, "QUERY_ADDR", ":8000"),
		RPCURL:              stringEnv(source, "RPC_URL", ""),
		ChainID:             chainID,
		DBDriver:            dbDriver,
		DBDSN:               dbDSN,
		RedisAddr:           strings.TrimSpace(redisAddr),
		CacheTTL:            cacheTTL,
		OtelEndpoint:        strings.TrimSpace(otelEndpoint),
		ContractAddress:     strings.ToLower(stringEnv(source, "CONTRACT_ADDRESS", "")),
		StartBlock:          startBlock,
		Confirmations:       confirmations,
		BatchSize:           batchSize,
		PollInterval:        pollInterval,
		KafkaBrokers:        parseList(source, "KAFKA_BROKERS"),
		KafkaTopicPrefix:    stringEnv(source, "KAFKA_TOPIC_PREFIX", "transfers"),
		KafkaGroupID:        stringEnv(source, "KAFKA_GROUP_ID", "transfer-mapper"),
		MapperBatchSize:     int(mapperBatchSize),
		MapperFlushInterval: mapperFlushInterval,
		LogLevel:            stringEnv(source, "LOG_LEVEL", "info"),
		LogFile:             stringEnv(source, "LOG_FILE", ""),
		LogMaxSizeMB:        int(logMaxSize),
		LogMaxBackups:       int(logMaxBackups),
	}, nil
}

// RequireIndexer checks the settings the RPC poller cannot run without.
func (c Config) RequireIndexer() error {
	if c.RPCURL == "" {
		return errors.New("RPC_URL is required")
	}
	if c.ContractAddress == "" {
		return errors.New("CONTRACT_ADDRESS is required")
	}
	return nil
}

// RequireGateway checks the settings the query gateway cannot run without.
func (c Config) RequireGateway() error {
	if c.SubgraphURL == "" {
		return errors.New("SUBGRAPH_URL is required")
	}
	if c.TargetAddress == "" {
		return errors.New("TARGET_ADDRESS is required")
	}
	return nil
}

// StreamingEnabled reports whether events travel through Kafka.
func (c Config) StreamingEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c Config) KafkaTopic() string {
	return fmt.Sprintf("%s-%d", c.KafkaTopicPrefix, c.ChainID)
}

func stringEnv(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
