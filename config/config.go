package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minTokenBytes = 16

type Config struct {
	Env         string
	Server      ServerConfig
	Redis       RedisConfig
	Session     SessionConfig
	Persistence PersistenceConfig
	JWT         JWTConfig
	Log         LogConfig
	Kafka       KafkaConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type SessionConfig struct {
	Duration       time.Duration
	StatusInterval time.Duration
	Domain         string
	PathPrefix     string
	TokenBytes     int
	RankLimit      int
	ResetSchedule  string
	ResetMessage   string
}

type PersistenceConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
	OpTimeout     time.Duration
	// HitTimeout bounds the single write made per accepted hit.
	HitTimeout time.Duration
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50057),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Session: SessionConfig{
			Duration:       getEnvAsDuration("SESSION_DURATION", 200*time.Second),
			StatusInterval: getEnvAsDuration("SESSION_STATUS_INTERVAL", 5*time.Second),
			Domain:         getEnv("SESSION_DOMAIN", "http://localhost:8080"),
			PathPrefix:     getEnv("SESSION_PATH_PREFIX", "/target_"),
			TokenBytes:     getEnvAsInt("SESSION_TOKEN_BYTES", minTokenBytes),
			RankLimit:      getEnvAsInt("SESSION_RANK_LIMIT", 5),
			ResetSchedule:  getEnv("SESSION_RESET_SCHEDULE", "0 0 * * *"),
			ResetMessage: getEnv("SESSION_RESET_MESSAGE",
				"The daily ranking has been reset. Start a new session and climb to the top!"),
		},
		Persistence: PersistenceConfig{
			RetryAttempts: getEnvAsInt("PERSISTENCE_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvAsDuration("PERSISTENCE_RETRY_DELAY", 50*time.Millisecond),
			OpTimeout:     getEnvAsDuration("PERSISTENCE_OP_TIMEOUT", 2*time.Second),
			HitTimeout:    getEnvAsDuration("PERSISTENCE_HIT_TIMEOUT", 250*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", true),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "traffic-coordinator"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Session.Duration <= 0 {
		return fmt.Errorf("session duration must be positive: %s", c.Session.Duration)
	}

	if c.Session.StatusInterval <= 0 {
		return fmt.Errorf("session status interval must be positive: %s", c.Session.StatusInterval)
	}

	if c.Session.TokenBytes < minTokenBytes {
		return fmt.Errorf("session token must be at least %d bytes, got %d", minTokenBytes, c.Session.TokenBytes)
	}

	if !strings.HasPrefix(c.Session.PathPrefix, "/") {
		return fmt.Errorf("session path prefix must start with '/': %q", c.Session.PathPrefix)
	}

	if c.Persistence.RetryAttempts < 1 {
		return fmt.Errorf("persistence retry attempts must be at least 1")
	}

	if c.Persistence.HitTimeout <= 0 {
		return fmt.Errorf("persistence hit timeout must be positive")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
