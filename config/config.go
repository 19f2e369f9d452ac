package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// TaskLimits are the queue-wide time limits used when a task declares none.
type TaskLimits struct {
	SoftTimeLimit time.Duration
	TimeLimit     time.Duration
}

type Config struct {
	HTTPHost string
	HTTPPort string
	GRPCHost string
	GRPCPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend   string
	LockDSN       string
	LockKeyPrefix string

	Tasks TaskLimits

	LogLevel    string
	LogFormat   string
	MetricsPort string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	softLimit, err := getEnvSeconds("TASK_SOFT_TIME_LIMIT")
	if err != nil {
		return nil, err
	}
	hardLimit, err := getEnvSeconds("TASK_TIME_LIMIT")
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:      getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		GRPCHost:      getEnv("GRPC_HOST", "0.0.0.0"),
		GRPCPort:      getEnv("GRPC_PORT", "9090"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		LockBackend:   getEnv("LOCK_BACKEND", "redis"),
		LockDSN:       getEnv("LOCK_DSN", ""),
		LockKeyPrefix: getEnv("LOCK_KEY_PREFIX", "single_instance:"),
		Tasks: TaskLimits{
			SoftTimeLimit: softLimit,
			TimeLimit:     hardLimit,
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		MetricsPort: getEnv("METRICS_PORT", ""),
	}, nil
}

// NewLogger builds a logrus logger from the configured level and format.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %s", c.LogFormat)
	}
	return logger, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getEnvSeconds reads a non-negative number of seconds; unset means zero.
func getEnvSeconds(key string) (time.Duration, error) {
	n, err := getEnvInt(key, 0)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(n) * time.Second, nil
}
