package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notifier transports.
const (
	NotifierLog      = "log"
	NotifierRabbitMQ = "rabbitmq"
	NotifierRedis    = "redis"
)

// Result store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

// Config holds the runtime configuration of the HTTP service.  Each field
// corresponds to an environment variable; see Load for the names and
// defaults.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	LogLevel        string        // zerolog level name
	LogPretty       bool          // console output instead of JSON
	Notifier        string        // event transport: log, rabbitmq or redis
	ResultStore     string        // where run records live: memory, redis or mysql
	ResultTTL       time.Duration // how long run records are kept (memory and redis)
	ShutdownTimeout time.Duration // grace period for in-flight runs on shutdown
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
}

// LoadDotEnv loads a .env file when present.  A missing file is not an
// error; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the service configuration.  Database variables are only
// required when RESULT_STORE=mysql.
func Load() (Config, error) {
	cfg := Config{
		Env:             envStr("APP_ENV", "dev"),
		Port:            envStr("APP_PORT", "8080"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogPretty:       envBool("LOG_PRETTY", false),
		Notifier:        strings.ToLower(envStr("NOTIFIER", NotifierLog)),
		ResultStore:     strings.ToLower(envStr("RESULT_STORE", StoreMemory)),
		ResultTTL:       envDur("RESULT_TTL", time.Hour),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		DBUser:          os.Getenv("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          envStr("DB_HOST", "localhost"),
		DBPort:          envStr("DB_PORT", "3306"),
		DBName:          os.Getenv("DB_NAME"),
	}
	switch cfg.Notifier {
	case NotifierLog, NotifierRabbitMQ, NotifierRedis:
	default:
		return cfg, fmt.Errorf("invalid NOTIFIER %q (want log, rabbitmq or redis)", cfg.Notifier)
	}
	switch cfg.ResultStore {
	case StoreMemory, StoreRedis:
	case StoreMySQL:
		if err := must("DB_USER", "DB_NAME"); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("invalid RESULT_STORE %q (want memory, redis or mysql)", cfg.ResultStore)
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	return cfg, nil
}

// must reports the first of keys that is unset or empty.
func must(keys ...string) error {
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); !ok || v == "" {
			return fmt.Errorf("missing required env var: %s", key)
		}
	}
	return nil
}
