package config

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	MetricsPort             string
	AuthMode                string
	JWTSecret               string
	ChatEncryptionKey       string
	OperationTimeout        time.Duration
	SubscribeRetries        int
	SubscribeRetryBackoff   time.Duration
	ChangeStreamEnabled     bool
}

const devJWTSecret = "dev-only-jwt-secret"

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "eduplatform"),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		AuthMode:                getEnv("AUTH_MODE", "jwt"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		ChatEncryptionKey:       getEnv("CHAT_ENCRYPTION_KEY", ""),
		OperationTimeout:        getDuration("OPERATION_TIMEOUT", 5*time.Second),
		SubscribeRetries:        getInt("SUBSCRIBE_RETRIES", 0),
		SubscribeRetryBackoff:   getDuration("SUBSCRIBE_RETRY_BACKOFF", 500*time.Millisecond),
		ChangeStreamEnabled:     getBool("CHANGE_STREAM_ENABLED", false),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects configurations that must not reach production. In
// development a missing JWT secret is replaced by a fixed dev secret.
func (c *Config) Validate() error {
	if c.AuthMode != "jwt" && c.AuthMode != "firebase" {
		return errors.New("AUTH_MODE must be jwt or firebase")
	}
	if c.IsProduction() {
		var errs []error
		if c.ChatEncryptionKey == "" {
			errs = append(errs, errors.New("CHAT_ENCRYPTION_KEY is required in production"))
		}
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.PostgresConnStr == "" || c.MongoURI == "" {
			errs = append(errs, errors.New("POSTGRES_CONN_STR and MONGO_URI are required in production"))
		}
		return errors.Join(errs...)
	}
	if c.JWTSecret == "" {
		log.Println("JWT_SECRET not set, using the development secret.")
		c.JWTSecret = devJWTSecret
	}
	return nil
}

// NewLogger returns the application logger: text in development, JSON in
// production.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
