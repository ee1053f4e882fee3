package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	LogLevel    string
	Server      ServerConfig
	Backend     BackendConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	Payment     PaymentConfig
	History     HistoryConfig
	OTEL        OTELConfig
}

// ServerConfig holds view-binding server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	SessionIdle    time.Duration
}

// BackendConfig holds lab booking backend configuration
type BackendConfig struct {
	BaseURL         string
	Token           string
	CredentialsFile string
	Timeout         time.Duration
	PhoneRegion     string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// GeolocationConfig holds location and places provider configuration
type GeolocationConfig struct {
	Provider    string
	APIKey      string
	StaticLat   *float64
	StaticLng   *float64
	PlacesQPS   float64
	MaxAge      time.Duration
	Timeout     time.Duration
	RadiusMeter int
}

// PaymentConfig holds pay-now collector configuration
type PaymentConfig struct {
	Provider     string
	StripeKey    string
	Currency     string
	SuccessURL   string
	CancelURL    string
	PollInterval time.Duration
	Timeout      time.Duration
}

// HistoryConfig holds search history storage configuration
type HistoryConfig struct {
	Store string
	Path  string
	Key   string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables, reading a .env file first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	staticLat, err := getEnvAsFloatPtr("LOCATION_LAT")
	if err != nil {
		return nil, err
	}
	staticLng, err := getEnvAsFloatPtr("LOCATION_LNG")
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
			SessionIdle:    getEnvAsDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		},
		Backend: BackendConfig{
			BaseURL:         getEnv("BACKEND_URL", "http://localhost:5000/api"),
			Token:           getEnv("BACKEND_TOKEN", ""),
			CredentialsFile: getEnv("BACKEND_CREDENTIALS_FILE", ""),
			Timeout:         getEnvAsDuration("BACKEND_TIMEOUT", 20*time.Second),
			PhoneRegion:     getEnv("PHONE_REGION", "IN"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Geolocation: GeolocationConfig{
			Provider:    getEnv("GEOLOCATION_PROVIDER", "mock"),
			APIKey:      getEnv("GEOLOCATION_API_KEY", ""),
			StaticLat:   staticLat,
			StaticLng:   staticLng,
			PlacesQPS:   getEnvAsFloat("PLACES_QPS", 5),
			MaxAge:      getEnvAsDuration("LOCATION_MAX_AGE", 5*time.Minute),
			Timeout:     getEnvAsDuration("LOCATION_TIMEOUT", 10*time.Second),
			RadiusMeter: getEnvAsInt("NEARBY_RADIUS_METERS", 5000),
		},
		Payment: PaymentConfig{
			Provider:     getEnv("PAYMENT_PROVIDER", "mock"),
			StripeKey:    getEnv("STRIPE_SECRET_KEY", ""),
			Currency:     getEnv("PAYMENT_CURRENCY", "inr"),
			SuccessURL:   getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/bookings/success"),
			CancelURL:    getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/bookings/cancelled"),
			PollInterval: getEnvAsDuration("PAYMENT_POLL_INTERVAL", 3*time.Second),
			Timeout:      getEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Minute),
		},
		History: HistoryConfig{
			Store: getEnv("HISTORY_STORE", "file"),
			Path:  getEnv("HISTORY_PATH", "search_history.json"),
			Key:   getEnv("HISTORY_KEY", "labbook:search_history"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "labbook"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasStaticLocation reports whether fixed coordinates were configured
func (c *GeolocationConfig) HasStaticLocation() bool {
	return c.StaticLat != nil && c.StaticLng != nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsFloatPtr(key string) (*float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &floatVal, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
