package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/geocoding"
	"impound-lot-finder/internal/positioning"
	"impound-lot-finder/internal/routing"
)

type Config struct {
	Server      ServerConfig
	DB          DatabaseConfig
	Geocoding   GeocodingConfig
	Routing     RoutingConfig
	Positioning PositioningConfig
	Session     SessionConfig
}

type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Path string
}

type GeocodingConfig struct {
	URL               string
	CountryCodes      string
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
}

type RoutingConfig struct {
	URL     string
	Timeout time.Duration
}

// Positioning providers
const (
	PositioningIPAPI = "ipapi"
	PositioningNone  = "none"
)

type PositioningConfig struct {
	Provider      string
	IPAPIURL      string
	DeviceTimeout time.Duration
}

type SessionConfig struct {
	AutoRouteNearest bool
}

func Load() (*Config, error) {
	httpTimeout := getEnvDuration("HTTP_TIMEOUT", 10*time.Second)

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		p, err := database.GetDefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		dbPath = p
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		},
		DB: DatabaseConfig{
			Path: dbPath,
		},
		Geocoding: GeocodingConfig{
			URL:               getEnv("NOMINATIM_URL", geocoding.DefaultBaseURL),
			CountryCodes:      getEnv("NOMINATIM_COUNTRY", "br"),
			RequestsPerSecond: getEnvFloat("NOMINATIM_RPS", 1),
			MaxRetries:        getEnvInt("NOMINATIM_RETRIES", 2),
			Timeout:           httpTimeout,
		},
		Routing: RoutingConfig{
			URL:     getEnv("OSRM_URL", routing.DefaultBaseURL),
			Timeout: httpTimeout,
		},
		Positioning: PositioningConfig{
			Provider:      getEnv("POSITIONING", PositioningIPAPI),
			IPAPIURL:      getEnv("IPAPI_URL", positioning.DefaultIPAPIURL),
			DeviceTimeout: getEnvDuration("DEVICE_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			AutoRouteNearest: getEnvBool("AUTO_ROUTE_NEAREST", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}

	if c.Geocoding.RequestsPerSecond <= 0 || c.Geocoding.RequestsPerSecond > 1 {
		// Nominatim usage policy allows at most one request per second
		return fmt.Errorf("invalid nominatim rate: %v (must be in (0, 1])", c.Geocoding.RequestsPerSecond)
	}
	if c.Geocoding.MaxRetries < 1 {
		return fmt.Errorf("nominatim retries must be at least 1")
	}

	switch c.Positioning.Provider {
	case PositioningIPAPI, PositioningNone:
	default:
		return fmt.Errorf("invalid positioning provider: %s", c.Positioning.Provider)
	}

	if c.Positioning.DeviceTimeout <= 0 {
		return fmt.Errorf("device timeout must be positive")
	}
	if c.Geocoding.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
