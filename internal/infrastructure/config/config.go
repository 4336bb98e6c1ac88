package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Search    SearchConfig    `koanf:"search"`
	Rates     RatesConfig     `koanf:"rates"`
	Sync      SyncConfig      `koanf:"sync"`
	Health    HealthConfig    `koanf:"health"`
	Routing   RoutingConfig   `koanf:"routing"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SearchConfig points at the offer index service.
type SearchConfig struct {
	URL        string        `koanf:"url"`
	APIKey     string        `koanf:"api_key"`
	IndexName  string        `koanf:"index_name"`
	Timeout    time.Duration `koanf:"timeout"`
	BatchSize  int           `koanf:"batch_size" validate:"gt=0"`
	MaxRetries int           `koanf:"max_retries"`
}

// RatesConfig points at the external exchange-rate and system-settings source.
type RatesConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type SyncConfig struct {
	Interval          time.Duration `koanf:"interval"`
	RunOnStart        bool          `koanf:"run_on_start"`
	Vendor            string        `koanf:"vendor"` // SYNC_PROVIDER: restrict scheduled sync to one vendor
	MaxInFlight       int           `koanf:"max_in_flight" validate:"gt=0"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"gt=0"`
	MetadataMaxAge    time.Duration `koanf:"metadata_max_age"`
	WorkerBinary      string        `koanf:"worker_binary"` // per-vendor sync runs in this subprocess when set
	IconDir           string        `koanf:"icon_dir"`
}

type HealthConfig struct {
	Window           time.Duration `koanf:"window"`
	FailureThreshold int           `koanf:"failure_threshold" validate:"gt=0"`
	HalfOpenRequests int           `koanf:"half_open_requests" validate:"gt=0"`
	BaseOpenDuration time.Duration `koanf:"base_open_duration"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
}

type RoutingConfig struct {
	ActiveVendorTTL time.Duration `koanf:"active_vendor_ttl"`
	QuoteTTL        time.Duration `koanf:"quote_ttl"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
}

// Load builds the configuration from defaults, an optional configs/config.yaml,
// and NEXNUM_-prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Search: SearchConfig{
			IndexName: "offers",
			Timeout:   15 * time.Second,
			BatchSize: 5000,
		},
		Rates: RatesConfig{
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			Interval:          12 * time.Hour,
			MaxInFlight:       50,
			RequestsPerMinute: 180,
			MetadataMaxAge:    24 * time.Hour,
			IconDir:           "assets/icons",
		},
		Health: HealthConfig{
			Window:           60 * time.Second,
			FailureThreshold: 5,
			HalfOpenRequests: 3,
			BaseOpenDuration: 30 * time.Second,
			CacheTTL:         5 * time.Second,
		},
		Routing: RoutingConfig{
			ActiveVendorTTL: 30 * time.Second,
			QuoteTTL:        15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "nexnum-core",
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
	}
	// Config file is optional.
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := k.Load(env.Provider("NEXNUM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "NEXNUM_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// SYNC_PROVIDER is the historical name for the single-vendor sync knob;
	// keep honoring it alongside NEXNUM_SYNC_VENDOR.
	if v := os.Getenv("SYNC_PROVIDER"); v != "" {
		if err := k.Set("sync.vendor", v); err != nil {
			return nil, fmt.Errorf("applying SYNC_PROVIDER: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
