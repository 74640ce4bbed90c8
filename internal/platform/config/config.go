// Package config loads Synaptik settings from layered sources: built-in
// defaults, configs/base.yaml, configs/<profile>.yaml and APP_ environment
// variables, later sources winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks the environment variables Load reads.
const EnvPrefix = "APP_"

// Defaults referenced outside this package.
const (
	DefaultServerPort = 8080
	DefaultWriteScope = "tasks:write"
)

// Config is the whole service configuration. Validate checks it.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Services  ServicesConfig  `koanf:"services"  validate:"required"`
	Storage   StorageConfig   `koanf:"storage"   validate:"required"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Events    EventsConfig    `koanf:"events"`
	Dashboard DashboardConfig `koanf:"dashboard" validate:"required"`

	// Features holds flag values read through ports.StaticFlags.
	Features map[string]any `koanf:"features"`
}

// AppConfig names the deployment.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig sizes the HTTP listener. MaxRequestSize is in bytes.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig mirrors every record to a file rotated by lumberjack.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"       validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"   validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"    validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig points the OTLP exporters at a collector.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig contains authentication settings.
//
// Mode "headers" trusts identity headers set by a gateway; mode "jwt" verifies
// bearer tokens against a JWKS endpoint or, locally, an HS256 secret.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Mode          string `koanf:"mode"           validate:"required_if=Enabled true,omitempty,oneof=headers jwt"`
	JWKSEndpoint  string `koanf:"jwks_endpoint"  validate:"omitempty,url"`
	JWTSecret     string `koanf:"jwt_secret"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`
	WriteScope    string `koanf:"write_scope"    validate:"required_if=Enabled true"`
	RolesHeader   string `koanf:"roles_header"`
	ScopesHeader  string `koanf:"scopes_header"`
	SubjectHeader string `koanf:"subject_header"`
}

// ClientConfig tunes the API client used by synaptikctl.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig shapes the exponential backoff between attempts.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig opens the circuit after MaxFailures consecutive
// failures and probes again after Timeout.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"         validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"      validate:"required,min=1s"`
}

// ServicesConfig lists remote endpoints.
type ServicesConfig struct {
	Synaptik ServiceEndpointConfig `koanf:"synaptik" validate:"required"`
}

// ServiceEndpointConfig is one remote endpoint.
type ServiceEndpointConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Name    string `koanf:"name"     validate:"required"`
}

// StorageConfig selects the task repository.
type StorageConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=memory sqlite"`
	DSN    string `koanf:"dsn"    validate:"required_if=Driver sqlite"`
}

// RedisConfig is the connection shared by the cache and the event publisher.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"       validate:"min=0,max=15"`
}

// CacheConfig contains task list caching settings.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"     validate:"required_if=Enabled true,omitempty,min=1s"`
	Prefix  string        `koanf:"prefix"`
}

// EventsConfig contains task event publishing settings.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Channel string `koanf:"channel" validate:"required_if=Enabled true"`
}

// DashboardConfig tunes the dashboard read models.
type DashboardConfig struct {
	UrgencyWindow time.Duration `koanf:"urgency_window" validate:"required,min=1h"`
	Graph         GraphConfig   `koanf:"graph"          validate:"required"`
}

// GraphConfig sizes dependency graph layouts.
type GraphConfig struct {
	Width      float64 `koanf:"width"      validate:"required,min=100"`
	Height     float64 `koanf:"height"     validate:"required,min=100"`
	Iterations int     `koanf:"iterations" validate:"required,min=1,max=5000"`
}

// defaults is the lowest layer, one map per section.
func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{"name": "synaptik", "version": "dev", "environment": "local"},
		"server": map[string]any{
			"port":             DefaultServerPort,
			"host":             "0.0.0.0",
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "2m",
			"shutdown_timeout": "10s",
			"max_request_size": 1 << 20,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
			"file": map[string]any{
				"enabled": false, "path": "./logs/synaptik.log",
				"max_size": 100, "max_backups": 3, "max_age": 28, "compress": true,
			},
		},
		"telemetry": map[string]any{"enabled": false, "service_name": "synaptik", "sampling_rate": 1.0},
		"auth": map[string]any{
			"enabled":        false,
			"mode":           "headers",
			"write_scope":    DefaultWriteScope,
			"subject_header": "X-User-ID",
			"scopes_header":  "X-User-Scopes",
			"roles_header":   "X-User-Roles",
		},
		"client": map[string]any{
			"timeout": "30s",
			"retry": map[string]any{
				"max_attempts": 3, "initial_interval": "100ms", "max_interval": "5s",
				"multiplier": 2.0, "jitter_factor": 0.25,
			},
			"circuit_breaker": map[string]any{"max_failures": 5, "timeout": "30s", "half_open_limit": 3},
			"transport": map[string]any{
				"max_idle_conns": 100, "max_idle_conns_per_host": 10, "idle_conn_timeout": "90s",
			},
		},
		"services": map[string]any{
			"synaptik": map[string]any{"name": "synaptik", "base_url": "http://localhost:8080"},
		},
		"storage": map[string]any{"driver": "memory"},
		"redis":   map[string]any{"addr": "localhost:6379", "db": 0},
		"cache":   map[string]any{"enabled": false, "ttl": "30s", "prefix": "synaptik:"},
		"events":  map[string]any{"enabled": false, "channel": "synaptik:tasks"},
		"dashboard": map[string]any{
			"urgency_window": (48 * time.Hour).String(),
			"graph":          map[string]any{"width": 960, "height": 640, "iterations": 300},
		},
		"features": map[string]any{"auto-unblock": true, "force-layout": true},
	}
}

// Load reads the layers from the configs directory of the working directory.
// An empty profile skips the profile file. Missing files are not errors.
func Load(profile string) (*Config, error) {
	return LoadFrom("configs", profile)
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir, profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	files := []struct{ layer, name string }{{"base config", "base"}}
	if profile != "" {
		files = append(files, struct{ layer, name string }{fmt.Sprintf("profile config %q", profile), profile})
	}

	for _, f := range files {
		if err := loadYAML(k, filepath.Join(dir, f.name+".yaml")); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f.layer, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_ variables onto config keys. Known keys match
// exactly, so APP_SERVICES_SYNAPTIK_BASE_URL reaches services.synaptik.base_url
// and APP_FEATURES_AUTO_UNBLOCK reaches features.auto-unblock; anything else
// splits on every underscore.
func envKeyMapper(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.NewReplacer(".", "_", "-", "_").Replace(key)] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

func loadYAML(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
