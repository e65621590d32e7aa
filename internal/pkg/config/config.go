package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Map       MapConfig       `mapstructure:"map"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// MapConfig holds the defaults for new map sessions.
type MapConfig struct {
	CenterLat      float64       `mapstructure:"center_lat"`
	CenterLng      float64       `mapstructure:"center_lng"`
	Zoom           int           `mapstructure:"zoom"`
	ShowControls   bool          `mapstructure:"show_controls"`
	EntityCacheTTL int           `mapstructure:"entity_cache_ttl"` // seconds
	ReloadInterval time.Duration `mapstructure:"reload_interval"`

	// SessionIdleTimeout closes sessions left untouched for this long. Zero
	// disables it.
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
}

// MaintenanceInterval is how often map sessions are swept: the reload
// interval, shortened to the idle timeout when that is smaller. Zero means
// no sweep is needed.
func (m MapConfig) MaintenanceInterval() time.Duration {
	tick := m.ReloadInterval
	if m.SessionIdleTimeout > 0 && (tick <= 0 || m.SessionIdleTimeout < tick) {
		tick = m.SessionIdleTimeout
	}
	return tick
}

// Defaults converts the section into session defaults.
func (m MapConfig) Defaults() domain.MapConfig {
	center := domain.GeoPoint{Lat: m.CenterLat, Lng: m.CenterLng}
	zoom := m.Zoom
	show := m.ShowControls
	return domain.MapConfig{Center: &center, Zoom: &zoom, ShowControls: &show}
}

// HealthConfig tunes the telemetry refresher.
type HealthConfig struct {
	// Source is "simulated" or "nats".
	Source         string        `mapstructure:"source"`
	Interval       time.Duration `mapstructure:"interval"`
	RefreshLatency time.Duration `mapstructure:"refresh_latency"`
	EventsLimit    int           `mapstructure:"events_limit"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "safemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "safemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "safemap-health")
	v.SetDefault("map.center_lat", domain.DefaultCenter.Lat)
	v.SetDefault("map.center_lng", domain.DefaultCenter.Lng)
	v.SetDefault("map.zoom", domain.DefaultZoom)
	v.SetDefault("map.show_controls", domain.DefaultShowControls)
	v.SetDefault("map.entity_cache_ttl", 60)
	v.SetDefault("map.reload_interval", "1m")
	v.SetDefault("map.session_idle_timeout", "30m")
	v.SetDefault("health.source", "simulated")
	v.SetDefault("health.interval", "5s")
	v.SetDefault("health.refresh_latency", "1s")
	v.SetDefault("health.events_limit", 10)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SAFEMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("SAFEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("map.center_lat must be -90..90, got %g", c.Map.CenterLat))
	}
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		errs = append(errs, fmt.Sprintf("map.center_lng must be -180..180, got %g", c.Map.CenterLng))
	}
	if c.Map.Zoom < domain.MinZoom || c.Map.Zoom > domain.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.zoom must be %d-%d, got %d", domain.MinZoom, domain.MaxZoom, c.Map.Zoom))
	}
	if c.Map.EntityCacheTTL < 0 {
		errs = append(errs, "map.entity_cache_ttl must not be negative")
	}
	if c.Map.SessionIdleTimeout < 0 {
		errs = append(errs, "map.session_idle_timeout must not be negative")
	}
	if c.Health.Source != "simulated" && c.Health.Source != "nats" {
		errs = append(errs, fmt.Sprintf("health.source must be simulated or nats, got %q", c.Health.Source))
	}
	if c.Health.Interval <= 0 {
		errs = append(errs, "health.interval must be positive")
	}
	if c.Health.RefreshLatency < 0 {
		errs = append(errs, "health.refresh_latency must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
