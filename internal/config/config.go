package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines runtime settings loaded from YAML and the environment.
type Config struct {
	Station StationConfig `yaml:"station"`
	HTTP    HTTPConfig    `yaml:"http"`
	Cache   CacheConfig   `yaml:"cache"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Watch   WatchConfig   `yaml:"watch"`
}

// StationConfig points at the station's feeds.
type StationConfig struct {
	// Timezone is the IANA zone the station schedules in.
	Timezone    string `yaml:"timezone" validate:"required"`
	ScheduleURL string `yaml:"scheduleURL" validate:"required,url"`
	ArchiveURL  string `yaml:"archiveURL" validate:"omitempty,url"`
	PlayLogURL  string `yaml:"playLogURL" validate:"required,url"`
	// PlaylistURL is the per-show playlist base; the show name is appended as a path segment.
	PlaylistURL string `yaml:"playlistURL" validate:"required,url"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// Retries opts in to extra attempts after a transient failure. The
	// default of 0 makes every fetch a single attempt.
	Retries           int           `yaml:"retries" validate:"min=0,max=10"`
	BaseDelay         time.Duration `yaml:"baseDelay"`
	MaxDelay          time.Duration `yaml:"maxDelay"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"min=0"`
	UserAgent         string        `yaml:"userAgent"`
}

type CacheConfig struct {
	SongTTL     time.Duration `yaml:"songTTL"`
	ScheduleTTL time.Duration `yaml:"scheduleTTL"`
	// RedisAddr switches the song cache from memory to redis when set.
	RedisAddr     string `yaml:"redisAddr" validate:"omitempty,hostname_port"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB" validate:"min=0"`
	KeyPrefix     string `yaml:"keyPrefix"`
}

// MQTTConfig enables publishing current-show changes when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientID"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// RequestsPerSecond is the per-client API limit; 0 disables it.
	RequestsPerSecond int           `yaml:"requestsPerSecond" validate:"min=0"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type WatchConfig struct {
	// Spec is a cron spec for the current-show check.
	Spec string `yaml:"spec"`
}

// Location loads the station time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Station.Timezone)
}

var validate = validator.New()

// Load reads the YAML file at path, applies a sibling .env file and ONAIR_*
// environment overrides, then normalizes and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	applyEnv(&c)
	applyDefaults(&c)
	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return Config{}, fmt.Errorf("invalid station timezone %q: %w", c.Station.Timezone, err)
	}
	return c, nil
}

// Keep defaults centralized so callers can rely on normalized values.
func applyDefaults(c *Config) {
	if c.Station.Timezone == "" {
		c.Station.Timezone = "America/Toronto"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 20 * time.Second
	}
	if c.HTTP.BaseDelay <= 0 {
		c.HTTP.BaseDelay = 300 * time.Millisecond
	}
	if c.HTTP.MaxDelay <= 0 {
		c.HTTP.MaxDelay = 2 * time.Second
	}
	if c.Cache.SongTTL <= 0 {
		c.Cache.SongTTL = 5 * time.Minute
	}
	if c.Cache.ScheduleTTL <= 0 {
		c.Cache.ScheduleTTL = time.Hour
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "onair:"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "onair/now"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "onair"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Watch.Spec == "" {
		c.Watch.Spec = "@every 1m"
	}
}

func applyEnv(c *Config) {
	setString(&c.Station.Timezone, "ONAIR_TIMEZONE")
	setString(&c.Station.ScheduleURL, "ONAIR_SCHEDULE_URL")
	setString(&c.Station.ArchiveURL, "ONAIR_ARCHIVE_URL")
	setString(&c.Station.PlayLogURL, "ONAIR_PLAYLOG_URL")
	setString(&c.Station.PlaylistURL, "ONAIR_PLAYLIST_URL")
	setString(&c.Cache.RedisAddr, "ONAIR_REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "ONAIR_REDIS_PASSWORD")
	setInt(&c.Cache.RedisDB, "ONAIR_REDIS_DB")
	setString(&c.MQTT.Broker, "ONAIR_MQTT_BROKER")
	setString(&c.Server.Addr, "ONAIR_ADDR")
	setString(&c.Log.Level, "ONAIR_LOG_LEVEL")
	setString(&c.Log.Format, "ONAIR_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
