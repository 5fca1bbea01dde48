package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `station:
  scheduleURL: https://radio.example.com/schedule.xml
  archiveURL: https://radio.example.com/archives.xml
  playLogURL: https://radio.example.com/playlog.json
  playlistURL: https://radio.example.com/playlists
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Station.Timezone != "America/Toronto" {
		t.Fatalf("want default timezone, got %q", c.Station.Timezone)
	}
	if c.Cache.SongTTL != 5*time.Minute {
		t.Fatalf("want 5m song ttl, got %s", c.Cache.SongTTL)
	}
	if c.HTTP.Retries != 0 || c.Server.Addr != ":8080" || c.Watch.Spec != "@every 1m" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if len(c.Server.AllowedOrigins) != 1 || c.Server.AllowedOrigins[0] != "*" || c.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected server defaults: %+v", c.Server)
	}
	if c.Log.Level != "info" || c.Log.Format != "console" {
		t.Fatalf("unexpected log defaults: %+v", c.Log)
	}
	if _, err := c.Location(); err != nil {
		t.Fatalf("location: %v", err)
	}
}

func TestLoadCustomValues(t *testing.T) {
	body := minimalYAML + `http:
  timeout: 5s
  retries: 4
  requestsPerSecond: 2.5
cache:
  songTTL: 90s
  redisAddr: localhost:6379
log:
  level: debug
  format: json
`
	c, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Timeout != 5*time.Second || c.HTTP.Retries != 4 || c.HTTP.RequestsPerSecond != 2.5 {
		t.Fatalf("unexpected http config: %+v", c.HTTP)
	}
	if c.Cache.SongTTL != 90*time.Second || c.Cache.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected cache config: %+v", c.Cache)
	}
	if c.Log.Format != "json" {
		t.Fatalf("want json format, got %q", c.Log.Format)
	}
}

func TestLoadRetriesAreOptIn(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Retries != 0 {
		t.Fatalf("want single-attempt fetches by default, got %d retries", c.HTTP.Retries)
	}

	c, err = Load(writeConfig(t, minimalYAML+"http:\n  retries: 3\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Retries != 3 {
		t.Fatalf("want 3 retries kept, got %d", c.HTTP.Retries)
	}

	if _, err := Load(writeConfig(t, minimalYAML+"http:\n  retries: -1\n")); err == nil {
		t.Fatal("want validation error for negative retries")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ONAIR_ADDR", ":9999")
	t.Setenv("ONAIR_REDIS_DB", "3")
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9999" || c.Cache.RedisDB != 3 {
		t.Fatalf("env overrides not applied: %+v %+v", c.Server, c.Cache)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	p := writeConfig(t, minimalYAML)
	envPath := filepath.Join(filepath.Dir(p), ".env")
	if err := os.WriteFile(envPath, []byte("ONAIR_MQTT_BROKER=tcp://broker:1883\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("ONAIR_MQTT_BROKER") })
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MQTT.Broker != "tcp://broker:1883" {
		t.Fatalf("want broker from .env, got %q", c.MQTT.Broker)
	}
}
