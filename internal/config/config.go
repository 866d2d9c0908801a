// ABOUTME: Shichen configuration management with backend selection
// ABOUTME: Handles the JSON config file, environment overrides, and storage backend factory

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/storage"
	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment override.
const envPrefix = "SHICHEN_"

// Config stores shichen configuration.
type Config struct {
	// Backend selects the history backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts shichen.db here. Badger uses the badger/ subdirectory.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/shichen.
	DataDir string `json:"data_dir,omitempty"`

	// Timezone is an IANA zone name overriding the system zone.
	Timezone string `json:"timezone,omitempty"`

	GPS   GPSConfig   `json:"gps,omitzero"`
	GeoIP GeoIPConfig `json:"geoip,omitzero"`
	MQTT  MQTTConfig  `json:"mqtt,omitzero"`
	HTTP  HTTPConfig  `json:"http,omitzero"`
}

// GPSConfig describes the NMEA receiver. Port and Replay are exclusive;
// Replay reads a recorded NMEA log instead of a serial device.
type GPSConfig struct {
	Port   string `json:"port,omitempty"`
	Baud   uint   `json:"baud,omitempty"`
	Replay string `json:"replay,omitempty"`
}

// Enabled reports whether a GPS source is configured.
func (g GPSConfig) Enabled() bool {
	return g.Port != "" || g.Replay != ""
}

// GeoIPConfig points at a GeoLite2/GeoIP2 City database.
type GeoIPConfig struct {
	Database string `json:"database,omitempty"`
	Address  string `json:"address,omitempty"`
}

// MQTTConfig configures publication of solar time updates.
type MQTTConfig struct {
	Broker   string `json:"broker,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Listen string `json:"listen,omitempty"`
}

// Defaults applied by the getters.
const (
	DefaultMQTTTopic  = "shichen/solar-time"
	DefaultHTTPListen = "127.0.0.1:8642"
	defaultDBFilename = storage.SQLiteFileName
)

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return storage.BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetMQTTTopic returns the configured topic or the default.
func (c *Config) GetMQTTTopic() string {
	if c.MQTT.Topic == "" {
		return DefaultMQTTTopic
	}
	return c.MQTT.Topic
}

// GetHTTPListen returns the configured listen address or the default.
func (c *Config) GetHTTPListen() string {
	if c.HTTP.Listen == "" {
		return DefaultHTTPListen
	}
	return c.HTTP.Listen
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// defaultDataDir returns the default XDG data directory for shichen.
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "shichen")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage(l *log.Logger) (storage.Repository, error) {
	return storage.Open(c.GetBackend(), c.GetDataDir(), l)
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "shichen", "config.json")
}

// Load reads config from disk, then applies environment overrides. A
// missing file yields the defaults and writes them out for next time.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg := &Config{Backend: storage.BackendSQLite}
		if saveErr := cfg.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
		}
		cfg.ApplyEnv()
		return cfg, nil
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from SHICHEN_* environment variables.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	str("BACKEND", &c.Backend)
	str("DATA_DIR", &c.DataDir)
	str("TIMEZONE", &c.Timezone)
	str("GPS_PORT", &c.GPS.Port)
	str("GPS_REPLAY", &c.GPS.Replay)
	str("GEOIP_DATABASE", &c.GeoIP.Database)
	str("GEOIP_ADDRESS", &c.GeoIP.Address)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC", &c.MQTT.Topic)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	str("HTTP_LISTEN", &c.HTTP.Listen)

	if v, ok := os.LookupEnv(envPrefix + "GPS_BAUD"); ok {
		if baud, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.GPS.Baud = uint(baud)
		} else {
			fmt.Fprintf(os.Stderr, "warning: ignoring %sGPS_BAUD=%q: %v\n", envPrefix, v, err)
		}
	}
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file in path's directory and renames it
// into place, so readers never see a partial config.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // user config directory
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
