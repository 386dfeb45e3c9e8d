// Package config resolves delaydeck settings from defaults, an optional TOML
// file and DELAYDECK_* environment variables. Command-line flags are applied
// on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bhandras/delaydeck/internal/obsws"
	"github.com/bhandras/delaydeck/pkg/logger"
)

const (
	DefaultHost        = "localhost"
	DefaultPort        = 4455
	DefaultCallTimeout = 10 * time.Second
	DefaultPanelAddr   = "127.0.0.1:4460"
	DefaultLogLevel    = "info"
)

type Config struct {
	// Host and Port locate obs-websocket.
	Host string
	Port int
	// Password is sent only when the server asks for one.
	Password string
	// Encoding is the websocket subprotocol: json or msgpack.
	Encoding obsws.Encoding
	// CallTimeout bounds each remote call.
	CallTimeout time.Duration

	// DataDir holds the settings database and its secret key.
	DataDir string
	// PanelAddr is the control API listen address.
	PanelAddr string
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string

	// Path is the config file that was read, if any.
	Path string
}

type fileConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Password    string `toml:"password"`
	Encoding    string `toml:"encoding"`
	CallTimeout string `toml:"call_timeout"`
	DataDir     string `toml:"data_dir"`
	PanelAddr   string `toml:"panel_addr"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		Encoding:    obsws.EncodingJSON,
		CallTimeout: DefaultCallTimeout,
		DataDir:     defaultDataDir(),
		PanelAddr:   DefaultPanelAddr,
		LogLevel:    DefaultLogLevel,
	}
}

// Load reads the config file from the XDG config dir (if present) and
// applies environment overrides.
func Load() (*Config, error) {
	return LoadFile(configFilePath())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if enc, err := obsws.ParseEncoding(string(cfg.Encoding)); err == nil {
		cfg.Encoding = enc
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warnf("config: unknown key %q in %s", key.String(), path)
	}

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.Password != "" {
		cfg.Password = fc.Password
	}
	if fc.Encoding != "" {
		cfg.Encoding = obsws.Encoding(fc.Encoding)
	}
	if fc.CallTimeout != "" {
		d, err := time.ParseDuration(fc.CallTimeout)
		if err != nil {
			return fmt.Errorf("config %s: call_timeout: %w", path, err)
		}
		cfg.CallTimeout = d
	}
	if fc.DataDir != "" {
		cfg.DataDir = expandTilde(fc.DataDir)
	}
	if fc.PanelAddr != "" {
		cfg.PanelAddr = fc.PanelAddr
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DELAYDECK_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DELAYDECK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DELAYDECK_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := getenvFirst("DELAYDECK_PASSWORD", "OBS_WEBSOCKET_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("DELAYDECK_ENCODING"); v != "" {
		cfg.Encoding = obsws.Encoding(v)
	}
	if v := os.Getenv("DELAYDECK_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DELAYDECK_CALL_TIMEOUT %q: %w", v, err)
		}
		cfg.CallTimeout = d
	}
	if v := os.Getenv("DELAYDECK_DATA_DIR"); v != "" {
		cfg.DataDir = expandTilde(v)
	}
	if v := os.Getenv("DELAYDECK_PANEL_ADDR"); v != "" {
		cfg.PanelAddr = v
	}
	if v := os.Getenv("DELAYDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := obsws.ParseEncoding(string(c.Encoding)); err != nil {
		errs = append(errs, err)
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data dir is empty"))
	}
	return errors.Join(errs...)
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "delaydeck")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "delaydeck")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".delaydeck")
	}
	return ".delaydeck"
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
