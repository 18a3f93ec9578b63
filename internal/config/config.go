// Package config provides the gateway's configuration model, YAML loading and
// configuration directory lookup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// AppName names the configuration directory.
const AppName = "tlsgate"

// Config holds everything the gateway needs at startup. It is read once and
// never modified after the server starts.
type Config struct {
	// Listen is the TCP address to accept TLS clients on, as host:port.
	Listen string `yaml:"listen"`

	// PKCS12 is the path of a PKCS#12 archive with the server identity, and
	// Password decrypts it. Mutually exclusive with CertFile/KeyFile.
	PKCS12   string `yaml:"pkcs12"`
	Password string `yaml:"password"`

	// CertFile and KeyFile are a PEM certificate chain and private key.
	CertFile string `yaml:"cert"`
	KeyFile  string `yaml:"key"`

	// SelfSigned generates CertFile/KeyFile when they do not exist yet.
	SelfSigned      bool     `yaml:"self_signed"`
	SelfSignedHosts []string `yaml:"self_signed_hosts"`

	// DestinationPattern is the regular expression CONNECT targets must match.
	DestinationPattern string `yaml:"destination_pattern"`

	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // "console" or "json"
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DestinationPattern == "" {
		c.DestinationPattern = ".*"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
}

// Finalize applies defaults and validates the configuration.
func (c *Config) Finalize() error {
	c.applyDefaults()

	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}

	hasPEM := c.CertFile != "" || c.KeyFile != ""
	switch {
	case c.PKCS12 != "" && hasPEM:
		return errors.New("pkcs12 and cert/key are mutually exclusive")
	case c.PKCS12 == "" && !hasPEM:
		return errors.New("a TLS identity is required: set pkcs12 or cert and key")
	case hasPEM && (c.CertFile == "" || c.KeyFile == ""):
		return errors.New("cert and key must be set together")
	case c.SelfSigned && c.PKCS12 != "":
		return errors.New("self_signed requires cert and key paths")
	}

	if _, err := regexp.Compile(c.DestinationPattern); err != nil {
		return fmt.Errorf("invalid destination_pattern: %w", err)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	return nil
}

// Load reads a YAML configuration file. Unknown keys are rejected. The result
// is not finalized so that command-line overrides can still be applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// GetConfigDir returns the configuration directory for tlsgate.
// It follows platform-specific conventions:
// - Windows: %APPDATA%\tlsgate
// - Unix-like: $XDG_CONFIG_HOME/tlsgate or $HOME/.config/tlsgate
func GetConfigDir() (string, error) {
	// Check for XDG_CONFIG_HOME first (cross-platform standard)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, AppName), nil
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, AppName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// DefaultPath returns the config file used when none is given explicitly, or
// "" when it does not exist.
func DefaultPath() string {
	dir, err := GetConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "config.yaml")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}
