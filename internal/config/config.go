package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// MSL holds protocol identity and behaviour.
type MSL struct {
	ESN         string   `toml:"esn"`
	Recipient   string   `toml:"recipient"`
	Languages   []string `toml:"languages"`
	Scheme      string   `toml:"scheme"`
	Verify      string   `toml:"verify"`
	TokenMargin string   `toml:"token_margin"`
}

// Endpoints are the MSL router URLs.
type Endpoints struct {
	Manifest string `toml:"manifest"`
	License  string `toml:"license"`
}

// Cache selects where negotiated credentials are kept.
type Cache struct {
	Dir        string `toml:"dir"`
	Passphrase string `toml:"passphrase"`
	Lock       bool   `toml:"lock"`
	Backend    string `toml:"backend"`
}

// Redis configures the redis cache backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// HTTP configures the transport.
type HTTP struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	Proxy          string `toml:"proxy"`
}

// Auth holds optional per-request user credentials.
type Auth struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full client configuration.
type Config struct {
	MSL       MSL       `toml:"msl"`
	Endpoints Endpoints `toml:"endpoints"`
	Cache     Cache     `toml:"cache"`
	Redis     Redis     `toml:"redis"`
	HTTP      HTTP      `toml:"http"`
	Auth      Auth      `toml:"auth"`
	Logging   Logging   `toml:"logging"`
}

const (
	SchemeAsymmetric = "asymmetric"
	SchemeWidevine   = "widevine"

	BackendFile  = "file"
	BackendRedis = "redis"

	envESN        = "MSL_ESN"
	envPassphrase = "MSL_CACHE_PASSPHRASE"
)

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mslclient/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. exists reports whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config %q is a directory", expanded)
	}
	return expanded, true, nil
}

// Margin returns the parsed token margin.
func (c *Config) Margin() time.Duration {
	d, err := time.ParseDuration(c.MSL.TokenMargin)
	if err != nil {
		return 0
	}
	return d
}

// Timeout returns the HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
