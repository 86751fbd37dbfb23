package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate ensures the configuration is usable. All problems are reported
// together.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateMSL(),
		c.validateEndpoints(),
		c.validateCache(),
		c.validateHTTP(),
		c.validateAuth(),
		c.validateLogging(),
	)
}

func (c *Config) validateMSL() error {
	var errs []error
	if c.MSL.ESN == "" {
		errs = append(errs, fmt.Errorf("msl.esn is required (or set %s)", envESN))
	}
	switch c.MSL.Scheme {
	case SchemeAsymmetric, SchemeWidevine:
	default:
		errs = append(errs, fmt.Errorf("msl.scheme: unsupported value %q", c.MSL.Scheme))
	}
	switch c.MSL.Verify {
	case "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("msl.verify: unsupported value %q", c.MSL.Verify))
	}
	if d, err := time.ParseDuration(c.MSL.TokenMargin); err != nil {
		errs = append(errs, fmt.Errorf("msl.token_margin: invalid duration %q", c.MSL.TokenMargin))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("msl.token_margin: must be positive, got %q", c.MSL.TokenMargin))
	}
	return errors.Join(errs...)
}

func (c *Config) validateEndpoints() error {
	var errs []error
	for name, raw := range map[string]string{"endpoints.manifest": c.Endpoints.Manifest, "endpoints.license": c.Endpoints.License} {
		u, err := url.Parse(raw)
		if raw == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid URL %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case BackendFile:
		if c.Cache.Dir == "" {
			return errors.New("cache.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
		if c.MSL.Scheme == SchemeAsymmetric && c.Cache.Dir == "" {
			return errors.New("cache.dir is required to keep the asymmetric keypair")
		}
	default:
		return fmt.Errorf("cache.backend: unsupported value %q", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.Proxy != "" {
		if _, err := url.Parse(c.HTTP.Proxy); err != nil {
			return fmt.Errorf("http.proxy: %w", err)
		}
	}
	return nil
}

func (c *Config) validateAuth() error {
	if (c.Auth.Email == "") != (c.Auth.Password == "") {
		return errors.New("auth.email and auth.password must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
