package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeMSL()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.Endpoints.Manifest = strings.TrimSpace(c.Endpoints.Manifest)
	c.Endpoints.License = strings.TrimSpace(c.Endpoints.License)
	c.HTTP.Proxy = strings.TrimSpace(c.HTTP.Proxy)
	c.Auth.Email = strings.TrimSpace(c.Auth.Email)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

func (c *Config) normalizeMSL() {
	c.MSL.ESN = strings.TrimSpace(c.MSL.ESN)
	if c.MSL.ESN == "" {
		c.MSL.ESN = strings.TrimSpace(os.Getenv(envESN))
	}
	c.MSL.Recipient = strings.TrimSpace(c.MSL.Recipient)
	c.MSL.Scheme = strings.ToLower(strings.TrimSpace(c.MSL.Scheme))
	c.MSL.Verify = strings.ToLower(strings.TrimSpace(c.MSL.Verify))
	c.MSL.TokenMargin = strings.TrimSpace(c.MSL.TokenMargin)

	langs := c.MSL.Languages[:0]
	for _, l := range c.MSL.Languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	c.MSL.Languages = langs
}

func (c *Config) normalizeCache() error {
	if c.Cache.Passphrase == "" {
		c.Cache.Passphrase = os.Getenv(envPassphrase)
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	var err error
	if c.Cache.Dir, err = expandPath(strings.TrimSpace(c.Cache.Dir)); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	return nil
}
