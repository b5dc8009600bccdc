package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/twidder/internal/client/signer"
)

const (
	BackendHTTP = "http"
	BackendStub = "stub"
)

// Config holds runtime settings for the Twidder terminal client.
//
// Fields:
//   - ServerURL: base URL of the REST API, e.g. http://host:8080/api/v1.
//   - ChannelURL: WebSocket URL of the realtime channel; empty disables it.
//   - Signer: credential strategy, one of bearer, hmac, jwt.
//   - Backend: http talks to ServerURL, stub runs an in-memory backend.
//   - DatabasePath: SQLite file holding the persisted session.
//   - LogLevel: debug, info, warn or error.
//   - ChannelDialTimeout: bound on the WebSocket handshake only.
type Config struct {
	ServerURL          string
	ChannelURL         string
	Signer             string
	Backend            string
	DatabasePath       string
	LogLevel           string
	ChannelDialTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/api/v1"
	c.ChannelURL = ""
	c.Signer = signer.StrategyBearer
	c.Backend = BackendHTTP
	c.DatabasePath = "twidder.db"
	c.LogLevel = "info"
	c.ChannelDialTimeout = 10 * time.Second
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if _, err := signer.New(c.Signer); err != nil {
		return err
	}
	switch c.Backend {
	case BackendHTTP:
		if c.ServerURL == "" {
			return fmt.Errorf("server url is required for the %s backend", BackendHTTP)
		}
	case BackendStub:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones. It panics on an invalid result.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
