package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, env nor flags provide a value.
const (
	DefaultPingTimeout    = 5 * time.Second
	DefaultSyncInterval   = 30 * time.Second
	DefaultRenderInterval = 10 * time.Second
)

// Addr returns host:port for the local HTTP API.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "127.0.0.1"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8474
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// PingTimeout returns the connectivity probe timeout with its default.
func (c *Config) PingTimeout() time.Duration {
	if d := c.Remote.PingTimeout.Duration(); d > 0 {
		return d
	}
	return DefaultPingTimeout
}

// SyncInterval returns the reconciliation interval with its default.
func (c *Config) SyncInterval() time.Duration {
	if d := c.Sync.Interval.Duration(); d > 0 {
		return d
	}
	return DefaultSyncInterval
}

// RenderInterval returns the UI refresh interval with its default.
func (c *Config) RenderInterval() time.Duration {
	if d := c.Sync.RenderInterval.Duration(); d > 0 {
		return d
	}
	return DefaultRenderInterval
}

// Load reads a YAML config file from path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, endpoint string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", "127.0.0.1:8474", "HTTP listen address for the UI API")
	dbPtr := flag.String("db", "./.emberpost", "Local cache path (pebble)")
	endpointPtr := flag.String("remote", "", "Remote sheet endpoint URL")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *endpointPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies EMBERPOST_* environment overrides onto cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("EMBERPOST_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("EMBERPOST_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("EMBERPOST_REMOTE_ENDPOINT"); v != "" {
		envUsed = true
		cfg.Remote.Endpoint = v
	}
	if v := os.Getenv("EMBERPOST_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("EMBERPOST_RENDER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Sync.RenderInterval = Duration(d)
		}
	}
	if v := os.Getenv("EMBERPOST_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("EMBERPOST_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("EMBERPOST_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("EMBERPOST_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Enabled = true
		cfg.Retention.Cron = v
	}
	return envUsed
}

// LoadEffective loads config from the given path (file) and applies
// environment overrides. A missing file is not an error; env and flags can
// carry a full configuration on their own.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the EMBERPOST_CONFIG env var when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("EMBERPOST_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
