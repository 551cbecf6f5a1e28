package app

import (
	"fmt"
	"net/url"

	"emberpost/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(cfg *config.Config) error {
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("cache path is empty: set --db flag, EMBERPOST_DB_PATH env, or storage.db_path in config")
	}

	if cfg.Remote.Endpoint == "" {
		return fmt.Errorf("remote endpoint is empty: set --remote flag, EMBERPOST_REMOTE_ENDPOINT env, or remote.endpoint in config")
	}
	u, err := url.Parse(cfg.Remote.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote endpoint is not a valid URL: %s", cfg.Remote.Endpoint)
	}

	if cfg.Sync.RenderInterval.Duration() > 0 && cfg.Sync.Interval.Duration() > 0 &&
		cfg.Sync.RenderInterval.Duration() > cfg.Sync.Interval.Duration() {
		return fmt.Errorf("sync.render_interval must not exceed sync.interval")
	}
	return nil
}
