package config

import "time"

// Config holds runtime settings for the wgdaemon CLI.
//
// Fields:
//   - BackendURL: base URL of the provisioning API, including the /api/v1/ prefix.
//   - DatabasePath: SQLite file that keeps the session and device keys.
//   - TunnelDir: directory the rendered WireGuard configs are installed into.
//   - RequestTimeout: upper bound for a single HTTP attempt.
//   - RefreshTimeout: upper bound for a shared token refresh.
//   - CompensationAttempts, CompensationDelay: how hard rollback retries the
//     remote delete of a half-provisioned device.
//   - Debug: enables debug logging and redacted HTTP exchange dumps.
type Config struct {
	BackendURL           string
	DatabasePath         string
	TunnelDir            string
	RequestTimeout       time.Duration
	RefreshTimeout       time.Duration
	CompensationAttempts int
	CompensationDelay    time.Duration
	CompensationTimeout  time.Duration
	Debug                bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:8080/api/v1/"
	c.DatabasePath = "wgdaemon.db"
	c.TunnelDir = "tunnels"
	c.RequestTimeout = 15 * time.Second
	c.RefreshTimeout = 15 * time.Second
	c.CompensationAttempts = 3
	c.CompensationDelay = 500 * time.Millisecond
	c.CompensationTimeout = 30 * time.Second
	c.Debug = false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (and an optional dotenv file), JSON (if present) and
// command-line flags (if present). Later sources take precedence over earlier
// ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
