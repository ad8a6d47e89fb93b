package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names read by parseEnv.
const (
	EnvBackendURL           = "WGDAEMON_BACKEND_URL"
	EnvDatabasePath         = "WGDAEMON_DB"
	EnvTunnelDir            = "WGDAEMON_TUNNEL_DIR"
	EnvRequestTimeout       = "WGDAEMON_REQUEST_TIMEOUT"
	EnvRefreshTimeout       = "WGDAEMON_REFRESH_TIMEOUT"
	EnvCompensationAttempts = "WGDAEMON_COMPENSATION_ATTEMPTS"
	EnvCompensationDelay    = "WGDAEMON_COMPENSATION_DELAY"
	EnvCompensationTimeout  = "WGDAEMON_COMPENSATION_TIMEOUT"
	EnvDebug                = "WGDAEMON_DEBUG"
)

const defaultEnvFile = ".env"

// loadDotEnv loads the dotenv file named by -env, or ./.env when present.
// Variables already set in the process environment win over the file.
func loadDotEnv() error {
	path := flagx.EnvFileFlag()
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	return godotenv.Load(path)
}

// parseEnv overlays Config with WGDAEMON_* variables. Empty variables are
// ignored. Panics on malformed values, like the other loaders.
func parseEnv(cfg *Config) {
	if err := loadDotEnv(); err != nil {
		panic(err)
	}

	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(EnvTunnelDir); v != "" {
		cfg.TunnelDir = v
	}
	envDuration(EnvRequestTimeout, &cfg.RequestTimeout)
	envDuration(EnvRefreshTimeout, &cfg.RefreshTimeout)
	envDuration(EnvCompensationDelay, &cfg.CompensationDelay)
	envDuration(EnvCompensationTimeout, &cfg.CompensationTimeout)

	if v := os.Getenv(EnvCompensationAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		cfg.CompensationAttempts = n
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		cfg.Debug = b
	}
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
