package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/wgdaemon/internal/flagx"
	"github.com/dmitrijs2005/wgdaemon/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "15s" or as integer nanoseconds. Fields absent from the file
// leave the current Config untouched.
type JsonConfig struct {
	BackendURL           string         `json:"backend_url"`
	DatabasePath         string         `json:"database_path"`
	TunnelDir            string         `json:"tunnel_dir"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	RefreshTimeout       timex.Duration `json:"refresh_timeout"`
	CompensationAttempts int            `json:"compensation_attempts"`
	CompensationDelay    timex.Duration `json:"compensation_delay"`
	CompensationTimeout  timex.Duration `json:"compensation_timeout"`
	Debug                *bool          `json:"debug"`
}

// parseJson overlays Config with values loaded from a JSON file whose path
// comes from -c or -config. Without either flag nothing is loaded.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BackendURL != "" {
		cfg.BackendURL = jc.BackendURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.TunnelDir != "" {
		cfg.TunnelDir = jc.TunnelDir
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshTimeout.Duration > 0 {
		cfg.RefreshTimeout = jc.RefreshTimeout.Duration
	}
	if jc.CompensationAttempts > 0 {
		cfg.CompensationAttempts = jc.CompensationAttempts
	}
	if jc.CompensationDelay.Duration > 0 {
		cfg.CompensationDelay = jc.CompensationDelay.Duration
	}
	if jc.CompensationTimeout.Duration > 0 {
		cfg.CompensationTimeout = jc.CompensationTimeout.Duration
	}
	if jc.Debug != nil {
		cfg.Debug = *jc.Debug
	}
}
