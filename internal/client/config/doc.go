// Package config loads runtime configuration for the wgdaemon CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed WGDAEMON_, after loading a dotenv file
//     named by -env or ./.env when it exists.
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-u string      backend base URL
//	-db string     SQLite database path
//	-t string      tunnel config directory
//	-rt duration   per-request timeout
//	-ft duration   token refresh timeout
//	-n int         compensation delete attempts
//	-d duration    delay between compensation attempts
//	-debug         verbose logging with redacted HTTP dumps
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "15s" or integer nanoseconds:
//
//	{
//	  "backend_url": "https://vpn.example.net/api/v1/",
//	  "database_path": "wgdaemon.db",
//	  "tunnel_dir": "tunnels",
//	  "request_timeout": "15s",
//	  "refresh_timeout": "15s",
//	  "compensation_attempts": 3,
//	  "compensation_delay": "500ms",
//	  "compensation_timeout": "30s",
//	  "debug": false
//	}
package config
