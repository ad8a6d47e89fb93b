package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/wgdaemon/internal/flagx"
)

var knownFlags = []string{"-u", "-db", "-t", "-rt", "-ft", "-n", "-d", "-debug"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string      backend base URL
//	-db string     SQLite database path
//	-t string      tunnel config directory
//	-rt duration   per-request timeout
//	-ft duration   token refresh timeout
//	-n int         compensation delete attempts
//	-d duration    delay between compensation attempts
//	-debug         verbose logging
//
// Note: os.Args is filtered with flagx.FilterArgs so -c and -env, which other
// loaders consume, do not trip the parser.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BackendURL, "u", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to the local database")
	fs.StringVar(&cfg.TunnelDir, "t", cfg.TunnelDir, "directory for tunnel configs")
	fs.DurationVar(&cfg.RequestTimeout, "rt", cfg.RequestTimeout, "per-request timeout")
	fs.DurationVar(&cfg.RefreshTimeout, "ft", cfg.RefreshTimeout, "token refresh timeout")
	fs.IntVar(&cfg.CompensationAttempts, "n", cfg.CompensationAttempts, "compensation delete attempts")
	fs.DurationVar(&cfg.CompensationDelay, "d", cfg.CompensationDelay, "delay between compensation attempts")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
