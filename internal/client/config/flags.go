package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/twidder/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     REST API base URL
//	-w string     realtime channel URL (empty disables the channel)
//	-s string     credential signer: bearer, hmac, jwt
//	-b string     backend: http or stub
//	-d string     path of the local SQLite database
//	-l string     log level
//	-t duration   channel dial timeout, e.g. 5s
//
// os.Args is filtered with flagx.FilterArgs so flags owned by other
// components (like -c) do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-s", "-b", "-d", "-l", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "REST API base URL")
	fs.StringVar(&cfg.ChannelURL, "w", cfg.ChannelURL, "realtime channel URL")
	fs.StringVar(&cfg.Signer, "s", cfg.Signer, "credential signer (bearer, hmac, jwt)")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "backend (http, stub)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.ChannelDialTimeout, "t", cfg.ChannelDialTimeout, "channel dial timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
