// Package config loads runtime configuration for the Twidder terminal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080/api/v1",
//	  "channel_url": "ws://127.0.0.1:8080/api/v1/channel",
//	  "signer": "hmac",
//	  "backend": "http",
//	  "database_path": "twidder.db",
//	  "log_level": "info",
//	  "channel_dial_timeout": "5s"
//	}
//
// The package does not read environment variables.
package config
