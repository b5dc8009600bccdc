package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/twidder/internal/flagx"
	"github.com/dmitrijs2005/twidder/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "5s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL          string         `json:"server_url"`
	ChannelURL         string         `json:"channel_url"`
	Signer             string         `json:"signer"`
	Backend            string         `json:"backend"`
	DatabasePath       string         `json:"database_path"`
	LogLevel           string         `json:"log_level"`
	ChannelDialTimeout timex.Duration `json:"channel_dial_timeout"`
}

// parseJson overlays Config with the non-empty values of the JSON file named
// by -c or -config. Without either flag it does nothing. Read and decode
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	overlay(&cfg.ServerURL, jc.ServerURL)
	overlay(&cfg.ChannelURL, jc.ChannelURL)
	overlay(&cfg.Signer, jc.Signer)
	overlay(&cfg.Backend, jc.Backend)
	overlay(&cfg.DatabasePath, jc.DatabasePath)
	overlay(&cfg.LogLevel, jc.LogLevel)
	if jc.ChannelDialTimeout.Duration > 0 {
		cfg.ChannelDialTimeout = jc.ChannelDialTimeout.Duration
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
