package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvAPIKey    = "YOUTUBE_API_KEY"
	EnvStatePath = "TUBEWATCH_STATE_PATH"
	EnvLogLevel  = "TUBEWATCH_LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment values on cfg.
//
// Channels are read from CHANNEL_<n>_ID, CHANNEL_<n>_WEBHOOK and the optional
// CHANNEL_<n>_NAME (default "channel_name_<n>") for n = 1, 2, ... until an id
// is missing, but only when cfg lists no channels.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		cfg.YouTube.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvStatePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = channelsFromEnv(getenv)
	}
}

func channelsFromEnv(getenv func(string) string) []ChannelConfig {
	var out []ChannelConfig
	for n := 1; ; n++ {
		id := strings.TrimSpace(getenv(fmt.Sprintf("CHANNEL_%d_ID", n)))
		if id == "" {
			return out
		}
		name := strings.TrimSpace(getenv(fmt.Sprintf("CHANNEL_%d_NAME", n)))
		if name == "" {
			name = fmt.Sprintf("channel_name_%d", n)
		}
		out = append(out, ChannelConfig{
			Name:       name,
			ChannelID:  id,
			WebhookURL: strings.TrimSpace(getenv(fmt.Sprintf("CHANNEL_%d_WEBHOOK", n))),
		})
	}
}
