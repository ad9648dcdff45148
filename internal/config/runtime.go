package config

import (
	"strings"
	"time"

	"tubewatch/internal/feed"
	"tubewatch/internal/notifier"
	"tubewatch/internal/ops"
	"tubewatch/internal/storage"
	"tubewatch/internal/watch"
	"tubewatch/internal/youtube"
	logx "tubewatch/pkg/logx"
)

// Runtime is the parsed, typed form of a validated Config. It is immutable
// once built.
type Runtime struct {
	Channels     []feed.Channel
	YouTube      youtube.Config
	VideoBaseURL string
	Schedule     watch.Schedule
	FaultBackoff time.Duration
	Notifier     notifier.Config
	Storage      storage.Config

	ResetOnCorrupt bool

	Logging logx.Config
	Ops     ops.Config
}

// Build validates cfg and converts it to a Runtime.
func Build(cfg *Config) (*Runtime, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	// Validate already checked every field below.
	loc, _ := loadLocation(cfg.Watch.Timezone)
	sched, _ := watch.ParseSchedule(cfg.Watch.Schedule, loc)
	ytTimeout, _ := ParseDurationOrDefault("youtube.timeout", cfg.YouTube.Timeout, 0)
	faultBackoff, _ := ParseDurationOrDefault("watch.fault_backoff", cfg.Watch.FaultBackoff, watch.DefaultFaultBackoff)
	notifyTimeout, _ := ParseDurationField("notifier.timeout", cfg.Notifier.Timeout)
	busy, _ := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	readT, _ := ParseDurationField("ops.read_timeout", cfg.Ops.ReadTimeout)
	writeT, _ := ParseDurationField("ops.write_timeout", cfg.Ops.WriteTimeout)
	idleT, _ := ParseDurationField("ops.idle_timeout", cfg.Ops.IdleTimeout)

	chans := make([]feed.Channel, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		chans = append(chans, feed.Channel{
			Name:       strings.TrimSpace(c.Name),
			ChannelID:  strings.TrimSpace(c.ChannelID),
			WebhookURL: strings.TrimSpace(c.WebhookURL),
		})
	}

	return &Runtime{
		Channels: chans,
		YouTube: youtube.Config{
			Driver:  cfg.YouTube.Driver,
			APIKey:  strings.TrimSpace(cfg.YouTube.APIKey),
			BaseURL: cfg.YouTube.BaseURL,
			FeedURL: cfg.YouTube.FeedURL,
			Timeout: ytTimeout,
		},
		VideoBaseURL: cfg.YouTube.VideoBaseURL,
		Schedule:     sched,
		FaultBackoff: faultBackoff,
		Notifier: notifier.Config{
			RatePerSec:   cfg.Notifier.RatePerSec,
			Timeout:      notifyTimeout,
			VideoBaseURL: cfg.YouTube.VideoBaseURL,
		},
		Storage: storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        strings.TrimSpace(cfg.Storage.Path),
			BusyTimeout: busy,
		},
		ResetOnCorrupt: cfg.Storage.ResetOnCorrupt,
		Logging:        LoggingRuntime(cfg.Logging),
		Ops: ops.Config{
			Enabled:       cfg.Ops.Enabled,
			Addr:          cfg.Ops.Addr,
			Token:         cfg.Ops.Token,
			AllowInsecure: cfg.Ops.AllowInsecure,
			Pprof:         cfg.Ops.Pprof,
			PprofPrefix:   cfg.Ops.PprofPrefix,
			ReadTimeout:   readT,
			WriteTimeout:  writeT,
			IdleTimeout:   idleT,
		},
	}, nil
}

// LoggingRuntime maps the logging section onto logx.
func LoggingRuntime(l LoggingConfig) logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			Token:      l.Telegram.Token,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}
