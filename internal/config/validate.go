package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tubewatch/internal/watch"
)

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if len(cfg.Channels) == 0 {
		add("channels: at least one channel is required")
	}
	seen := make(map[string]struct{}, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		name := strings.TrimSpace(ch.Name)
		switch {
		case name == "":
			add("channels[%d].name: required", i)
		default:
			if _, dup := seen[name]; dup {
				add("channels[%d].name: duplicate %q", i, name)
			}
			seen[name] = struct{}{}
		}
		if strings.TrimSpace(ch.ChannelID) == "" {
			add("channels[%d].channel_id: required", i)
		}
		if err := validateWebhook(ch.WebhookURL); err != nil {
			add("channels[%d].webhook_url: %v", i, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.YouTube.Driver)) {
	case "", "api":
		if strings.TrimSpace(cfg.YouTube.APIKey) == "" {
			add("youtube.api_key: required for the api driver (or set %s)", EnvAPIKey)
		}
	case "rss", "feed":
	default:
		add("youtube.driver: unknown %q", cfg.YouTube.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path: required")
		}
	default:
		add("storage.driver: unknown %q", cfg.Storage.Driver)
	}

	for path, raw := range map[string]string{
		"youtube.timeout":      cfg.YouTube.Timeout,
		"watch.fault_backoff":  cfg.Watch.FaultBackoff,
		"notifier.timeout":     cfg.Notifier.Timeout,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
		"ops.read_timeout":     cfg.Ops.ReadTimeout,
		"ops.write_timeout":    cfg.Ops.WriteTimeout,
		"ops.idle_timeout":     cfg.Ops.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	loc, err := loadLocation(cfg.Watch.Timezone)
	if err != nil {
		add("watch.timezone: %v", err)
	}
	if _, err := watch.ParseSchedule(cfg.Watch.Schedule, loc); err != nil {
		add("watch.schedule: %v", err)
	}
	if cfg.Notifier.RatePerSec < 0 {
		add("notifier.rate_per_sec: must be >= 0")
	}
	return errors.Join(errs...)
}

func validateWebhook(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("required")
	}
	u, err := url.Parse(s)
	if err != nil {
		// url errors echo the input; keep the token out
		return errors.New("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

