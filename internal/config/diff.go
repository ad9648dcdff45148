package config

import (
	"reflect"
	"strings"

	logx "tubewatch/pkg/logx"
)

// SummarizeChange lists the changed top-level sections and safe attrs for
// logging. Secrets (api key, webhook URLs, tokens) only ever appear as *_set
// booleans.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.YouTube, newCfg.YouTube) {
		changed = append(changed, "youtube")
		attrs = append(attrs,
			logx.String("youtube.driver", newCfg.YouTube.Driver),
			logx.Bool("youtube.api_key_set", strings.TrimSpace(newCfg.YouTube.APIKey) != ""),
			logx.Bool("youtube.api_key_changed", oldCfg.YouTube.APIKey != newCfg.YouTube.APIKey),
		)
	}
	if !reflect.DeepEqual(oldCfg.Channels, newCfg.Channels) {
		changed = append(changed, "channels")
		names := make([]string, 0, len(newCfg.Channels))
		for _, c := range newCfg.Channels {
			names = append(names, c.Name)
		}
		attrs = append(attrs,
			logx.Int("channels.count", len(newCfg.Channels)),
			logx.String("channels.names", strings.Join(names, ",")),
		)
	}
	if oldCfg.Watch != newCfg.Watch {
		changed = append(changed, "watch")
		attrs = append(attrs,
			logx.String("watch.schedule", newCfg.Watch.Schedule),
			logx.String("watch.timezone", newCfg.Watch.Timezone),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs, logx.Any("notifier.rate_per_sec", newCfg.Notifier.RatePerSec))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Ops != newCfg.Ops {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
			logx.Bool("ops.pprof", newCfg.Ops.Pprof),
		)
	}
	return changed, attrs
}

// OnlyLogging reports whether sections contains nothing but "logging", the
// one section applied without a restart.
func OnlyLogging(sections []string) bool {
	for _, s := range sections {
		if s != "logging" {
			return false
		}
	}
	return true
}
