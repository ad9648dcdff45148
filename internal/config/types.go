package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings ("15s", "1m"). Secrets (api key, webhook URLs, tokens) are
// never logged.
//
// Example (YAML):
//
//	youtube:
//	  api_key: "..."
//	channels:
//	  - name: "channel_name_1"
//	    channel_id: "UC..."
//	    webhook_url: "https://discord.com/api/webhooks/..."
//	watch:
//	  schedule: "10m"
//	storage:
//	  path: "./last_videos.json"
type Config struct {
	YouTube  YouTubeConfig   `json:"youtube"`
	Channels []ChannelConfig `json:"channels"`
	Watch    WatchConfig     `json:"watch"`
	Notifier NotifierConfig  `json:"notifier"`
	Storage  StorageConfig   `json:"storage"`
	Logging  LoggingConfig   `json:"logging"`
	Ops      OpsConfig       `json:"ops"`
}

// YouTubeConfig selects the probe backend.
//
// Driver values:
//   - "api" (default): Data API v3 search endpoint, requires api_key
//   - "rss": public channel feed, no key
type YouTubeConfig struct {
	APIKey       string `json:"api_key,omitempty"`
	Driver       string `json:"driver,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	FeedURL      string `json:"feed_url,omitempty"`
	VideoBaseURL string `json:"video_base_url,omitempty"` // default: "https://youtu.be"
	Timeout      string `json:"timeout,omitempty"`        // default: "15s"
}

type ChannelConfig struct {
	Name       string `json:"name"`
	ChannelID  string `json:"channel_id"`
	WebhookURL string `json:"webhook_url"`
}

type WatchConfig struct {
	// Schedule is an interval ("10m", "00:10") or a cron expression
	// ("*/10 * * * *", "@hourly").
	Schedule     string `json:"schedule,omitempty"`
	FaultBackoff string `json:"fault_backoff,omitempty"` // default: "1m"
	Timezone     string `json:"timezone,omitempty"`      // cron only; default: local
}

type NotifierConfig struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // default: 2
	Timeout    string  `json:"timeout,omitempty"`      // default: "10s"
}

// StorageConfig controls last-seen persistence.
//
//	"storage": { "driver": "file", "path": "./last_videos.json" }
type StorageConfig struct {
	Driver         string `json:"driver,omitempty"`
	Path           string `json:"path,omitempty"`
	ResetOnCorrupt bool   `json:"reset_on_corrupt,omitempty"`
	BusyTimeout    string `json:"busy_timeout,omitempty"` // sqlite
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// OpsConfig controls the optional operator HTTP server.
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:9464").
//   - A non-loopback addr needs a token or an explicit allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	PprofPrefix   string `json:"pprof_prefix,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		YouTube: YouTubeConfig{Driver: "api", Timeout: "15s", VideoBaseURL: "https://youtu.be"},
		Watch:   WatchConfig{Schedule: "10m", FaultBackoff: "1m"},
		Notifier: NotifierConfig{
			RatePerSec: 2,
			Timeout:    "10s",
		},
		Storage: StorageConfig{Driver: "file", Path: "./last_videos.json"},
		Logging: LoggingConfig{Level: "info", Console: true},
		Ops:     OpsConfig{Addr: "127.0.0.1:9464"},
	}
}
