package config

// Config is the static bootstrap configuration loaded from the YAML file.
// Anything an operator edits at runtime (search criteria, allowed hours,
// service chat) lives in the sqlite settings table instead.
//
// All duration fields are Go duration strings (e.g. "200ms", "5s", "15m").
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	GitHub   GitHubConfig   `yaml:"github"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// OwnerUserID is seeded as an admin at startup so the bot is never
	// locked out of its own administration.
	OwnerUserID int64  `yaml:"owner_user_id"`
	PollTimeout string `yaml:"poll_timeout,omitempty"` // default 10s
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

type GitHubConfig struct {
	Token string `yaml:"token,omitempty"`
}

type StorageConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

// PipelineConfig sets the tick cadence and the per-kind dispatch knobs.
type PipelineConfig struct {
	PollEvery     string `yaml:"poll_every,omitempty"`     // default 15m
	DispatchEvery string `yaml:"dispatch_every,omitempty"` // default 5s
	MinInterval   string `yaml:"min_interval,omitempty"`   // default 1h

	Telegram DispatchConfig `yaml:"telegram"`
	Discord  DispatchConfig `yaml:"discord"`

	// NotifyRatePerSec caps status lines to the service chat.
	NotifyRatePerSec int `yaml:"notify_rate_per_sec,omitempty"` // default 1
}

type DispatchConfig struct {
	BatchLimit int    `yaml:"batch_limit,omitempty"`
	SendDelay  string `yaml:"send_delay,omitempty"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level,omitempty"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}
