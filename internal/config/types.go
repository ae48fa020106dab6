package config

import (
	"strings"
	"time"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPageSize     = 50
	MaxPageSize         = 100
	DefaultPacing       = 500 * time.Millisecond
	DefaultStateFile    = ".message-state.json"
	DefaultFetchTimeout = 15 * time.Second
	DefaultGraphQLURL   = "https://api.whop.com/public-graphql"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Poll     PollConfig     `json:"poll"`
	Channels []Channel      `json:"channels"`
	Whop     WhopConfig     `json:"whop"`
	Delivery DeliveryConfig `json:"delivery"`
	Storage  StorageConfig  `json:"storage"`
}

// Channel is one chat feed to relay. Key is the operator-facing name
// (e.g. "ONLINE_SUCCESS"), ID the opaque feed id ("chat_feed_...").
type Channel struct {
	Key  string `json:"key"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PollConfig controls how often channels are polled.
//
// Interval is a Go duration string ("3s"). Schedule, when set, overrides
// Interval and accepts anything scheduler.ParseSchedule does (cron
// expressions, "@every 5s", "interval:10s", "00:05").
type PollConfig struct {
	Interval string `json:"interval,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// WhopConfig configures the upstream GraphQL API.
// Credentials are never read from the config file, only from the environment.
type WhopConfig struct {
	GraphQLURL string `json:"graphql_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`

	APIKey     string `json:"-"`
	CompanyKey string `json:"-"`
	CompanyID  string `json:"-"`
}

type DeliveryConfig struct {
	// Pacing is the minimum gap between two outbound sends (Go duration string).
	Pacing   string          `json:"pacing,omitempty"`
	Discord  DiscordConfig   `json:"discord"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type DiscordConfig struct {
	// WebhookURL may be left empty and supplied via DISCORD_WEBHOOK_URL.
	WebhookURL string `json:"webhook_url,omitempty"`
}

type TelegramConfig struct {
	Enabled  bool  `json:"enabled"`
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`

	Token string `json:"-"`
}

// StorageConfig selects the seen-set persistence backend.
//
// Example:
//
//	storage: { driver: sqlite, path: ./state/whoprelay.db, busy_timeout: 2s }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // file | sqlite | postgres | memory
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// PollInterval returns the parsed poll interval (default 3s).
func (c *Config) PollInterval() (time.Duration, error) {
	return ParseDurationOrDefault("poll.interval", c.Poll.Interval, DefaultPollInterval)
}

// DeliveryPacing returns the parsed delivery pacing (default 500ms).
func (c *Config) DeliveryPacing() (time.Duration, error) {
	return ParseDurationOrDefault("delivery.pacing", c.Delivery.Pacing, DefaultPacing)
}

func (c *Config) FetchTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("whop.timeout", c.Whop.Timeout, DefaultFetchTimeout)
}

func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, time.Second)
}

// ChannelByKey looks up a configured channel.
func (c *Config) ChannelByKey(key string) (Channel, bool) {
	key = strings.TrimSpace(key)
	for _, ch := range c.Channels {
		if ch.Key == key {
			return ch, true
		}
	}
	return Channel{}, false
}
