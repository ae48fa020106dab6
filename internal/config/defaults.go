package config

import (
	"errors"
	"fmt"
	"strings"

	logx "whoprelay/pkg/logx"
)

func applyDefaults(cfg *Config) {
	if cfg.Poll.PageSize == 0 {
		cfg.Poll.PageSize = DefaultPageSize
	}
	if strings.TrimSpace(cfg.Whop.GraphQLURL) == "" {
		cfg.Whop.GraphQLURL = DefaultGraphQLURL
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "file"
	}
	if strings.EqualFold(cfg.Storage.Driver, "file") && strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStateFile
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if !cfg.Logging.File.Enabled {
		cfg.Logging.Console = true
	}
	for i := range cfg.Channels {
		cfg.Channels[i].Key = strings.TrimSpace(cfg.Channels[i].Key)
		cfg.Channels[i].ID = strings.TrimSpace(cfg.Channels[i].ID)
		if cfg.Channels[i].Name == "" {
			cfg.Channels[i].Name = cfg.Channels[i].Key
		}
	}
}

// Validate checks a defaulted config. It does not require channels: commands
// such as reset and verify work without any.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	keys := map[string]bool{}
	ids := map[string]bool{}
	for i, ch := range cfg.Channels {
		if ch.Key == "" {
			errs = append(errs, fmt.Errorf("channels[%d].key is required", i))
		}
		if ch.ID == "" {
			errs = append(errs, fmt.Errorf("channels[%d].id is required", i))
		}
		if ch.Key != "" && keys[ch.Key] {
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate key %q", i, ch.Key))
		}
		if ch.ID != "" && ids[ch.ID] {
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate id %q", i, ch.ID))
		}
		keys[ch.Key] = true
		ids[ch.ID] = true
	}

	if cfg.Poll.PageSize < 1 || cfg.Poll.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("poll.page_size must be within 1..%d, got %d", MaxPageSize, cfg.Poll.PageSize))
	}
	if _, err := cfg.PollInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.DeliveryPacing(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.FetchTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.StorageBusyTimeout(); err != nil {
		errs = append(errs, err)
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "file", "memory":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required when storage.driver=sqlite"))
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required when storage.driver=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	if t := cfg.Delivery.Telegram; t != nil && t.Enabled && t.ChatID == 0 {
		errs = append(errs, errors.New("delivery.telegram.chat_id is required when telegram delivery is enabled"))
	}

	return errors.Join(errs...)
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}
