package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	TestChannelKey  = "TEST_CHANNEL"
	testChannelName = "Test Channel"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolveEnv fills credentials and env-provided endpoints.
// Several variable names are accepted for the same value.
func resolveEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	cfg.Whop.APIKey = first("WHOP_API_KEY", "WHOP_APP_API_KEY")
	cfg.Whop.CompanyKey = first("WHOP_COMPANY_API_KEY", "WHOP_COMPANY_KEY")
	cfg.Whop.CompanyID = first("WHOP_COMPANY_ID")

	if strings.TrimSpace(cfg.Delivery.Discord.WebhookURL) == "" {
		cfg.Delivery.Discord.WebhookURL = first("DISCORD_WEBHOOK_URL")
	}
	if cfg.Delivery.Telegram != nil {
		cfg.Delivery.Telegram.Token = first("TELEGRAM_BOT_TOKEN")
	}

	if id := first("WHOP_CHANNEL_ID"); id != "" {
		for _, ch := range cfg.Channels {
			if ch.ID == id || ch.Key == TestChannelKey {
				return
			}
		}
		cfg.Channels = append([]Channel{{Key: TestChannelKey, ID: id, Name: testChannelName}}, cfg.Channels...)
	}
}
