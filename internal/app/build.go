package app

import (
	"context"
	"fmt"

	"whoprelay/internal/config"
	"whoprelay/internal/delivery"
	"whoprelay/internal/scheduler"
	"whoprelay/internal/seen"
	"whoprelay/internal/storage"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

// OpenStore opens the configured backend and loads the seen-set from it.
// The caller closes the returned backend.
func OpenStore(ctx context.Context, cfg *config.Config, log logx.Logger) (*seen.Store, storage.Backend, error) {
	busy, err := cfg.StorageBusyTimeout()
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, log.Component("storage"))
	if err != nil {
		return nil, nil, err
	}
	store := seen.New(backend, log)
	store.Load(ctx)
	return store, backend, nil
}

func NewWhopClient(cfg *config.Config, log logx.Logger) (*whop.Client, error) {
	timeout, err := cfg.FetchTimeout()
	if err != nil {
		return nil, err
	}
	return whop.NewClient(whop.ClientConfig{
		URL:     cfg.Whop.GraphQLURL,
		Timeout: timeout,
		Credentials: whop.Credentials{
			AppKey:     cfg.Whop.APIKey,
			CompanyKey: cfg.Whop.CompanyKey,
			CompanyID:  cfg.Whop.CompanyID,
		},
	}, log.Component("whop")), nil
}

// BuildSink returns the Discord sink, fanned out with Telegram when enabled.
func BuildSink(cfg *config.Config, log logx.Logger) (delivery.Sink, error) {
	discord := delivery.NewDiscord(cfg.Delivery.Discord.WebhookURL, nil, log)
	if !discord.Configured() {
		log.Warn("DISCORD_WEBHOOK_URL not set; Discord delivery disabled")
	}
	tg := cfg.Delivery.Telegram
	if tg == nil || !tg.Enabled {
		return discord, nil
	}
	t, err := delivery.NewTelegram(delivery.TelegramConfig{
		Token:    tg.Token,
		ChatID:   tg.ChatID,
		ThreadID: tg.ThreadID,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("telegram sink: %w", err)
	}
	return delivery.NewMulti(discord, t), nil
}

// TriggerFor picks the poll trigger. An explicit schedule beats an
// interval; flag values beat config values.
func TriggerFor(cfg *config.Config, opts Options) (scheduler.Trigger, error) {
	expr := opts.Schedule
	if expr == "" {
		expr = cfg.Poll.Schedule
	}
	if expr != "" {
		sch, err := scheduler.ParseSchedule(expr)
		if err != nil {
			return nil, fmt.Errorf("poll schedule: %w", err)
		}
		return sch.Trigger(), nil
	}
	interval := opts.Interval
	if interval <= 0 {
		var err error
		if interval, err = cfg.PollInterval(); err != nil {
			return nil, err
		}
	}
	return &scheduler.IntervalTrigger{Every: interval}, nil
}
