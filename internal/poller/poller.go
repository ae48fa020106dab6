// Package poller turns a channel's newest page of messages into the subset
// not relayed before.
package poller

import (
	"context"
	"strings"

	"whoprelay/internal/config"
	"whoprelay/internal/eventbus"
	"whoprelay/internal/seen"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

type Option func(*Engine)

func WithLogger(log logx.Logger) Option {
	return func(e *Engine) {
		if !log.IsZero() {
			e.log = log
		}
	}
}

// WithPageSize sets how many of the newest messages a poll inspects.
// Values <= 0 keep the default.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithBus(bus eventbus.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// Engine polls configured channels against a shared seen-set.
type Engine struct {
	fetcher  whop.Fetcher
	store    *seen.Store
	channels []config.Channel
	byKey    map[string]config.Channel
	pageSize int
	bus      eventbus.Bus
	log      logx.Logger
}

func New(fetcher whop.Fetcher, store *seen.Store, channels []config.Channel, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		store:    store,
		channels: append([]config.Channel(nil), channels...),
		byKey:    make(map[string]config.Channel, len(channels)),
		pageSize: whop.DefaultPageSize,
		log:      logx.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Component("poller")
	if e.store == nil {
		e.store = seen.New(nil, e.log)
	}
	for _, ch := range e.channels {
		e.byKey[ch.Key] = ch
	}
	return e
}

// Channels returns the configured channels in configuration order.
func (e *Engine) Channels() []config.Channel {
	return append([]config.Channel(nil), e.channels...)
}

// PollChannel fetches the newest page of the channel and returns the
// messages not seen before, oldest first. Every fetched message is marked
// seen, so anything older than the page is never reported.
//
// An unknown key is logged and yields an empty batch.
func (e *Engine) PollChannel(ctx context.Context, key string) ([]whop.Message, error) {
	ch, ok := e.byKey[strings.TrimSpace(key)]
	if !ok {
		e.log.Warn("unknown channel key", logx.String("channel", key))
		return nil, nil
	}

	msgs, err := e.fetcher.Fetch(ctx, ch.ID, e.pageSize)
	if err != nil {
		return nil, err
	}

	var fresh []whop.Message
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if !e.store.HasSeen(ch.ID, m.ID) {
			fresh = append(fresh, m)
		}
		e.store.MarkSeen(ch.ID, m.ID)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	if err := e.store.Persist(ctx); err != nil {
		e.log.Error("persist seen state failed; continuing in memory",
			logx.String("channel", ch.Key), logx.Err(err))
	}

	// newest-first upstream; callers deliver oldest-first
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}

	e.log.Debug("new messages", logx.String("channel", ch.Key), logx.Int("count", len(fresh)))
	eventbus.Publish(e.bus, eventbus.PollNew, eventbus.PollResult{Channel: ch.Key, New: len(fresh)})
	return fresh, nil
}
