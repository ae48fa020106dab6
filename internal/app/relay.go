package app

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"whoprelay/internal/config"
	"whoprelay/internal/delivery"
	"whoprelay/internal/eventbus"
	"whoprelay/internal/poller"
	"whoprelay/internal/scheduler"
	"whoprelay/internal/seen"
	"whoprelay/internal/storage"
	"whoprelay/internal/supervisor"
	logx "whoprelay/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	// Interval and Schedule override poll.interval and poll.schedule.
	Interval time.Duration
	Schedule string
	// Watch enables config hot reload.
	Watch bool
}

// Relay is a fully wired poll-and-forward pipeline.
type Relay struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger
	opts Options

	bus     eventbus.Bus
	backend storage.Backend
	store   *seen.Store
	engine  *poller.Engine
	sched   *scheduler.Scheduler
	fwd     *delivery.Forwarder
	trigger scheduler.Trigger
	stats   Stats
}

// New builds a relay from the manager's current config. logs may be nil.
func New(ctx context.Context, cfgm *config.Manager, logs *logx.Service, log logx.Logger, opts Options) (*Relay, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}

	trig, err := TriggerFor(cfg, opts)
	if err != nil {
		return nil, err
	}
	pacing, err := cfg.DeliveryPacing()
	if err != nil {
		return nil, err
	}
	client, err := NewWhopClient(cfg, log)
	if err != nil {
		return nil, err
	}
	sink, err := BuildSink(cfg, log)
	if err != nil {
		return nil, err
	}
	store, backend, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	engine := poller.New(client, store, cfg.Channels,
		poller.WithPageSize(cfg.Poll.PageSize),
		poller.WithLogger(log),
		poller.WithBus(bus),
	)

	return &Relay{
		cfgm:    cfgm,
		logs:    logs,
		log:     log.Component("relay"),
		opts:    opts,
		bus:     bus,
		backend: backend,
		store:   store,
		engine:  engine,
		sched:   scheduler.New(engine, log, bus),
		fwd:     delivery.NewForwarder(sink, pacing, log, bus),
		trigger: trig,
	}, nil
}

func (r *Relay) Stats() StatsSnapshot { return r.stats.Snapshot() }

func (r *Relay) Scheduler() *scheduler.Scheduler { return r.sched }

// Run relays until ctx is done, then tears everything down and closes
// storage.
func (r *Relay) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(r.log.Component("supervisor")))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			r.log.Warn("background tasks did not stop cleanly", logx.Err(err))
		}
		if err := r.backend.Close(); err != nil {
			r.log.Warn("storage close failed", logx.Err(err))
		}
	}()

	events, unsub := r.bus.Subscribe(256)
	defer unsub()
	sup.Go0("stats", func(c context.Context) { r.stats.Consume(c, events) })

	if r.opts.Watch {
		r.cfgm.SetLogger(r.log.Component("config"))
		sub := r.cfgm.Subscribe(4)
		sup.GoRestart("config.watch", r.cfgm.Watch)
		sup.Go0("config.reload", func(c context.Context) {
			defer r.cfgm.Unsubscribe(sub)
			r.applyReloads(c, sub)
		})
	}

	stop, err := StartForwardingTrigger(sup.Context(), r.sched, r.fwd, r.trigger, r.log)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(r.engine.Channels()))
	for _, ch := range r.engine.Channels() {
		names = append(names, ch.Key)
	}
	r.log.Info("relay started", logx.Strings("channels", names))
	sdNotify(r.log, daemon.SdNotifyReady)

	<-sup.Context().Done()

	sdNotify(r.log, daemon.SdNotifyStopping)
	start := time.Now()
	stop()
	r.log.Info("relay stopped", append(r.stats.Snapshot().Fields(), logx.Duration("took", time.Since(start)))...)
	return nil
}

func (r *Relay) applyReloads(ctx context.Context, sub <-chan *config.Config) {
	last := r.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			if r.logs != nil {
				r.logs.Apply(next.LogConfig())
			}
			if changed := config.RestartRequired(last, next); len(changed) > 0 {
				r.log.Warn("config changed; restart required to apply",
					logx.String("sections", strings.Join(changed, ",")))
			}
			last = next
		}
	}
}

func (r *Relay) Store() *seen.Store { return r.store }
