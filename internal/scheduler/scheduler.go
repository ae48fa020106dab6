package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"whoprelay/internal/config"
	"whoprelay/internal/eventbus"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

var ErrAlreadyRunning = errors.New("scheduler: already running")

// Poller is what a cycle polls.
type Poller interface {
	Channels() []config.Channel
	PollChannel(ctx context.Context, key string) ([]whop.Message, error)
}

// Handler receives a non-empty batch of new messages, oldest first.
type Handler func(ctx context.Context, channelKey string, msgs []whop.Message) error

type subscription struct {
	id uint64
	h  Handler
}

type Scheduler struct {
	engine Poller
	log    logx.Logger
	bus    eventbus.Bus

	subMu  sync.Mutex
	subs   []subscription
	nextID uint64

	mu      sync.Mutex
	running bool
	trigger Trigger
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// held for the duration of a cycle
	cycle sync.Mutex
}

func New(engine Poller, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{engine: engine, log: log.Component("scheduler"), bus: bus}
}

// Subscribe registers h and returns a function that removes it.
func (s *Scheduler) Subscribe(h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, h: h})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start polls every channel immediately and then once per interval.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return s.StartTrigger(ctx, &IntervalTrigger{Every: interval})
}

// StartTrigger is Start with an arbitrary trigger. A second start while
// running is logged and returns ErrAlreadyRunning without side effects.
func (s *Scheduler) StartTrigger(ctx context.Context, trig Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("polling already started")
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx, s.cancel = runCtx, cancel
	s.running = true
	if err := trig.Start(s.fire); err != nil {
		s.running = false
		cancel()
		return fmt.Errorf("start trigger: %w", err)
	}
	s.trigger = trig

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunCycle(runCtx)
	}()

	s.log.Info("polling started", logx.Int("channels", len(s.engine.Channels())))
	return nil
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.runCtx
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.RunCycle(ctx)
}

// Stop halts the trigger, cancels in-flight fetches and waits for the
// current cycle to return. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	trig, cancel := s.trigger, s.cancel
	s.trigger, s.cancel = nil, nil
	s.mu.Unlock()

	// cancel first: trig.Stop waits for a fire that may be mid-cycle
	if cancel != nil {
		cancel()
	}
	if trig != nil {
		trig.Stop()
	}
	s.wg.Wait()
	s.log.Info("polling stopped")
}

// RunCycle polls every channel once. It reports false if another cycle was
// already in progress and this one was skipped.
func (s *Scheduler) RunCycle(ctx context.Context) bool {
	if !s.cycle.TryLock() {
		s.log.Debug("previous cycle still running; tick skipped")
		return false
	}
	defer s.cycle.Unlock()

	start := time.Now()
	channels := s.engine.Channels()
	failed := 0
	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}
		msgs, err := s.engine.PollChannel(ctx, ch.Key)
		if err != nil {
			failed++
			if ctx.Err() == nil {
				s.log.Error("poll failed", logx.String("channel", ch.Key), logx.Err(err))
			}
			eventbus.Publish(s.bus, eventbus.PollFailed, eventbus.PollResult{Channel: ch.Key, Err: err})
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		s.log.Info("new messages", logx.String("channel", ch.Key), logx.Int("count", len(msgs)))
		s.dispatch(ctx, ch.Key, msgs)
	}

	took := time.Since(start)
	s.log.Trace("cycle done", logx.Int("channels", len(channels)), logx.Duration("took", took))
	eventbus.Publish(s.bus, eventbus.CycleDone, eventbus.CycleResult{Channels: len(channels), Failed: failed, Took: took})
	return true
}

func (s *Scheduler) dispatch(ctx context.Context, key string, msgs []whop.Message) {
	s.subMu.Lock()
	subs := append([]subscription(nil), s.subs...)
	s.subMu.Unlock()

	for _, sub := range subs {
		if err := s.call(ctx, sub, key, msgs); err != nil {
			s.log.Error("subscriber failed",
				logx.String("channel", key), logx.Int64("subscriber", int64(sub.id)), logx.Err(err))
		}
	}
}

func (s *Scheduler) call(ctx context.Context, sub subscription, key string, msgs []whop.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Debug("subscriber panic stack", logx.String("stack", string(debug.Stack())))
		}
	}()
	// each subscriber gets its own copy of the batch
	batch := append([]whop.Message(nil), msgs...)
	return sub.h(ctx, key, batch)
}
