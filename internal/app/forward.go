package app

import (
	"context"
	"sync"
	"time"

	"whoprelay/internal/scheduler"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

// BatchDeliverer is satisfied by *delivery.Forwarder.
type BatchDeliverer interface {
	DeliverBatch(ctx context.Context, msgs []whop.Message) error
}

// StartForwarding subscribes fwd to sched and starts polling every interval.
// Delivery failures are logged with the channel key and never reach the
// scheduler. The returned stop is idempotent.
func StartForwarding(ctx context.Context, sched *scheduler.Scheduler, fwd BatchDeliverer, interval time.Duration, log logx.Logger) (stop func(), err error) {
	return startForwarding(sched, fwd, log, func() error {
		return sched.Start(ctx, interval)
	})
}

// StartForwardingTrigger is StartForwarding driven by an arbitrary trigger.
func StartForwardingTrigger(ctx context.Context, sched *scheduler.Scheduler, fwd BatchDeliverer, trig scheduler.Trigger, log logx.Logger) (stop func(), err error) {
	return startForwarding(sched, fwd, log, func() error {
		return sched.StartTrigger(ctx, trig)
	})
}

func startForwarding(sched *scheduler.Scheduler, fwd BatchDeliverer, log logx.Logger, start func() error) (func(), error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	unsub := sched.Subscribe(func(ctx context.Context, key string, msgs []whop.Message) error {
		if err := fwd.DeliverBatch(ctx, msgs); err != nil {
			log.Error("forwarding failed", logx.String("channel", key), logx.Int("batch", len(msgs)), logx.Err(err))
		}
		return nil
	})
	if err := start(); err != nil {
		unsub()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sched.Stop()
			unsub()
		})
	}, nil
}
