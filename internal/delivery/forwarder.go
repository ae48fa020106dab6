package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"whoprelay/internal/eventbus"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

const DefaultPacing = 500 * time.Millisecond

// Forwarder delivers batches serially through one sink, keeping at least
// pacing between consecutive sends, across batches too.
type Forwarder struct {
	sink    Sink
	limiter *rate.Limiter
	log     logx.Logger
	bus     eventbus.Bus
}

func NewForwarder(sink Sink, pacing time.Duration, log logx.Logger, bus eventbus.Bus) *Forwarder {
	if log.IsZero() {
		log = logx.Nop()
	}
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	return &Forwarder{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(pacing), 1),
		log:     log.Component("forwarder"),
		bus:     bus,
	}
}

// DeliverBatch sends msgs in order, each exactly once. A failed message is
// logged and the rest are still attempted; all failures are returned
// joined. Cancelling ctx abandons the remainder of the batch.
func (f *Forwarder) DeliverBatch(ctx context.Context, msgs []whop.Message) error {
	var errs []error
	for i, m := range msgs {
		if err := f.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("batch abandoned with %d unsent: %w", len(msgs)-i, err))
			break
		}
		if err := f.sink.Deliver(ctx, m); err != nil {
			f.log.Error("delivery failed", logx.String("message", m.ID), logx.Err(err))
			eventbus.Publish(f.bus, eventbus.DeliveryError, eventbus.DeliveryResult{MessageID: m.ID, Sink: sinkName(f.sink), Err: err})
			errs = append(errs, fmt.Errorf("message %s: %w", m.ID, err))
			continue
		}
		f.log.Debug("delivered", logx.String("message", m.ID))
		eventbus.Publish(f.bus, eventbus.DeliverySent, eventbus.DeliveryResult{MessageID: m.ID, Sink: sinkName(f.sink)})
	}
	return errors.Join(errs...)
}
