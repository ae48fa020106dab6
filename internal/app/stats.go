package app

import (
	"context"
	"sync/atomic"

	"whoprelay/internal/eventbus"
	logx "whoprelay/pkg/logx"
)

// Stats counts relay activity from event bus events.
type Stats struct {
	cycles     atomic.Int64
	newMsgs    atomic.Int64
	pollErrors atomic.Int64
	delivered  atomic.Int64
	failed     atomic.Int64
}

type StatsSnapshot struct {
	Cycles     int64
	NewMsgs    int64
	PollErrors int64
	Delivered  int64
	Failed     int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Cycles:     s.cycles.Load(),
		NewMsgs:    s.newMsgs.Load(),
		PollErrors: s.pollErrors.Load(),
		Delivered:  s.delivered.Load(),
		Failed:     s.failed.Load(),
	}
}

func (s *Stats) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.CycleDone:
		s.cycles.Add(1)
	case eventbus.PollNew:
		if r, ok := e.Data.(eventbus.PollResult); ok {
			s.newMsgs.Add(int64(r.New))
		}
	case eventbus.PollFailed:
		s.pollErrors.Add(1)
	case eventbus.DeliverySent:
		s.delivered.Add(1)
	case eventbus.DeliveryError:
		s.failed.Add(1)
	}
}

// Consume feeds events into s until ctx is done or the channel closes.
func (s *Stats) Consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Observe(e)
		}
	}
}

func (s StatsSnapshot) Fields() []logx.Field {
	return []logx.Field{
		logx.Int64("cycles", s.Cycles),
		logx.Int64("new", s.NewMsgs),
		logx.Int64("poll_errors", s.PollErrors),
		logx.Int64("delivered", s.Delivered),
		logx.Int64("delivery_failures", s.Failed),
	}
}
