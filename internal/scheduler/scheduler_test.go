package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"whoprelay/internal/config"
	"whoprelay/internal/eventbus"
	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

type fakePoller struct {
	mu       sync.Mutex
	channels []config.Channel
	results  map[string][]whop.Message
	errs     map[string]error
	polled   []string
	block    chan struct{}
}

func (f *fakePoller) Channels() []config.Channel { return f.channels }

func (f *fakePoller) PollChannel(ctx context.Context, key string) ([]whop.Message, error) {
	f.mu.Lock()
	f.polled = append(f.polled, key)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.results[key], nil
}

func (f *fakePoller) polledKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polled...)
}

// manualTrigger fires only when the test says so.
type manualTrigger struct {
	mu      sync.Mutex
	fire    func()
	stopped bool
}

func (m *manualTrigger) Start(fire func()) error {
	m.mu.Lock()
	m.fire = fire
	m.mu.Unlock()
	return nil
}

func (m *manualTrigger) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTrigger) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *manualTrigger) Fire() {
	m.mu.Lock()
	f := m.fire
	m.mu.Unlock()
	f()
}

type fakeTicker struct{ c chan time.Time }

func (f fakeTicker) C() <-chan time.Time { return f.c }
func (f fakeTicker) Stop()               {}

func twoChannels() *fakePoller {
	return &fakePoller{
		channels: []config.Channel{{Key: "A", ID: "feed_a"}, {Key: "B", ID: "feed_b"}},
		results: map[string][]whop.Message{
			"A": {{ID: "a1"}},
			"B": {{ID: "b1"}, {ID: "b2"}},
		},
	}
}

func TestRunCycleFanOutInOrder(t *testing.T) {
	t.Parallel()
	s := New(twoChannels(), logx.Nop(), nil)

	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(_ context.Context, key string, msgs []whop.Message) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name+":"+key)
			return nil
		}
	}
	s.Subscribe(record("first"))
	s.Subscribe(record("second"))

	if !s.RunCycle(context.Background()) {
		t.Fatal("RunCycle skipped")
	}
	want := []string{"first:A", "second:A", "first:B", "second:B"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	s := New(twoChannels(), logx.Nop(), nil)
	n := 0
	unsub := s.Subscribe(func(context.Context, string, []whop.Message) error { n++; return nil })
	unsub()
	unsub()
	s.Stop() // not running: no-op
	s.RunCycle(context.Background())
	if n != 0 {
		t.Fatalf("unsubscribed handler called %d times", n)
	}
}

func TestFailureIsolation(t *testing.T) {
	t.Parallel()
	p := twoChannels()
	p.errs = map[string]error{"A": errors.New("upstream down")}
	bus := eventbus.New()
	events, stop := bus.Subscribe(8)
	defer stop()

	s := New(p, logx.Nop(), bus)
	var got []string
	s.Subscribe(func(context.Context, string, []whop.Message) error { panic("boom") })
	s.Subscribe(func(context.Context, string, []whop.Message) error { return errors.New("sink down") })
	s.Subscribe(func(_ context.Context, key string, msgs []whop.Message) error {
		got = append(got, key)
		if len(msgs) != 2 {
			t.Errorf("batch size = %d, want 2", len(msgs))
		}
		return nil
	})

	s.RunCycle(context.Background())
	if len(got) != 1 || got[0] != "B" {
		t.Fatalf("delivered channels = %v, want [B]", got)
	}

	var failed bool
	for len(events) > 0 {
		ev := <-events
		if ev.Type == eventbus.PollFailed {
			failed = true
		}
	}
	if !failed {
		t.Fatal("no poll.failed event for channel A")
	}
}

func TestStartIsIdempotentAndStopWaits(t *testing.T) {
	t.Parallel()
	p := twoChannels()
	s := New(p, logx.Nop(), nil)
	cycles := make(chan string, 16)
	s.Subscribe(func(_ context.Context, key string, _ []whop.Message) error {
		cycles <- key
		return nil
	})

	trig := &manualTrigger{}
	if err := s.StartTrigger(context.Background(), trig); err != nil {
		t.Fatalf("StartTrigger: %v", err)
	}
	if err := s.StartTrigger(context.Background(), &manualTrigger{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start = %v, want ErrAlreadyRunning", err)
	}
	if !s.Running() {
		t.Fatal("Running = false after start")
	}

	// immediate cycle
	for i := 0; i < 2; i++ {
		select {
		case <-cycles:
		case <-time.After(2 * time.Second):
			t.Fatal("immediate cycle did not run")
		}
	}

	// the immediate cycle may still hold the cycle lock; a skipped fire delivers nothing
	deadline := time.Now().Add(2 * time.Second)
	for len(cycles) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("manual fire never ran a cycle")
		}
		trig.Fire()
		time.Sleep(time.Millisecond)
	}
	if len(cycles) != 2 {
		t.Fatalf("manual fire delivered %d batches, want 2", len(cycles))
	}

	s.Stop()
	s.Stop()
	if s.Running() {
		t.Fatal("Running = true after stop")
	}
	if !trig.isStopped() {
		t.Fatal("trigger not stopped")
	}
	trig.Fire() // late tick after stop is ignored
	if len(cycles) != 2 {
		t.Fatalf("fire after stop delivered, queue = %d", len(cycles))
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	t.Parallel()
	p := twoChannels()
	p.block = make(chan struct{})
	s := New(p, logx.Nop(), nil)

	done := make(chan bool)
	go func() { done <- s.RunCycle(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(p.polledKeys()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first cycle never started")
		}
		time.Sleep(time.Millisecond)
	}
	if s.RunCycle(context.Background()) {
		t.Fatal("overlapping cycle was not skipped")
	}
	close(p.block)
	if !<-done {
		t.Fatal("first cycle reported skipped")
	}
}

func TestStopCancelsInFlightCycle(t *testing.T) {
	t.Parallel()
	p := twoChannels()
	p.block = make(chan struct{})
	s := New(p, logx.Nop(), nil)

	if err := s.StartTrigger(context.Background(), &manualTrigger{}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(p.polledKeys()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cycle never started")
		}
		time.Sleep(time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() { s.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a fetch was blocked")
	}
	if keys := p.polledKeys(); len(keys) != 1 {
		t.Fatalf("polled after cancel = %v, want only A", keys)
	}
}

func TestIntervalTriggerTicks(t *testing.T) {
	t.Parallel()
	ticks := make(chan time.Time)
	trig := &IntervalTrigger{
		Every:     time.Hour,
		NewTicker: func(time.Duration) Ticker { return fakeTicker{c: ticks} },
	}
	fired := make(chan struct{}, 4)
	if err := trig.Start(func() { fired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	if err := trig.Start(func() {}); err == nil {
		t.Fatal("second Start should fail")
	}
	ticks <- time.Now()
	ticks <- time.Now()
	trig.Stop()
	trig.Stop()
	if len(fired) != 2 {
		t.Fatalf("fired = %d, want 2", len(fired))
	}
	if err := (&IntervalTrigger{}).Start(func() {}); err == nil {
		t.Fatal("zero interval should fail")
	}
}

func TestCronTriggerRejectsBadSpec(t *testing.T) {
	t.Parallel()
	trig := &CronTrigger{Spec: "not cron"}
	if err := trig.Start(func() {}); err == nil {
		t.Fatal("expected parse error")
	}
	trig.Stop()
}
