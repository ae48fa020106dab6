package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger calls fire on its own goroutine until Stop.
// fire must not block for long; the scheduler skips overlapping cycles itself.
type Trigger interface {
	Start(fire func()) error
	Stop()
}

// Ticker is the subset of *time.Ticker the interval trigger needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// IntervalTrigger fires every Every.
type IntervalTrigger struct {
	Every time.Duration
	// NewTicker overrides time.NewTicker in tests.
	NewTicker func(time.Duration) Ticker

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func (t *IntervalTrigger) Start(fire func()) error {
	if t.Every <= 0 {
		return errors.New("interval must be > 0")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return errors.New("trigger already started")
	}
	newTicker := t.NewTicker
	if newTicker == nil {
		newTicker = func(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }
	}
	tk := newTicker(t.Every)
	done := make(chan struct{})
	t.done = done

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer tk.Stop()
		for {
			select {
			case <-done:
				return
			case <-tk.C():
				fire()
			}
		}
	}()
	return nil
}

func (t *IntervalTrigger) Stop() {
	t.mu.Lock()
	done := t.done
	t.done = nil
	t.mu.Unlock()
	if done != nil {
		close(done)
		t.wg.Wait()
	}
}

// CronTrigger fires on a cron expression (seconds field optional).
type CronTrigger struct {
	Spec     string
	Location *time.Location

	mu sync.Mutex
	c  *cron.Cron
}

func (t *CronTrigger) Start(fire func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.c != nil {
		return errors.New("trigger already started")
	}
	loc := t.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(t.Spec, fire); err != nil {
		return err
	}
	c.Start()
	t.c = c
	return nil
}

func (t *CronTrigger) Stop() {
	t.mu.Lock()
	c := t.c
	t.c = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
