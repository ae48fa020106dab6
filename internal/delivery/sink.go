// Package delivery sends relayed messages to their destinations.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whoprelay/internal/whop"
)

// Sink delivers one message. A sink with nothing to send returns nil.
type Sink interface {
	Deliver(ctx context.Context, m whop.Message) error
}

type named interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Body is the message text followed by its attachment URLs, separated by
// blank lines. Empty when there is nothing to send.
func Body(m whop.Message) string {
	parts := make([]string, 0, 1+len(m.FileAttachments))
	if c := strings.TrimSpace(m.Content); c != "" {
		parts = append(parts, c)
	}
	parts = append(parts, m.AttachmentURLs()...)
	return strings.Join(parts, "\n\n")
}

// AuthorName is the author's display name, or "Unknown".
func AuthorName(m whop.Message) string {
	if n := m.User.DisplayName(); n != "" {
		return n
	}
	return "Unknown"
}

// Multi fans a message out to several sinks. Every sink is attempted.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Deliver(ctx context.Context, msg whop.Message) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s), err))
		}
	}
	return errors.Join(errs...)
}
