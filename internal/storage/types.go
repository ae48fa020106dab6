package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// State maps channel id to the message ids seen on that channel.
// Id order carries no meaning.
type State map[string][]string

// Clone returns a deep copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, ids := range s {
		out[k] = append([]string(nil), ids...)
	}
	return out
}

// Backend loads and saves the full seen-set.
type Backend interface {
	// Load returns the persisted state. No prior state yields an empty State and nil error.
	Load(ctx context.Context) (State, error)
	// Save replaces the persisted state with st.
	Save(ctx context.Context, st State) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver      string
	Path        string // file, sqlite
	DSN         string // postgres
	BusyTimeout time.Duration
}
