// Package whop fetches chat feed messages from the Whop GraphQL API.
package whop

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is how many of the newest messages one fetch asks for.
const DefaultPageSize = 50

// Fetcher returns up to limit of the newest messages of a feed, newest first.
type Fetcher interface {
	Fetch(ctx context.Context, feedID string, limit int) ([]Message, error)
}

type FileAttachment struct {
	FileURL string `json:"fileUrl"`
}

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// DisplayName prefers the display name, then the handle.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	return strings.TrimSpace(u.Username)
}

type Message struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Content          string           `json:"content"`
	CreatedAt        Timestamp        `json:"createdAt"`
	FeedID           string           `json:"feedId"`
	FeedType         string           `json:"feedType"`
	IsPosterAdmin    bool             `json:"isPosterAdmin"`
	MentionedUserIDs []string         `json:"mentionedUserIds"`
	FileAttachments  []FileAttachment `json:"fileAttachments"`

	// User is joined from the page's user list; nil if the author was not returned.
	User *User `json:"-"`
}

// AttachmentURLs returns the non-empty attachment URLs in order.
func (m Message) AttachmentURLs() []string {
	out := make([]string, 0, len(m.FileAttachments))
	for _, a := range m.FileAttachments {
		if u := strings.TrimSpace(a.FileURL); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Timestamp accepts RFC 3339 strings as well as unix seconds or
// milliseconds, either quoted or bare.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// > year 2286 in seconds means milliseconds
		if n > 1e10 {
			t.Time = time.UnixMilli(n).UTC()
		} else {
			t.Time = time.Unix(n, 0).UTC()
		}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
