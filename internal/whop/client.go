package whop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	logx "whoprelay/pkg/logx"
)

const (
	DefaultGraphQLURL = "https://api.whop.com/public-graphql"
	defaultTimeout    = 15 * time.Second
	maxErrorBody      = 4 << 10
)

// ErrAuth marks failures caused by missing or rejected credentials.
var ErrAuth = errors.New("whop: authentication failed")

var reAuthMessage = regexp.MustCompile(`(?i)app api key|app'?s user token|app user token`)

const feedPostsQuery = `query FeedPosts($feedId: ID!, $feedType: FeedTypes!, $limit: Int, $direction: Direction, $includeDeleted: Boolean, $includeReactions: Boolean) {
  feedPosts(feedId: $feedId, feedType: $feedType, limit: $limit, direction: $direction, includeDeleted: $includeDeleted, includeReactions: $includeReactions) {
    posts {
      ... on DmsPost {
        id
        userId
        content
        createdAt
        feedId
        feedType
        isPosterAdmin
        mentionedUserIds
        fileAttachments { fileUrl }
      }
    }
    users { id username name profilePic }
  }
}`

type ClientConfig struct {
	URL         string
	Timeout     time.Duration
	Credentials Credentials
	// HTTPClient overrides the default client; its Timeout is left alone.
	HTTPClient *http.Client
}

// Client talks to the Whop public GraphQL endpoint.
type Client struct {
	url     string
	http    *http.Client
	headers http.Header
	log     logx.Logger
}

var _ Fetcher = (*Client)(nil)

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultGraphQLURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	headers, warnings := AuthHeaders(cfg.Credentials)
	for _, w := range warnings {
		log.Warn(w)
	}
	if !cfg.Credentials.HasKey() {
		log.Warn("no Whop API key configured; requests will be rejected")
	}
	return &Client{url: url, http: hc, headers: headers, log: log}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type feedPostsResponse struct {
	Data *struct {
		FeedPosts *struct {
			Posts []Message `json:"posts"`
			Users []User    `json:"users"`
		} `json:"feedPosts"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// Fetch returns the newest messages of a chat feed, newest first.
func (c *Client) Fetch(ctx context.Context, feedID string, limit int) ([]Message, error) {
	if strings.TrimSpace(feedID) == "" {
		return nil, errors.New("whop: empty feed id")
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	body, err := json.Marshal(gqlRequest{
		Query: feedPostsQuery,
		Variables: map[string]any{
			"feedId":           feedID,
			"feedType":         "chat_feed",
			"limit":            limit,
			"direction":        "desc",
			"includeDeleted":   false,
			"includeReactions": false,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whop: fetch %s: %w", feedID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whop: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := truncate(string(raw), maxErrorBody)
		if resp.StatusCode == http.StatusUnauthorized || reAuthMessage.MatchString(snippet) {
			return nil, fmt.Errorf("%w: status %d: %s (check WHOP_API_KEY and that the app is installed with chat read permission)", ErrAuth, resp.StatusCode, snippet)
		}
		return nil, fmt.Errorf("whop: status %d: %s", resp.StatusCode, snippet)
	}

	var out feedPostsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("whop: decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		joined := strings.Join(msgs, "; ")
		if reAuthMessage.MatchString(joined) {
			return nil, fmt.Errorf("%w: %s", ErrAuth, joined)
		}
		return nil, fmt.Errorf("whop: graphql errors: %s", joined)
	}
	if out.Data == nil || out.Data.FeedPosts == nil {
		return nil, errors.New("whop: unexpected GraphQL response: missing data.feedPosts")
	}

	users := make(map[string]*User, len(out.Data.FeedPosts.Users))
	for i := range out.Data.FeedPosts.Users {
		u := &out.Data.FeedPosts.Users[i]
		users[u.ID] = u
	}
	posts := out.Data.FeedPosts.Posts
	for i := range posts {
		if u, ok := users[posts[i].UserID]; ok {
			cp := *u
			posts[i].User = &cp
		}
	}
	c.log.Trace("feed fetched", logx.String("feed", feedID), logx.Int("posts", len(posts)))
	return posts, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
