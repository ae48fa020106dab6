package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

const discordTimeout = 10 * time.Second

type discordPayload struct {
	Content   string `json:"content"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Discord posts messages to a Discord webhook, impersonating the author.
type Discord struct {
	url  string
	http *http.Client
	log  logx.Logger
}

// NewDiscord returns a webhook sink. An empty URL makes every delivery a
// logged no-op.
func NewDiscord(webhookURL string, client *http.Client, log logx.Logger) *Discord {
	if log.IsZero() {
		log = logx.Nop()
	}
	if client == nil {
		client = &http.Client{Timeout: discordTimeout}
	}
	return &Discord{url: strings.TrimSpace(webhookURL), http: client, log: log.Component("discord")}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Configured() bool { return d.url != "" }

func (d *Discord) Deliver(ctx context.Context, m whop.Message) error {
	if d.url == "" {
		d.log.Warn("DISCORD_WEBHOOK_URL not set; skipping message", logx.String("message", m.ID))
		return nil
	}
	content := Body(m)
	if content == "" {
		d.log.Debug("empty message; nothing to send", logx.String("message", m.ID))
		return nil
	}

	p := discordPayload{Content: content, Username: AuthorName(m)}
	if m.User != nil {
		p.AvatarURL = strings.TrimSpace(m.User.ProfilePic)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("discord webhook failed: %d %s - %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
