package whop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "whoprelay/pkg/logx"
)

func newTestClient(t *testing.T, creds Credentials, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{URL: srv.URL, Credentials: creds, Timeout: 2 * time.Second}, logx.Nop())
}

func TestAuthHeaders(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		creds     Credentials
		wantAuth  string
		wantCoID  string
		wantWarns int
	}{
		{name: "app key bearer", creds: Credentials{AppKey: "apik_abc"}, wantAuth: "Bearer apik_abc"},
		{name: "explicit company key", creds: Credentials{AppKey: "apik_abc", CompanyKey: "ck_1", CompanyID: "biz_1"}, wantAuth: "Company ck_1", wantCoID: "biz_1"},
		{name: "company key without id warns", creds: Credentials{CompanyKey: "ck_1"}, wantAuth: "Company ck_1", wantWarns: 1},
		{name: "app key looks like company key", creds: Credentials{AppKey: "apik_x_C_y", CompanyID: "biz_2"}, wantAuth: "Company apik_x_C_y", wantCoID: "biz_2"},
		{name: "company-shaped key without id stays bearer", creds: Credentials{AppKey: "apik_x_C_y"}, wantAuth: "Bearer apik_x_C_y"},
		{name: "bearer keeps company id header", creds: Credentials{AppKey: "apik_plain", CompanyID: "biz_3"}, wantAuth: "Bearer apik_plain", wantCoID: "biz_3"},
		{name: "no keys", creds: Credentials{}, wantAuth: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, warns := AuthHeaders(tt.creds)
			if got := h.Get("Authorization"); got != tt.wantAuth {
				t.Fatalf("Authorization = %q, want %q", got, tt.wantAuth)
			}
			if got := h.Get("x-company-id"); got != tt.wantCoID {
				t.Fatalf("x-company-id = %q, want %q", got, tt.wantCoID)
			}
			if len(warns) != tt.wantWarns {
				t.Fatalf("warnings = %v, want %d", warns, tt.wantWarns)
			}
		})
	}
}

func TestFetchJoinsUsers(t *testing.T) {
	t.Parallel()
	var gotBody gqlRequest
	var gotAuth string
	c := newTestClient(t, Credentials{AppKey: "apik_test"}, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = io.WriteString(w, `{"data":{"feedPosts":{
			"posts":[
				{"id":"p2","userId":"u1","content":"second","createdAt":"1700000001000","feedId":"chat_feed_1","feedType":"chat_feed","fileAttachments":[{"fileUrl":"https://cdn/x.png"}]},
				{"id":"p1","userId":"u9","content":"first","createdAt":"2024-01-02T03:04:05Z"}
			],
			"users":[{"id":"u1","username":"alice","name":"Alice A","profilePic":"https://cdn/a.png"}]
		}}}`)
	})

	msgs, err := c.Fetch(context.Background(), "chat_feed_1", 25)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "Bearer apik_test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody.Variables["feedId"] != "chat_feed_1" || gotBody.Variables["direction"] != "desc" || gotBody.Variables["feedType"] != "chat_feed" {
		t.Fatalf("variables = %v", gotBody.Variables)
	}
	if n, _ := gotBody.Variables["limit"].(float64); n != 25 {
		t.Fatalf("limit = %v, want 25", gotBody.Variables["limit"])
	}
	if len(msgs) != 2 || msgs[0].ID != "p2" || msgs[1].ID != "p1" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].User == nil || msgs[0].User.DisplayName() != "Alice A" {
		t.Fatalf("author not joined: %+v", msgs[0].User)
	}
	if msgs[1].User != nil {
		t.Fatalf("unknown author joined: %+v", msgs[1].User)
	}
	if got := msgs[0].AttachmentURLs(); len(got) != 1 || got[0] != "https://cdn/x.png" {
		t.Fatalf("attachments = %v", got)
	}
	if msgs[0].CreatedAt.UnixMilli() != 1700000001000 {
		t.Fatalf("createdAt = %v", msgs[0].CreatedAt)
	}
	if msgs[1].CreatedAt.Year() != 2024 {
		t.Fatalf("createdAt = %v", msgs[1].CreatedAt)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
		wantSub  string
	}{
		{name: "401", status: 401, body: "nope", wantAuth: true},
		{name: "app api key body", status: 403, body: `{"error":"Invalid App API Key"}`, wantAuth: true},
		{name: "server error", status: 502, body: "bad gateway", wantSub: "status 502"},
		{name: "graphql auth", status: 200, body: `{"errors":[{"message":"You must use an app's user token"}]}`, wantAuth: true},
		{name: "graphql other", status: 200, body: `{"errors":[{"message":"feed not found"}]}`, wantSub: "feed not found"},
		{name: "missing feedPosts", status: 200, body: `{"data":{}}`, wantSub: "unexpected GraphQL response"},
		{name: "not json", status: 200, body: `<html>`, wantSub: "decode"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, Credentials{AppKey: "k"}, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Fetch(context.Background(), "chat_feed_1", 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrAuth); got != tt.wantAuth {
				t.Fatalf("errors.Is(ErrAuth) = %v, want %v (%v)", got, tt.wantAuth, err)
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	c := newTestClient(t, Credentials{AppKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Fetch(ctx, "chat_feed_1", 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestMaskKey(t *testing.T) {
	t.Parallel()
	if got := MaskKey(""); got != "NONE" {
		t.Fatalf("MaskKey(\"\") = %q", got)
	}
	if got := MaskKey("apik_1234567890abcdef"); got != "apik_12345..." {
		t.Fatalf("MaskKey = %q", got)
	}
}
