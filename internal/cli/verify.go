package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whoprelay/internal/app"
	"whoprelay/internal/config"
	"whoprelay/internal/whop"
)

var verifyChannel string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the configured key can read a chat channel",
	RunE:  verifyAction,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyChannel, "channel", "", "chat feed id or channel key (default: first configured channel)")
	rootCmd.AddCommand(verifyCmd)
}

func verifyAction(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	feedID, err := resolveFeed(e.cfg, verifyChannel)
	if err != nil {
		return err
	}
	client, err := app.NewWhopClient(e.cfg, e.log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	key := e.cfg.Whop.CompanyKey
	if key == "" {
		key = e.cfg.Whop.APIKey
	}
	fmt.Fprintf(out, "Key:     %s\n", whop.MaskKey(key))
	fmt.Fprintf(out, "Channel: %s\n", feedID)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	msgs, err := client.Fetch(ctx, feedID, 1)
	if err != nil {
		printVerifyFailure(out, err)
		return fmt.Errorf("verify failed: %w", err)
	}
	fmt.Fprintf(out, "OK: read %d message(s)\n", len(msgs))
	if len(msgs) > 0 {
		m := msgs[0]
		fmt.Fprintf(out, "Latest:  %s by %s\n", m.ID, authorOf(m))
	}
	return nil
}

func printVerifyFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "FAILED: %v\n\nPossible causes:\n", err)
	for i, h := range whop.AccessHints {
		fmt.Fprintf(w, "  %d. %s\n", i+1, h)
	}
}

func authorOf(m whop.Message) string {
	if n := m.User.DisplayName(); n != "" {
		return n
	}
	return m.UserID
}

// resolveFeed maps a channel key or raw feed id to a feed id.
func resolveFeed(cfg *config.Config, want string) (string, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		if len(cfg.Channels) == 0 {
			return "", fmt.Errorf("no channel given and none configured (use --channel)")
		}
		return cfg.Channels[0].ID, nil
	}
	if ch, ok := cfg.ChannelByKey(want); ok {
		return ch.ID, nil
	}
	return want, nil
}
