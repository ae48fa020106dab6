package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"whoprelay/internal/app"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show how many messages are remembered per channel",
	RunE:  stateAction,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every seen message so the next run relays the current page again",
	RunE:  resetAction,
}

func init() {
	rootCmd.AddCommand(stateCmd, resetCmd)
}

func stateAction(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	store, backend, err := app.OpenStore(cmd.Context(), e.cfg, e.log)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	keys := map[string]string{}
	for _, ch := range e.cfg.Channels {
		keys[ch.ID] = ch.Key
	}
	snap := store.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No seen messages recorded.")
		return nil
	}
	for _, id := range ids {
		key := keys[id]
		if key == "" {
			key = "-"
		}
		fmt.Fprintf(out, "%-20s %-40s %d\n", key, id, len(snap[id]))
	}
	return nil
}

func resetAction(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	store, backend, err := app.OpenStore(cmd.Context(), e.cfg, e.log)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	if err := store.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Seen messages cleared.")
	return nil
}
