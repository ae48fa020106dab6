package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"whoprelay/internal/app"
)

var (
	runInterval time.Duration
	runSchedule string
	runNoWatch  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll channels and forward new messages until interrupted",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "poll interval (default poll.interval, 3s)")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "poll schedule: duration, HH:MM[:SS] or cron expression")
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "do not reload the config file on change")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if len(e.cfg.Channels) == 0 {
		return fmt.Errorf("no channels configured (set channels in %s or WHOP_CHANNEL_ID)", configPath)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	relay, err := app.New(ctx, e.cfgm, e.logs, e.log, app.Options{
		Interval: runInterval,
		Schedule: runSchedule,
		Watch:    !runNoWatch,
	})
	if err != nil {
		return err
	}
	return relay.Run(ctx)
}
