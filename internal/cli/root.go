// Package cli provides the command-line interface for whoprelay.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"whoprelay/internal/config"
	logx "whoprelay/pkg/logx"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "whoprelay",
	Short:         "Relay Whop chat messages to Discord",
	Long:          "whoprelay polls Whop chat channels, remembers which messages it has already relayed, and forwards new ones to a Discord webhook (and optionally Telegram).",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "whoprelay %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file (yaml or json); missing file means defaults plus environment")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

type env struct {
	cfgm *config.Manager
	cfg  *config.Config
	logs *logx.Service
	log  logx.Logger
}

func (e *env) Close() {
	if e.logs != nil {
		_ = e.logs.Close()
	}
}

func setup() (*env, error) {
	if _, err := config.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfgm := config.NewManager(configPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logs, log := logx.New(cfg.LogConfig())
	cfgm.SetLogger(log.Component("config"))
	return &env{cfgm: cfgm, cfg: cfg, logs: logs, log: log}, nil
}
