// Package cli implements the tickflow command.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vnykmshr/tickflow/internal/config"
	"github.com/vnykmshr/tickflow/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

// NewRootCmd creates the root cobra command for the tickflow CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tickflow",
		Short:        "Cooperative routines driven by a tick loop",
		Long:         "tickflow runs step-driven coroutine scenarios on a scheduler ticked at a fixed cadence.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newDemoCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads --config if given and applies the logging flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tickflow version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tickflow %s\n", Version)
		},
	}
}
