package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gitlabtest",
		Short: "Run a throwaway GitLab instance for integration tests",
		Long: `gitlabtest starts GitLab in Docker, seeds a root access token and writes
an INI config file that points API clients at the instance.

Examples:
  # Start an instance and keep it running until interrupted
  gitlabtest up

  # Wipe projects, groups and users of a running instance
  gitlabtest reset --config /tmp/gitlabtest.cfg

  # Render a config file for an existing instance
  gitlabtest config --url http://localhost:8080 --token secret`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newUpCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
