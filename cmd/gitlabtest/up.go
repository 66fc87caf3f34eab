package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/gitlabtest"
	"github.com/meigma/gitlabtest/container"
)

type upOptions struct {
	image     string
	name      string
	configDir string
	token     string
	section   string
	timeout   time.Duration
	interval  time.Duration
	noReset   bool
}

func newUpCmd(root *rootOptions) *cobra.Command {
	opts := &upOptions{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start GitLab and write its config file",
		Long: `Start a GitLab container, wait until it has reconfigured, seed the root
access token and write the config file. The command then blocks until it is
interrupted and terminates the container on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUp(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.image, "image", "", "GitLab image (default: $GITLABTEST_IMAGE, then "+container.DefaultImage+")")
	cmd.Flags().StringVar(&opts.name, "name", "", "Container name")
	cmd.Flags().StringVar(&opts.configDir, "config-dir", os.TempDir(), "Directory to write the config file to")
	cmd.Flags().StringVar(&opts.token, "token", gitlabtest.DefaultToken, "Root personal access token to seed")
	cmd.Flags().StringVar(&opts.section, "section", "local", "Server section name in the config file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", container.DefaultStartupTimeout, "How long to wait for GitLab to reconfigure")
	cmd.Flags().DurationVar(&opts.interval, "poll-interval", container.DefaultPollInterval, "Pause between readiness checks")
	cmd.Flags().BoolVar(&opts.noReset, "no-reset", false, "Do not delete existing projects, groups and users")

	return cmd
}

// containerOptions leaves the image unset unless --image was given, so the
// harness can fall back to $GITLABTEST_IMAGE.
func (o *upOptions) containerOptions() []container.Option {
	opts := []container.Option{
		container.WithName(o.name),
		container.WithStartupTimeout(o.timeout),
		container.WithPollInterval(o.interval),
	}
	if o.image != "" {
		opts = append(opts, container.WithImage(o.image))
	}
	return opts
}

func runUp(cmd *cobra.Command, root *rootOptions, opts *upOptions) error {
	ctx := cmd.Context()

	harnessOpts := []gitlabtest.Option{
		gitlabtest.WithLogger(root.logger),
		gitlabtest.WithConfigDir(opts.configDir),
		gitlabtest.WithToken(opts.token),
		gitlabtest.WithSection(opts.section),
		gitlabtest.WithContainerOptions(opts.containerOptions()...),
	}
	if opts.noReset {
		harnessOpts = append(harnessOpts, gitlabtest.WithoutReset())
	}

	h, err := gitlabtest.Start(ctx, harnessOpts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), h.ConfigPath())

	root.logger.Info("gitlab running, interrupt to stop",
		"url", h.Config().URL, "container", h.Container().GetContainerID())
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	return h.Close(stopCtx)
}
