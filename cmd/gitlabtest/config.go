package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/gitlabtest"
	"github.com/meigma/gitlabtest/config"
)

type configOptions struct {
	url     string
	token   string
	section string
	timeout time.Duration
	output  string
}

func newConfigCmd() *cobra.Command {
	opts := &configOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Render a config file for an existing instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Config{
				Section:      opts.section,
				URL:          opts.url,
				PrivateToken: opts.token,
				Timeout:      opts.timeout,
			}
			if opts.output != "" {
				return config.Write(opts.output, cfg)
			}

			data, err := config.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Base URL of the GitLab instance")
	cmd.Flags().StringVar(&opts.token, "token", gitlabtest.DefaultToken, "Personal access token")
	cmd.Flags().StringVar(&opts.section, "section", config.DefaultSection, "Server section name")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", config.DefaultTimeout, "Request timeout")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write to file instead of stdout")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
