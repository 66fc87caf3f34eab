package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/gitlabtest/config"
	"github.com/meigma/gitlabtest/fixture"
)

type resetOptions struct {
	configPath string
	section    string
}

func newResetCmd(root *rootOptions) *cobra.Command {
	opts := &resetOptions{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all projects, groups and non-root users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := config.LoadClient(opts.configPath, opts.section)
			if err != nil {
				return err
			}
			return fixture.Reset(cmd.Context(), client, root.logger)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the config file")
	cmd.Flags().StringVar(&opts.section, "section", "", "Server section (default: the [global] default)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
