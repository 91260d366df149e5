package cmd

import (
	"github.com/dshills/bluebird/internal/config/loader"
	"github.com/spf13/cobra"
)

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View the effective configuration",
	}

	var output string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration after file, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := loader.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			data, err := cfg.Encode(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "toml", "output format (toml, yaml)")
	cmd.AddCommand(show)
	return cmd
}
