package cmd

import (
	"fmt"

	"github.com/dshills/bluebird/internal/plugins/script"
	"github.com/spf13/cobra"
)

func newScriptCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect Lua script plugins",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>...",
		Short: "Load scripts and print their plugin identity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				p, err := script.Load(path, script.WithTimeout(cfg.ScriptTimeout()))
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				info := p.Info()
				fmt.Fprintf(out, "ok   %s: %s %s sender=%s\n", path, info, info.ID, p.Sender())
				_ = p.Close()
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed to load", failed, len(args))
			}
			return nil
		},
	})
	return cmd
}
