package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStateCommand(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "state [plugin]",
		Short: "Print the restored state of every plugin",
		Long: `Start the core, restore persisted plugin state and print what each
plugin reports, keyed by plugin name. Pass a plugin name to print only that
plugin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.start()
			if err != nil {
				return err
			}
			snapshot := a.Snapshot()
			if err := a.Shutdown(context.Background()); err != nil {
				return err
			}

			if len(args) == 1 {
				p, ok := snapshot[args[0]]
				if !ok {
					names := make([]string, 0, len(snapshot))
					for name := range snapshot {
						names = append(names, name)
					}
					slices.Sort(names)
					return fmt.Errorf("no plugin named %q (have %v)", args[0], names)
				}
				snapshot = map[string]envelope.Payload{args[0]: p}
			}
			return writeSnapshot(cmd.OutOrStdout(), output, snapshot)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml)")
	return cmd
}

func writeSnapshot(w io.Writer, format string, snapshot map[string]envelope.Payload) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	case "yaml", "yml":
		values := make(map[string]any, len(snapshot))
		for name, p := range snapshot {
			values[name] = p.Value()
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(values); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
