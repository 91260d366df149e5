package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/plugins/logger"
	"github.com/spf13/cobra"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the designer core until interrupted",
		Long: `Run the designer core headless. The last project, or the configured
workspace, is reopened and watched for changes. Log entries collected by the
logger plugin are printed as they arrive. Plugin state is stored on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.build()
			if err != nil {
				return err
			}
			if lp, ok := core.GetPlugin[*logger.Plugin](a.Coordinator()); ok && !quiet {
				out := cmd.OutOrStdout()
				lp.Subscribe(func(_ *logger.Plugin, e logger.Entry) {
					fmt.Fprintf(out, "%s [%s] %s: %s\n", e.At.Format(time.TimeOnly), e.Category, e.Sender, e.Content)
				})
			}
			if err := a.Start(); err != nil {
				_ = a.Shutdown(context.Background())
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-a.Redraws():
						a.Logger().Debug("state changed")
					}
				}
			}()

			runErr := a.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print log entries")
	return cmd
}
