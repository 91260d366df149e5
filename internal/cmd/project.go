package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dshills/bluebird/internal/app"
	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/spf13/cobra"
)

func newProjectCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, open or close projects",
	}
	cmd.AddCommand(
		newProjectNewCommand(flags),
		newProjectOpenCommand(flags),
		newProjectCloseCommand(flags),
	)
	return cmd
}

func newProjectNewCommand(flags *globalFlags) *cobra.Command {
	var proj project.Project
	cmd := &cobra.Command{
		Use:   "new <dir>",
		Short: "Create a project in dir and open it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if _, err := project.ReadProject(dir); err == nil {
				return fmt.Errorf("%s: %w", dir, project.ErrProjectExists)
			}
			if proj.Name == "" {
				proj.Name = filepath.Base(dir)
			}
			proj.Version = plugin.Version{Minor: 1}

			return withProject(flags, dir, func(a *app.Application) error {
				if err := a.Dispatch(app.Sender, project.CreateProject(dir, proj)); err != nil {
					return err
				}
				return a.Dispatch(app.Sender, project.OpenProject(dir))
			}, func(p project.Project, path string) {
				fmt.Fprintf(cmd.OutOrStdout(), "created project %s at %s\n", p.Name, path)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&proj.Name, "name", "", "project name (default is the directory name)")
	f.StringVar(&proj.Description, "description", "", "project description")
	f.StringVar(&proj.PackageName, "package", "", "package name")
	f.StringVar(&proj.Author, "author", "", "author name")
	f.StringVar(&proj.Email, "email", "", "author email")
	return cmd
}

func newProjectOpenCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Open a project so the next run restores it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(flags, args[0], func(a *app.Application) error {
				return a.Dispatch(app.Sender, project.OpenProject(args[0]))
			}, func(p project.Project, path string) {
				fmt.Fprintf(cmd.OutOrStdout(), "opened project %s at %s\n", p.Name, path)
			})
		},
	}
}

func newProjectCloseCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.start()
			if err != nil {
				return err
			}
			if err := a.Dispatch(app.Sender, project.CloseProject()); err != nil {
				_ = a.Shutdown(context.Background())
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "project closed")
			return a.Shutdown(context.Background())
		},
	}
}

// withProject starts the application, runs fn and reports the project
// that ends up open. Failures the project plugin logged are returned.
func withProject(flags *globalFlags, dir string, fn func(*app.Application) error, report func(project.Project, string)) error {
	a, err := flags.start()
	if err != nil {
		return err
	}
	runErr := fn(a)

	pm, _ := core.GetPlugin[*project.Plugin](a.Coordinator())
	p, open := pm.Project()
	shutdownErr := a.Shutdown(context.Background())

	if runErr != nil {
		return runErr
	}
	if !open {
		return fmt.Errorf("project at %s was not opened, see the log for details", dir)
	}
	report(p, pm.Path())
	return shutdownErr
}
