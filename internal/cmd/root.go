// Package cmd implements the bluebird command line.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/bluebird/internal/app"
	"github.com/dshills/bluebird/internal/config"
	"github.com/spf13/cobra"
)

// Version information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

type globalFlags struct {
	configPath string
	logLevel   string
	workspace  string
	overrides  []string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "bluebird",
		Short: "Plugin host for the bluebird designer",
		Long: `Bluebird runs the designer core: a message coordinator with native
plugins for logging, projects, windows and files, plus Lua script plugins.

Plugin state is persisted between runs and the last project is reopened.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default is "+config.DefaultPath()+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVarP(&flags.workspace, "workspace", "w", "", "project directory to open at startup")
	pf.StringArrayVar(&flags.overrides, "set", nil, "override a setting, e.g. --set state.backend=memory")

	root.AddCommand(
		newRunCommand(&flags),
		newProjectCommand(&flags),
		newStateCommand(&flags),
		newScriptCommand(&flags),
		newConfigCommand(&flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// load builds the configuration: file and environment first, then flags.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(f.overrides)+2)
	for _, kv := range f.overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		values[key] = value
	}
	if f.logLevel != "" {
		values["logging.level"] = f.logLevel
	}
	if f.workspace != "" {
		values["workspace.path"] = f.workspace
	}
	if err := cfg.Apply(values); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build loads the configuration and creates an application.
func (f *globalFlags) build(opts ...app.Option) (*app.Application, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts...)
}

// start builds and starts an application.
func (f *globalFlags) start(opts ...app.Option) (*app.Application, error) {
	a, err := f.build(opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}
