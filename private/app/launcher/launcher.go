// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package launcher contains the harness of long running applications: a
// cobra root command loading a TOML configuration, logging setup, signal
// handling and the shared subcommands.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/private/app/command"
	libconfig "github.com/scionproto/hfsc/private/config"
)

const cfgConfigFile = "config"

// LoggingConfig is implemented by configurations that carry a log section.
// Applications whose configuration does not implement it log to the console
// with the default settings.
type LoggingConfig interface {
	LogConfig() log.Config
}

// Application models a server application.
type Application struct {
	// TOMLConfig holds the Go data structure for the application-specific
	// TOML configuration.
	TOMLConfig libconfig.Config

	// ShortName is the short name of the application. If empty, the
	// executable name is used.
	ShortName string

	// Flags registers additional flags on the root command.
	Flags func(fs *pflag.FlagSet)

	// Commands creates additional subcommands.
	Commands []func(command.Pather) *cobra.Command

	// Main is the custom logic of the application. If nil, only the
	// setup/teardown harness runs. It is called after the configuration is
	// loaded and validated and returns when ctx is done.
	Main func(ctx context.Context) error

	// ErrorWriter specifies where error output should be printed. If nil,
	// os.Stderr is used.
	ErrorWriter io.Writer
}

// Run executes the application with the process arguments and terminates
// the process on error. SIGINT and SIGTERM cancel the context passed to Main.
func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := a.Command(filepath.Base(os.Args[0])).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(a.getErrorWriter(), "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the root command of the application.
func (a *Application) Command(executable string) *cobra.Command {
	shortName := a.ShortName
	if shortName == "" {
		shortName = executable
	}
	var configFile string
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %[1]s --config %[1]s.toml", executable),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.executeCommand(cmd.Context(), shortName, configFile)
		},
	}
	cmd.Flags().StringVar(&configFile, cfgConfigFile, "", "Configuration file (required)")
	_ = cmd.MarkFlagRequired(cfgConfigFile)
	if a.Flags != nil {
		a.Flags(cmd.Flags())
	}
	cmd.AddCommand(
		command.NewCompletion(cmd),
		command.NewSample(cmd, a.TOMLConfig),
		command.NewGendocs(cmd),
		newValidate(cmd, a.TOMLConfig),
	)
	for _, c := range a.Commands {
		cmd.AddCommand(c(cmd))
	}
	return cmd
}

func (a *Application) executeCommand(ctx context.Context, shortName, file string) error {
	if err := LoadConfig(file, a.TOMLConfig); err != nil {
		return err
	}
	var logging log.Config
	logging.InitDefaults()
	if lc, ok := a.TOMLConfig.(LoggingConfig); ok {
		logging = lc.LogConfig()
	}
	if err := log.Setup(logging); err != nil {
		return serrors.Wrap("initialize logging", err)
	}
	defer log.Flush()
	defer log.HandlePanic()

	if err := a.TOMLConfig.Validate(); err != nil {
		return serrors.Wrap("validate config", err)
	}
	log.Info("Application started", "name", shortName)
	defer log.Info("Application stopped", "name", shortName)
	if a.Main == nil {
		return nil
	}
	return a.Main(ctx)
}

func (a *Application) getErrorWriter() io.Writer {
	if a.ErrorWriter != nil {
		return a.ErrorWriter
	}
	return os.Stderr
}

// LoadConfig decodes file into cfg and initializes the defaults.
func LoadConfig(file string, cfg libconfig.Config) error {
	if err := libconfig.LoadFile(file, cfg); err != nil {
		return err
	}
	cfg.InitDefaults()
	return nil
}

func newValidate(pather command.Pather, cfg libconfig.Config) *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate a configuration file",
		Example: fmt.Sprintf("  %s validate --config config.toml", pather.CommandPath()),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if err := LoadConfig(configFile, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return serrors.Wrap("validate config", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, cfgConfigFile, "", "Configuration file (required)")
	_ = cmd.MarkFlagRequired(cfgConfigFile)
	return cmd
}
