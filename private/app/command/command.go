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

// Package command contains cobra subcommands shared by the applications.
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scionproto/hfsc/private/config"
)

// Pather returns the path to a command.
type Pather interface {
	CommandPath() string
}

// NewCompletion creates a command that provides shell completion.
func NewCompletion(pather Pather) *cobra.Command {
	var flags struct {
		shell string
	}
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generates shell completion scripts",
		Long: fmt.Sprintf(`Outputs the autocomplete configuration for some shells.

For example, you can add autocompletion for your current bash session using:

    . <( %[1]s completion )
`, pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			out := cmd.OutOrStdout()
			switch flags.shell {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return fmt.Errorf("unknown shell: %s", flags.shell)
			}
		},
	}
	cmd.Flags().StringVar(&flags.shell, "shell", "bash", "Shell type (bash|zsh|fish)")
	return cmd
}

// NewSample creates a command that writes the sample of cfg to stdout or to
// the file given as argument.
func NewSample(pather Pather, cfg config.Sampler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample [file]",
		Short: "Display a sample configuration file",
		Example: fmt.Sprintf("  %[1]s sample\n  %[1]s sample config.toml",
			pather.CommandPath()),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(args) == 0 {
				cfg.Sample(cmd.OutOrStdout(), nil, nil)
				return nil
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating sample file: %w", err)
			}
			cfg.Sample(f, nil, nil)
			return f.Close()
		},
	}
	return cmd
}
