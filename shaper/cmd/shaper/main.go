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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scionproto/hfsc/pkg/log"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/pkg/private/util"
	"github.com/scionproto/hfsc/private/app/command"
	"github.com/scionproto/hfsc/private/app/launcher"
	"github.com/scionproto/hfsc/shaper"
	"github.com/scionproto/hfsc/shaper/config"
)

var (
	globalCfg config.Config
	duration  util.DurWrap
	noColor   bool
)

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "HFSC Shaper",
		Flags: func(fs *pflag.FlagSet) {
			fs.Var(&duration, "duration", "Stop after the given time (default: run until signaled)")
			fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
		},
		Commands: []func(command.Pather) *cobra.Command{newExport, newShow},
		Main:     realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	if duration.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration.Duration)
		defer cancel()
	}
	svc, err := shaper.NewService(&globalCfg, nil)
	if err != nil {
		return serrors.Wrap("creating shaper", err)
	}
	log.Info("Shaping", "rate", globalCfg.Link.Rate, "classes", len(globalCfg.Classes),
		"sources", len(svc.Sources))
	err = svc.Run(ctx)
	colored := !noColor && isatty.IsTerminal(os.Stdout.Fd())
	summarize(os.Stdout, svc.Sources, colored)
	svc.Report.Render(os.Stdout)
	return err
}

// summarize writes one line per source with the offered packets.
func summarize(w io.Writer, sources []*shaper.Source, colored bool) {
	plain := color.New()
	plain.DisableColor()
	key, good, bad := plain, plain, plain
	if colored {
		key = color.New(color.FgHiCyan)
		good = color.New(color.FgGreen)
		bad = color.New(color.FgRed)
	}
	for _, src := range sources {
		rejected := good
		if src.Rejected() > 0 {
			rejected = bad
		}
		fmt.Fprintf(w, "%s %s: %d sent, %s\n", key.Sprint("Source"), src.Name, src.Sent(),
			rejected.Sprintf("%d rejected", src.Rejected()))
	}
}
