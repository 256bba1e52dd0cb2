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
	"encoding/json"
	"fmt"
	"io"

	"github.com/florianl/go-tc"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vishvananda/netlink"
	"gopkg.in/yaml.v2"

	"github.com/scionproto/hfsc/pkg/hfsc"
	"github.com/scionproto/hfsc/pkg/hfsc/curve"
	"github.com/scionproto/hfsc/pkg/hfsc/tcconf"
	"github.com/scionproto/hfsc/pkg/private/serrors"
	"github.com/scionproto/hfsc/private/app/command"
	"github.com/scionproto/hfsc/private/app/launcher"
	"github.com/scionproto/hfsc/shaper/config"
)

const formatUsage = "Specify the output format (human|json|yaml)"

func newExport(pather command.Pather) *cobra.Command {
	var flags struct {
		config  string
		dev     string
		ifindex uint32
		format  string
		apply   bool
	}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the class hierarchy as kernel HFSC qdisc and classes",
		Long: `Builds the class hierarchy of the configuration and prints the equivalent
kernel HFSC qdisc and classes. With --apply, they are installed on the
interface, which requires CAP_NET_ADMIN.`,
		Example: fmt.Sprintf("  %[1]s export --config shaper.toml\n"+
			"  %[1]s export --config shaper.toml --format yaml\n"+
			"  %[1]s export --config shaper.toml --dev eth0 --apply", pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			var cfg config.Config
			if err := launcher.LoadConfig(flags.config, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return serrors.Wrap("validate config", err)
			}
			ifindex, err := resolveIfindex(flags.dev, flags.ifindex)
			if err != nil {
				return err
			}
			objs, err := export(&cfg, ifindex)
			if err != nil {
				return err
			}
			if err := write(cmd.OutOrStdout(), flags.format, objs); err != nil {
				return err
			}
			if !flags.apply {
				return nil
			}
			if ifindex == 0 {
				return serrors.New("--apply needs --dev or --ifindex")
			}
			rtnl, err := tc.Open(&tc.Config{})
			if err != nil {
				return serrors.Wrap("opening rtnetlink socket", err)
			}
			defer rtnl.Close()
			return tcconf.Install(rtnl, objs)
		},
	}
	cmd.Flags().StringVar(&flags.config, "config", "", "Configuration file (required)")
	cmd.Flags().StringVar(&flags.dev, "dev", "", "Name of the target interface")
	cmd.Flags().Uint32Var(&flags.ifindex, "ifindex", 0, "Index of the target interface")
	cmd.Flags().StringVar(&flags.format, "format", "human", formatUsage)
	cmd.Flags().BoolVar(&flags.apply, "apply", false, "Install the qdisc and classes")
	_ = cmd.MarkFlagRequired("config")
	cmd.MarkFlagsMutuallyExclusive("dev", "ifindex")
	return cmd
}

func newShow(pather command.Pather) *cobra.Command {
	var flags struct {
		dev     string
		ifindex uint32
		format  string
	}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the kernel HFSC hierarchy of an interface",
		Example: fmt.Sprintf("  %[1]s show --dev eth0\n"+
			"  %[1]s show --ifindex 2 --format json", pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ifindex, err := resolveIfindex(flags.dev, flags.ifindex)
			if err != nil {
				return err
			}
			rtnl, err := tc.Open(&tc.Config{})
			if err != nil {
				return serrors.Wrap("opening rtnetlink socket", err)
			}
			defer rtnl.Close()
			objs, err := tcconf.Read(rtnl, ifindex)
			if err != nil {
				return err
			}
			// Replaying the objects into a scheduler validates the kernel
			// hierarchy and normalizes the curves.
			root, _, err := tcconf.DefaultClass(&objs[0])
			if err != nil {
				return err
			}
			s, err := hfsc.New(hfsc.Config{Root: root})
			if err != nil {
				return err
			}
			defer s.Close()
			if err := tcconf.Apply(s, objs); err != nil {
				return err
			}
			if objs, err = tcconf.Export(s, ifindex); err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), flags.format, objs)
		},
	}
	cmd.Flags().StringVar(&flags.dev, "dev", "", "Name of the interface")
	cmd.Flags().Uint32Var(&flags.ifindex, "ifindex", 0, "Index of the interface")
	cmd.Flags().StringVar(&flags.format, "format", "human", formatUsage)
	cmd.MarkFlagsOneRequired("dev", "ifindex")
	cmd.MarkFlagsMutuallyExclusive("dev", "ifindex")
	return cmd
}

// resolveIfindex returns the index of the interface dev. If dev is empty,
// ifindex is returned unchanged.
func resolveIfindex(dev string, ifindex uint32) (uint32, error) {
	if dev == "" {
		return ifindex, nil
	}
	link, err := netlink.LinkByName(dev)
	if err != nil {
		return 0, serrors.Wrap("looking up interface", err, "dev", dev)
	}
	return uint32(link.Attrs().Index), nil
}

// export builds the hierarchy of cfg and converts it to netlink objects.
func export(cfg *config.Config, ifindex uint32) ([]tc.Object, error) {
	s, err := cfg.Scheduler.New(hfsc.Config{})
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if _, err := cfg.Build(s); err != nil {
		return nil, err
	}
	return tcconf.Export(s, ifindex)
}

type hierarchy struct {
	Ifindex uint32      `json:"ifindex" yaml:"ifindex"`
	Root    string      `json:"root" yaml:"root"`
	Default string      `json:"default_class" yaml:"default_class"`
	Classes []classView `json:"classes" yaml:"classes"`
}

type classView struct {
	Handle     string     `json:"handle" yaml:"handle"`
	Parent     string     `json:"parent" yaml:"parent"`
	RealTime   *curveView `json:"rt,omitempty" yaml:"rt,omitempty"`
	LinkShare  *curveView `json:"ls,omitempty" yaml:"ls,omitempty"`
	UpperLimit *curveView `json:"ul,omitempty" yaml:"ul,omitempty"`
}

type curveView struct {
	M1 uint64 `json:"m1,omitempty" yaml:"m1,omitempty"`
	D  string `json:"d,omitempty" yaml:"d,omitempty"`
	M2 uint64 `json:"m2" yaml:"m2"`
}

func newCurveView(sc curve.ServiceCurve) *curveView {
	if sc.IsZero() {
		return nil
	}
	v := &curveView{M1: sc.M1, M2: sc.M2}
	if sc.D != 0 {
		v.D = sc.D.String()
	}
	return v
}

func newHierarchy(objs []tc.Object) (hierarchy, error) {
	var h hierarchy
	for i := range objs {
		obj := &objs[i]
		if obj.HfscQOpt != nil {
			root, def, err := tcconf.DefaultClass(obj)
			if err != nil {
				return hierarchy{}, err
			}
			h.Ifindex, h.Root, h.Default = obj.Ifindex, root.String(), def.String()
			continue
		}
		cfg, err := tcconf.ClassConfig(obj)
		if err != nil {
			return hierarchy{}, err
		}
		h.Classes = append(h.Classes, classView{
			Handle:     cfg.ID.String(),
			Parent:     cfg.Parent.String(),
			RealTime:   newCurveView(cfg.RealTime),
			LinkShare:  newCurveView(cfg.LinkShare),
			UpperLimit: newCurveView(cfg.UpperLimit),
		})
	}
	return h, nil
}

// Human writes the hierarchy as a table, the qdisc first.
func (h hierarchy) Human(w io.Writer) {
	rows := make([][]string, 0, len(h.Classes)+1)
	rows = append(rows, []string{"qdisc", h.Root, "root", "default " + h.Default, "", ""})
	for _, c := range h.Classes {
		rows = append(rows, []string{"class", c.Handle, c.Parent,
			c.RealTime.String(), c.LinkShare.String(), c.UpperLimit.String()})
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"KIND", "HANDLE", "PARENT", "RT", "LS", "UL"})
	table.AppendBulk(rows)
	table.Render()
}

func (v *curveView) String() string {
	switch {
	case v == nil:
		return "-"
	case v.D == "":
		return fmt.Sprintf("m2 %d", v.M2)
	default:
		return fmt.Sprintf("m1 %d d %s m2 %d", v.M1, v.D, v.M2)
	}
}

func write(w io.Writer, format string, objs []tc.Object) error {
	h, err := newHierarchy(objs)
	if err != nil {
		return err
	}
	switch format {
	case "human":
		h.Human(w)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(h); err != nil {
			return err
		}
		return enc.Close()
	default:
		return serrors.New("output format not supported", "format", format)
	}
}
