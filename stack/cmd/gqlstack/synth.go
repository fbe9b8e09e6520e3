package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/history"
	"github.com/acksell/gqlstack/stack/stackcfg"
	"github.com/acksell/gqlstack/stack/synth"
)

// SynthOptions contains everything necessary to run the 'synth' subcommand.
type SynthOptions struct {
	// Out overrides output.path from the configuration.
	Out string
	// Format is json or yaml. Defaults to output.format.
	Format string
	// NoHistory skips recording the template.
	NoHistory bool
}

// AddFlags adds flags to fs and binds them to options.
func (o *SynthOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Out, "out", "o", "", "Output file. Defaults to output.path in the config.")
	fs.StringVar(&o.Format, "format", "", "Template format: json or yaml. Defaults to output.format in the config.")
	fs.BoolVar(&o.NoHistory, "no-history", false, "Do not record the template in the local history.")
}

// NewCmdSynth returns a cobra.Command to run the 'synth' subcommand.
func NewCmdSynth(g *GlobalOptions) *cobra.Command {
	o := &SynthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write the deployment template",
		Long:  `Write the deployment template. Nothing is written unless the whole template builds.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd, g)
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

func (o *SynthOptions) Run(cmd *cobra.Command, g *GlobalOptions) error {
	cfg, res, err := g.synthesize()
	if err != nil {
		return err
	}
	format, data, err := encode(cfg, res, o.Format)
	if err != nil {
		return err
	}
	out := o.Out
	if out == "" {
		out = cfg.Path(cfg.Output.Path)
		if o.Format != "" {
			out = strings.TrimSuffix(out, ".json")
			out = strings.TrimSuffix(out, ".yaml") + format.Ext()
		}
	}
	if err := synth.WriteFile(out, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "gqlstack synth: generated %s (%d resources)\n", out, len(res.Template.Resources))

	if o.NoHistory {
		return nil
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	rec, changed, err := store.Put(cfg.Stack, string(format), len(res.Template.Resources), data)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), "gqlstack synth: recorded %s\n", rec.ID)
	}
	return nil
}

// NewCmdValidate returns a cobra.Command to run the 'validate' subcommand.
func NewCmdValidate(g *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Build the template and print a summary without writing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := g.synthesize()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "stack %s: %d resources, %d parameters, %d outputs\n",
				cfg.Stack, len(res.Template.Resources), len(res.Template.Parameters), len(res.Template.Outputs))

			counts := res.Template.CountByType()
			for _, t := range cfn.SortedKeys(counts) {
				fmt.Fprintf(w, "  %-32s %d\n", t, counts[t])
			}
			for _, d := range res.Resolvers {
				source := "none"
				if d.Field.DataSource != nil {
					source = d.Field.DataSource.SourceName()
				}
				fmt.Fprintf(w, "resolver %s -> %s\n", d.Field.Key(), source)
			}
			logrus.WithField("order", res.Order).Debug("provisioning order")
			return nil
		},
	}
}

func openHistory(cfg stackcfg.Config) (*history.Store, error) {
	return history.Open(history.StoreOptions{Path: cfg.Path(cfg.History.Dir)}, logrus.StandardLogger())
}
