package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/acksell/gqlstack/stack/history"
)

// DiffOptions contains everything necessary to run the 'diff' subcommand.
type DiffOptions struct {
	Format  string
	Context int
}

// AddFlags adds flags to fs and binds them to options.
func (o *DiffOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Format, "format", "", "Template format: json or yaml. Defaults to output.format in the config.")
	fs.IntVar(&o.Context, "context", 3, "Lines of context around each change.")
}

// NewCmdDiff returns a cobra.Command to run the 'diff' subcommand.
func NewCmdDiff(g *GlobalOptions) *cobra.Command {
	o := &DiffOptions{}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff a fresh synthesis against the last recorded template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := g.synthesize()
			if err != nil {
				return err
			}
			format, data, err := encode(cfg, res, o.Format)
			if err != nil {
				return err
			}
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var previous []byte
			from := "(none)"
			latest, err := store.Latest(cfg.Stack)
			switch {
			case err == nil:
				if latest.Format != string(format) {
					return fmt.Errorf("last recorded template is %s, rerun with --format %s", latest.Format, latest.Format)
				}
				previous = latest.Document
				from = "recorded " + latest.ID
			case !errors.Is(err, history.ErrNoHistory):
				return err
			}

			if history.Fingerprint(previous) == history.Fingerprint(data) {
				fmt.Fprintln(cmd.OutOrStdout(), "gqlstack diff: no changes")
				return nil
			}
			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(string(previous)),
				B:        difflib.SplitLines(string(data)),
				FromFile: from,
				ToFile:   "synthesized",
				Context:  o.Context,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

// NewCmdHistory returns a cobra.Command to run the 'history' subcommand.
func NewCmdHistory(g *GlobalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded templates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(cfg.Stack, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintf(w, "no recorded templates for %s\n", cfg.Stack)
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(w, "%s  %s  %016x  %-4s  %d resources\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Fingerprint, r.Format, r.Resources)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of records. Zero lists all.")
	return cmd
}
