package main

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/preflight"
	"github.com/acksell/gqlstack/stack/seed"
)

// AWSOptions select the AWS credentials and region.
type AWSOptions struct {
	Profile string
	Region  string
}

// AddFlags adds flags to fs and binds them to options.
func (o *AWSOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Profile, "profile", "", "Shared config profile. Defaults to the environment.")
	fs.StringVar(&o.Region, "region", "", "AWS region. Defaults to the environment.")
}

// NewCmdPreflight returns a cobra.Command to run the 'preflight' subcommand.
func NewCmdPreflight(g *GlobalOptions) *cobra.Command {
	o := &AWSOptions{}
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the current AWS identity may create every resource in the template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := g.synthesize()
			if err != nil {
				return err
			}
			actions, unknown := preflight.RequiredActions(res.Template)
			for _, t := range unknown {
				logrus.WithField("type", t).Warn("no known provisioning actions for resource type")
			}

			clients, _, err := preflight.NewClients(cmd.Context(), o.Profile, o.Region)
			if err != nil {
				return err
			}
			rep, err := preflight.Run(cmd.Context(), clients, actions, logrus.StandardLogger())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "account %s, region %s, principal %s\n", rep.Account, rep.Region, rep.Principal)
			fmt.Fprintf(w, "checked %d actions\n", rep.Checked)
			if rep.OK() {
				fmt.Fprintln(w, "gqlstack preflight: ok")
				return nil
			}
			for _, a := range cfn.SortedKeys(rep.Denied) {
				fmt.Fprintf(w, "  denied %s (%s)\n", a, rep.Denied[a])
			}
			return fmt.Errorf("%d actions denied", len(rep.Denied))
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

// SeedOptions contains everything necessary to run the 'seed' subcommand.
type SeedOptions struct {
	AWSOptions
	File      string
	Table     string
	Overwrite bool
}

// AddFlags adds flags to fs and binds them to options.
func (o *SeedOptions) AddFlags(fs *pflag.FlagSet) {
	o.AWSOptions.AddFlags(fs)
	fs.StringVarP(&o.File, "file", "f", "", "YAML or JSON list of items.")
	fs.StringVar(&o.Table, "table", "", "Physical table name, as printed in the Table stack output.")
	fs.BoolVar(&o.Overwrite, "overwrite", false, "Replace items whose key already exists.")
}

// RequiredFlags are the names of flags that must be explicitly specified.
func (o *SeedOptions) RequiredFlags() []string {
	return []string{"file", "table"}
}

// NewCmdSeed returns a cobra.Command to run the 'seed' subcommand.
func NewCmdSeed(g *GlobalOptions) *cobra.Command {
	o := &SeedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture items into the deployed table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			def, err := cfg.TableDefinition()
			if err != nil {
				return err
			}
			items, err := seed.LoadItems(o.File)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("no items to seed")
			}
			_, awsCfg, err := preflight.NewClients(cmd.Context(), o.Profile, o.Region)
			if err != nil {
				return err
			}
			s := &seed.Seeder{
				Client:    dynamodb.NewFromConfig(awsCfg),
				TableName: o.Table,
				Table:     def,
				Overwrite: o.Overwrite,
				Log:       logrus.StandardLogger(),
			}
			res, err := s.Seed(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gqlstack seed: wrote %d items, skipped %d existing\n", res.Written, res.Skipped)
			return nil
		},
	}
	o.AddFlags(cmd.Flags())
	for _, f := range o.RequiredFlags() {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
