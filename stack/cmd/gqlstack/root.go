package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/logutil"
	"github.com/acksell/gqlstack/stack/stackcfg"
	"github.com/acksell/gqlstack/stack/synth"
)

const version = "0.1.0"

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	logFile *os.File
}

// AddFlags adds flags to fs and binds them to options.
func (o *GlobalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", "warn", "Log level: trace, debug, info, warn, error.")
	fs.StringVar(&o.LogFile, "log-file", "", "Append logs to this file instead of stderr.")
	fs.StringVar(&o.ConfigPath, "config", "", "Path to "+stackcfg.FileName+". Searched upwards from the working directory when empty.")
}

// loadConfig reads the configuration file, or falls back to the defaults
// rooted at the working directory when none is found.
func (o *GlobalOptions) loadConfig() (stackcfg.Config, error) {
	path := o.ConfigPath
	if path == "" {
		found, err := stackcfg.Find(".")
		if errors.Is(err, stackcfg.ErrNotFound) {
			logrus.Debugf("%s not found, using defaults", stackcfg.FileName)
			return stackcfg.Default(), nil
		}
		if err != nil {
			return stackcfg.Config{}, err
		}
		path = found
	}
	logrus.WithField("path", path).Debug("loading config")
	return stackcfg.Load(path)
}

// synthesize loads the configuration and its inputs and builds the template.
func (o *GlobalOptions) synthesize() (stackcfg.Config, *synth.Result, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return stackcfg.Config{}, nil, err
	}
	in, err := synth.Load(cfg)
	if err != nil {
		return stackcfg.Config{}, nil, err
	}
	res, err := synth.Synthesize(in, logrus.StandardLogger())
	if err != nil {
		return stackcfg.Config{}, nil, err
	}
	return cfg, res, nil
}

func encode(cfg stackcfg.Config, res *synth.Result, format string) (cfn.Format, []byte, error) {
	if format == "" {
		format = cfg.Output.Format
	}
	f, err := cfn.ParseFormat(format)
	if err != nil {
		return "", nil, err
	}
	data, err := cfn.Encode(res.Template, f)
	return f, data, err
}

// Execute runs cmd and closes the log file opened for it. cobra skips the
// post-run hooks when a command fails, so the file is closed here.
func (o *GlobalOptions) Execute(cmd *cobra.Command) error {
	defer o.closeLogFile()
	return cmd.Execute()
}

func (o *GlobalOptions) closeLogFile() {
	if o.logFile == nil {
		return
	}
	logrus.SetOutput(os.Stderr)
	if err := o.logFile.Close(); err != nil {
		logrus.WithError(err).Warn("closing log file")
	}
	o.logFile = nil
}

// NewGQLStackCommand returns a cobra.Command to run the gqlstack command.
func NewGQLStackCommand(o *GlobalOptions) *cobra.Command {
	cmds := &cobra.Command{
		Use:          "gqlstack",
		Short:        "gqlstack: generate the deployment template of an AppSync GraphQL API",
		Long:         `gqlstack: generate the deployment template of an AppSync GraphQL API`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f, err := logutil.Set(o.LogLevel, o.LogFile)
			if err != nil {
				return err
			}
			o.logFile = f
			return nil
		},
	}
	o.AddFlags(cmds.PersistentFlags())

	cmds.AddCommand(NewCmdSynth(o))
	cmds.AddCommand(NewCmdValidate(o))
	cmds.AddCommand(NewCmdDiff(o))
	cmds.AddCommand(NewCmdHistory(o))
	cmds.AddCommand(NewCmdPreflight(o))
	cmds.AddCommand(NewCmdSeed(o))
	cmds.AddCommand(NewCmdVersion())

	return cmds
}

// NewCmdVersion returns a cobra.Command to run the 'version' subcommand.
func NewCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gqlstack version %s\n", version)
		},
	}
}
