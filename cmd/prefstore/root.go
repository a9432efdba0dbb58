package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"code.byted.org/khicago/prefstore"
)

// app carries what the subcommands share once flags are parsed.
type app struct {
	configFile string
	dir        string
	appID      string
	verbosity  int

	logger zerolog.Logger
	disk   *prefstore.Disk
}

// Execute runs the command line against os.Args.
func Execute() error {
	return newRootCmd(os.Stdout, os.Stderr).Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "prefstore",
		Short: "Inspect and edit a prefstore directory",
		Long: `prefstore reads and writes the preference store used by applications built
on the prefstore package: a manifest of small inline values plus one file per
large value.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "storage directory (overrides app id)")
	root.PersistentFlags().StringVar(&a.appID, "app-id", "", "application identifier selecting the default directory")
	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newKeysCmd(a),
		newInfoCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) open(stderr io.Writer) error {
	a.logger = newLogger(stderr, a.verbosity)

	cfg, err := prefstore.LoadConfig(a.configFile)
	if err != nil {
		return err
	}
	if a.appID != "" {
		cfg.AppID = a.appID
	}
	if a.dir != "" {
		cfg.Dir = a.dir
	}

	opts := append(cfg.DiskOptions(), prefstore.WithDiskLogger(prefstore.NewZerologLogger(a.logger)))
	disk, err := prefstore.OpenDisk(opts...)
	if err != nil {
		return err
	}
	a.disk = disk
	a.logger.Debug().Str("dir", disk.Dir()).Msg("store opened")
	return nil
}
