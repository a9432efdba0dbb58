package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"code.byted.org/khicago/prefstore"
)

func newGetCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.disk.Get(contextOrBackground(cmd), args[0])
			if errors.Is(err, prefstore.ErrNotFound) {
				return fmt.Errorf("key %q not found", args[0])
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(v); err != nil {
				return err
			}
			if !raw {
				_, err = fmt.Fprintln(out)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "do not append a newline")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var fromFile string
	cmd := &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Store VALUE (or the contents of --file) under KEY",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value []byte
			switch {
			case fromFile != "" && len(args) == 2:
				return errors.New("give either VALUE or --file, not both")
			case fromFile != "":
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return err
				}
				value = data
			case len(args) == 2:
				value = []byte(args[1])
			default:
				return errors.New("missing VALUE")
			}
			return a.disk.Set(contextOrBackground(cmd), args[0], value)
		},
	}
	cmd.Flags().StringVar(&fromFile, "file", "", "read the value from a file")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"rm"},
		Short:   "Remove KEY and its backing file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.disk.Delete(contextOrBackground(cmd), args[0])
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "keys [PATTERN]",
		Short: "List keys, optionally filtered by a glob PATTERN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			keys, err := a.disk.Keys(contextOrBackground(cmd), prefix, pattern)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "namespace to list")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info KEY",
		Short: "Show where KEY is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			placement, ok := a.disk.Placement(args[0])
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:       %s\n", args[0])
			fmt.Fprintf(out, "placement: %s\n", placement)
			if placement == prefstore.PlacementFile {
				fmt.Fprintf(out, "file:      %s\n", a.disk.FilePath(args[0]))
			}
			fmt.Fprintf(out, "manifest:  %s\n", a.disk.ManifestPath())
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print keys as other processes change them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.logger.Info().Str("dir", a.disk.Dir()).Msg("watching")
			return a.disk.Watch(ctx, func(keys []string) {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			})
		},
	}
}

// contextOrBackground keeps commands runnable when executed without
// ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
