package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replee/internal/appconfig"
	"pkt.systems/replee/internal/histstore"
)

func newHistoryCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect persistent command history",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded commands, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryForCmd(cmd, cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			cmds, err := store.Cmds(limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), cmds)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 0, "show only the newest n commands")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryForCmd(cmd, cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Clear(); err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("history cleared")
			return nil
		},
	})
	return cmd
}

func openHistoryForCmd(cmd *cobra.Command, cfgPath string) (*histstore.Store, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.History.Disabled {
		return nil, errors.New("history is disabled in config")
	}
	return histstore.Open(cmd.Context(), cfg.History.Path)
}

// printHistory writes one entry per command; continuation lines of
// multi-line commands are indented under the first.
func printHistory(w io.Writer, cmds []histstore.Cmd) error {
	for _, c := range cmds {
		text := strings.ReplaceAll(c.Text, "\n", "\n       ")
		if _, err := fmt.Fprintf(w, "%5d  %s\n", c.Seq, text); err != nil {
			return err
		}
	}
	return nil
}
