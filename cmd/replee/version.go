package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/replee/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Read()
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, info.String()); err != nil {
				return err
			}
			if !verbose {
				return nil
			}
			if info.Revision != "" {
				_, _ = fmt.Fprintf(out, "revision: %s\n", info.Revision)
			}
			if !info.Time.IsZero() {
				_, _ = fmt.Fprintf(out, "time: %s\n", info.Time.Format(time.RFC3339))
			}
			if info.Modified {
				_, _ = fmt.Fprintln(out, "modified: true")
			}
			if info.GoVersion != "" {
				_, _ = fmt.Fprintf(out, "go: %s\n", info.GoVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include vcs and toolchain details")
	return cmd
}
