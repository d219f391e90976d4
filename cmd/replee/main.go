package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	args := applyArgv0Alias(os.Args)
	root := newRootCmd()
	root.SetArgs(args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("replee command failed")
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts replOptions
	root := &cobra.Command{
		Use:           "replee",
		Short:         "Interactive line editor for a remote expression evaluator",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
	opts.bind(root)

	root.AddCommand(newREPLCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newEvaluatorCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newTOTPCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func argv0Alias(base string) []string {
	switch base {
	case "repleed":
		return []string{"serve"}
	case "replee-evaluator":
		return []string{"evaluator", "serve"}
	default:
		return nil
	}
}

func applyArgv0Alias(args []string) []string {
	if len(args) == 0 {
		return args
	}
	alias := argv0Alias(filepath.Base(args[0]))
	if len(alias) == 0 {
		return args
	}
	out := make([]string, 0, len(args)+len(alias))
	out = append(out, args[0])
	out = append(out, alias...)
	out = append(out, args[1:]...)
	return out
}
