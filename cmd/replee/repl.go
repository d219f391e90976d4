package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/pslog"
	"pkt.systems/replee/console"
	"pkt.systems/replee/internal/appconfig"
	"pkt.systems/replee/internal/logx"
	"pkt.systems/replee/schema"
)

type replOptions struct {
	cfgPath   string
	remote    string
	theme     string
	noHistory bool
}

func (o *replOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&o.remote, "remote", "", "evaluator address (unix socket path or host:port); overrides evaluator.mode")
	cmd.Flags().StringVar(&o.theme, "theme", "", "console theme")
	cmd.Flags().BoolVar(&o.noHistory, "no-history", false, "do not load or store persistent history")
}

// apply layers command line overrides on cfg.
func (o replOptions) apply(cfg *appconfig.Config) error {
	if o.remote != "" {
		cfg.Evaluator.Mode = appconfig.EvaluatorRemote
		cfg.Evaluator.Address = o.remote
	}
	if o.theme != "" {
		theme, ok := schema.NormalizeThemeName(o.theme)
		if !ok {
			return schema.ErrInvalidTheme
		}
		cfg.Theme = string(theme)
	}
	if o.noHistory {
		cfg.History.Disabled = true
	}
	return nil
}

func newREPLCmd() *cobra.Command {
	var opts replOptions
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runREPL(cmd *cobra.Command, opts replOptions) error {
	cfg, err := appconfig.Load(opts.cfgPath)
	if err != nil {
		return err
	}
	if err := opts.apply(&cfg); err != nil {
		return err
	}

	logger := pslog.Ctx(cmd.Context()).With("session", schema.LocalSessionID)
	ctx := logx.ContextWithSessionLogger(cmd.Context(), logger, "", schema.LocalSessionID)

	evaluator, release, err := newEvaluator(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		logger.Warn("history unavailable", "err", err, "path", cfg.History.Path)
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}
	consoleOpts := consoleOptions(ctx, cfg, store)

	in := cmd.InOrStdin()
	if in == os.Stdin && isTerminal(os.Stdin) {
		fd := int(os.Stdin.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(fd, state) }()
		logger.Debug("repl started", "mode", "terminal", "evaluator", cfg.Evaluator.Mode)
		return console.New(os.Stdin, cmd.OutOrStdout(), evaluator, consoleOpts).Run(ctx)
	}
	logger.Debug("repl started", "mode", "lines", "evaluator", cfg.Evaluator.Mode)
	return console.New(in, cmd.OutOrStdout(), evaluator, consoleOpts).RunLines(ctx)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
