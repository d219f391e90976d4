package main

import (
	"context"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replee/core"
	"pkt.systems/replee/internal/appconfig"
	"pkt.systems/replee/sshserver"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REPL over SSH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SSH.Addr = addr
			}

			store, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			opts := consoleOptions(cmd.Context(), cfg, nil)
			server := sshserver.NewServer(toSSHConfig(cfg.SSH), func(ctx context.Context) (core.Evaluator, func(), error) {
				return newEvaluator(ctx, cfg)
			})
			server.Console = opts
			if store != nil {
				defer func() { _ = store.Close() }()
				server.Console.Recorder = store
				server.History = store
				server.HistoryLimit = cfg.History.LoadLimit
			}
			logger.Info("ssh serve starting", "addr", cfg.SSH.Addr, "evaluator", cfg.Evaluator.Mode)
			return server.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ssh.addr)")
	return cmd
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		TOTPSecret:         cfg.TOTPSecret,
	}
}
