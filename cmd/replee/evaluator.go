package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replee/internal/appconfig"
	"pkt.systems/replee/internal/evalrpc"
	"pkt.systems/replee/internal/jsvm"
)

const pingTimeout = 5 * time.Second

func newEvaluatorCmd() *cobra.Command {
	var cfgPath string
	var address string
	cmd := &cobra.Command{
		Use:   "evaluator",
		Short: "Host or ping a remote evaluator",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&address, "address", "", "evaluator address (overrides evaluator.address)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the embedded JavaScript evaluator over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEvaluatorConfig(cfgPath, address)
			if err != nil {
				return err
			}
			vm, err := jsvm.New(jsvm.WithIndentWidth(cfg.REPL.IndentWidth))
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("evaluator serve starting", "address", cfg.Evaluator.Address)
			server := evalrpc.NewServer(evalrpc.Config{Address: cfg.Evaluator.Address}, vm)
			return server.ListenAndServe(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that a remote evaluator is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEvaluatorConfig(cfgPath, address)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
			defer cancel()
			client, err := evalrpc.Dial(ctx, cfg.Evaluator.Address)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			if err := client.Ping(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s serving\n", cfg.Evaluator.Address)
			return err
		},
	})
	return cmd
}

func loadEvaluatorConfig(cfgPath, address string) (appconfig.Config, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if address != "" {
		cfg.Evaluator.Address = address
	}
	return cfg, nil
}
