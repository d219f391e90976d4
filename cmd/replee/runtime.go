package main

import (
	"context"
	"fmt"

	"pkt.systems/pslog"
	"pkt.systems/replee/console"
	"pkt.systems/replee/core"
	"pkt.systems/replee/internal/appconfig"
	"pkt.systems/replee/internal/evalrpc"
	"pkt.systems/replee/internal/histstore"
	"pkt.systems/replee/internal/jsvm"
	"pkt.systems/replee/schema"
)

// newEvaluator returns the configured evaluator and its release func.
func newEvaluator(ctx context.Context, cfg appconfig.Config) (core.Evaluator, func(), error) {
	logger := pslog.Ctx(ctx)
	switch cfg.Evaluator.Mode {
	case appconfig.EvaluatorRemote:
		client, err := evalrpc.Dial(ctx, cfg.Evaluator.Address)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("evaluator selected", "mode", cfg.Evaluator.Mode, "address", cfg.Evaluator.Address)
		return client, func() { _ = client.Close() }, nil
	case appconfig.EvaluatorEmbedded, "":
		vm, err := jsvm.New(jsvm.WithIndentWidth(cfg.REPL.IndentWidth))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("evaluator selected", "mode", appconfig.EvaluatorEmbedded)
		return vm, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported evaluator.mode %q", cfg.Evaluator.Mode)
	}
}

// openHistory opens the persistent history store unless disabled. A nil
// store with a nil error means history is off.
func openHistory(ctx context.Context, cfg appconfig.Config) (*histstore.Store, error) {
	if cfg.History.Disabled {
		return nil, nil
	}
	return histstore.Open(ctx, cfg.History.Path)
}

func sessionConfig(cfg appconfig.Config) core.SessionConfig {
	return core.SessionConfig{
		Prompt:             cfg.REPL.Prompt,
		ContinuationPrompt: cfg.REPL.ContinuationPrompt,
		MaxResets:          cfg.REPL.MaxResets,
	}
}

// consoleOptions builds console options, seeding history from store when set.
func consoleOptions(ctx context.Context, cfg appconfig.Config, store *histstore.Store) console.Options {
	opts := console.Options{
		Session: sessionConfig(cfg),
		Theme:   schema.ThemeName(cfg.Theme),
		Timeout: cfg.Evaluator.Timeout(),
	}
	if store == nil {
		return opts
	}
	opts.Recorder = store
	texts, err := store.Texts(cfg.History.LoadLimit)
	if err != nil {
		pslog.Ctx(ctx).Warn("history load failed", "err", err)
		return opts
	}
	opts.History = texts
	return opts
}
