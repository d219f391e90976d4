package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Theme         string          `mapstructure:"theme" yaml:"theme"`
	REPL          REPLConfig      `mapstructure:"repl" yaml:"repl"`
	Evaluator     EvaluatorConfig `mapstructure:"evaluator" yaml:"evaluator"`
	History       HistoryConfig   `mapstructure:"history" yaml:"history"`
	SSH           SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Evaluator modes.
const (
	EvaluatorEmbedded = "embedded"
	EvaluatorRemote   = "remote"
)

// REPLConfig controls prompts and the session state machine.
type REPLConfig struct {
	Prompt             string `mapstructure:"prompt" yaml:"prompt"`
	ContinuationPrompt string `mapstructure:"continuation_prompt" yaml:"continuation_prompt"`
	IndentWidth        int    `mapstructure:"indent_width" yaml:"indent_width"`
	MaxResets          int    `mapstructure:"max_resets" yaml:"max_resets"`
}

// EvaluatorConfig selects the evaluator backend.
type EvaluatorConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`
	Address        string `mapstructure:"address" yaml:"address"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the per-request deadline.
func (c EvaluatorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return core.DefaultCallTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HistoryConfig controls persistent command history.
type HistoryConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	LoadLimit int    `mapstructure:"load_limit" yaml:"load_limit"`
	Disabled  bool   `mapstructure:"disabled" yaml:"disabled"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
	TOTPSecret         string `mapstructure:"totp_secret" yaml:"totp_secret"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".replee", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		Theme:         string(schema.DefaultTheme),
		REPL: REPLConfig{
			Prompt:             core.DefaultPrompt,
			ContinuationPrompt: core.DefaultContinuationPrompt,
			IndentWidth:        2,
			MaxResets:          core.DefaultMaxResets,
		},
		Evaluator: EvaluatorConfig{
			Mode:           EvaluatorEmbedded,
			Address:        filepath.Join(stateDir, "evaluator.sock"),
			TimeoutSeconds: int(core.DefaultCallTimeout / time.Second),
		},
		History: HistoryConfig{
			Path:      filepath.Join(stateDir, "history.db"),
			LoadLimit: 1000,
		},
		SSH: SSHConfig{
			Addr:               ":27423",
			HostKeyPath:        filepath.Join(home, ".replee", "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(home, ".replee", "authorized_keys"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".replee", "config.yaml"), nil
}
