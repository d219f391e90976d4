package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/replee/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("theme", cfg.Theme)
	v.SetDefault("repl.prompt", cfg.REPL.Prompt)
	v.SetDefault("repl.continuation_prompt", cfg.REPL.ContinuationPrompt)
	v.SetDefault("repl.indent_width", cfg.REPL.IndentWidth)
	v.SetDefault("repl.max_resets", cfg.REPL.MaxResets)
	v.SetDefault("evaluator.mode", cfg.Evaluator.Mode)
	v.SetDefault("evaluator.address", cfg.Evaluator.Address)
	v.SetDefault("evaluator.timeout_seconds", cfg.Evaluator.TimeoutSeconds)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("history.load_limit", cfg.History.LoadLimit)
	v.SetDefault("history.disabled", cfg.History.Disabled)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("ssh.totp_secret", cfg.SSH.TOTPSecret)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		// SetDefault makes IsSet always true; only the file counts here.
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	theme, ok := schema.NormalizeThemeName(cfg.Theme)
	if !ok {
		return fmt.Errorf("%w %q; available: %v", schema.ErrInvalidTheme, cfg.Theme, schema.AvailableThemes())
	}
	cfg.Theme = string(theme)
	switch strings.ToLower(strings.TrimSpace(cfg.Evaluator.Mode)) {
	case EvaluatorEmbedded:
		cfg.Evaluator.Mode = EvaluatorEmbedded
	case EvaluatorRemote:
		cfg.Evaluator.Mode = EvaluatorRemote
		if strings.TrimSpace(cfg.Evaluator.Address) == "" {
			return fmt.Errorf("evaluator.address is required for evaluator.mode %q", EvaluatorRemote)
		}
	default:
		return fmt.Errorf("unsupported evaluator.mode %q", cfg.Evaluator.Mode)
	}
	if cfg.Evaluator.TimeoutSeconds < 0 {
		return fmt.Errorf("evaluator.timeout_seconds must not be negative")
	}
	if cfg.REPL.IndentWidth < 0 {
		return fmt.Errorf("repl.indent_width must not be negative")
	}
	if cfg.History.LoadLimit < 0 {
		return fmt.Errorf("history.load_limit must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Evaluator.Address = expandEnv(cfg.Evaluator.Address)
	cfg.History.Path = expandEnv(cfg.History.Path)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
	cfg.SSH.TOTPSecret = expandEnv(cfg.SSH.TOTPSecret)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
