package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"huskycat/internal/hcerrors"
)

// ToolSpec is a user-supplied tool definition merged into the registry at
// startup. Fields mirror the catalog entry shape.
type ToolSpec struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Match       []string `mapstructure:"match" yaml:"match"`
	License     string   `mapstructure:"license" yaml:"license"`
	Command     []string `mapstructure:"command" yaml:"command"`
	CheckArgs   []string `mapstructure:"check_args" yaml:"check_args"`
	FixArgs     []string `mapstructure:"fix_args" yaml:"fix_args"`
	DependsOn   []string `mapstructure:"depends_on" yaml:"depends_on"`
	Cost        int      `mapstructure:"cost" yaml:"cost"`
	SupportsFix bool     `mapstructure:"supports_fix" yaml:"supports_fix"`
	WholeTree   bool     `mapstructure:"whole_tree" yaml:"whole_tree"`
}

// Config carries every tunable the orchestrator reads at startup.
type Config struct {
	Mode           string     `mapstructure:"mode" yaml:"mode"`
	Workers        int        `mapstructure:"workers" yaml:"workers"`
	TimeoutSeconds int        `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RetentionDays  int        `mapstructure:"retention_days" yaml:"retention_days"`
	Nonblocking    bool       `mapstructure:"nonblocking" yaml:"nonblocking"`
	DisabledTools  []string   `mapstructure:"disabled_tools" yaml:"disabled_tools"`
	Tools          []ToolSpec `mapstructure:"tools" yaml:"tools"`
}

// Defaults per the orchestrator contract: 60 s per-tool deadline, worker pool
// sized to the hardware thread count (resolved by the executor when 0), run
// retention of 14 days.
func defaultConfig() Config {
	return Config{
		TimeoutSeconds: 60,
		RetentionDays:  14,
	}
}

// Load reads layered configuration: defaults, then the user file at
// ~/.huskycat/config.yaml, then the project file .huskycat.yaml at repoRoot,
// then HUSKYCAT_* environment overrides.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".huskycat")
	v.SetConfigType("yaml")
	if repoRoot != "" {
		v.AddConfigPath(repoRoot)
	}
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".huskycat"))
	}

	v.SetEnvPrefix("HUSKYCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("mode", "HUSKYCAT_MODE")
	_ = v.BindEnv("workers", "HUSKYCAT_WORKERS")
	_ = v.BindEnv("timeout_seconds", "HUSKYCAT_TIMEOUT_SECONDS")
	_ = v.BindEnv("nonblocking", "HUSKYCAT_NONBLOCKING")

	cfg := defaultConfig()
	v.SetDefault("timeout_seconds", cfg.TimeoutSeconds)
	v.SetDefault("retention_days", cfg.RetentionDays)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; a malformed one is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, hcerrors.Wrap(hcerrors.KindConfiguration, err, "malformed config file")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindConfiguration, err, "invalid config values")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 14
	}
	return &cfg, nil
}
