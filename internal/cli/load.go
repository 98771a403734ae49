package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danielorf/ArtCaptionBot/internal/logging"
	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// loadConfig merges defaults, the config file and the environment
func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper())
}

// decodeConfig registers every default key on v so env overrides apply to
// keys the config file leaves out, then decodes into a model.Config
func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := registerDefaults(v, cfg); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setDefaults(v, full, sub)
			continue
		}
		v.SetDefault(full, value)
	}
}

// newLogger builds the process logger; --verbose forces debug
func newLogger(cfg *model.Config) *slog.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Logging.Format)
}
