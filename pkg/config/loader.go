package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig mirrors the on-disk pulse.yaml shape. Every field is a pointer
// or a plain struct pointer so mergo only overrides what the file actually
// sets, leaving DefaultConfig's values in place otherwise.
type YAMLConfig struct {
	Receiver   *ReceiverConfig   `yaml:"receiver"`
	Pipeline   *PipelineConfig   `yaml:"pipeline"`
	Enricher   *EnricherConfig   `yaml:"enricher"`
	Cost       *CostConfig       `yaml:"cost"`
	Aggregator *AggregatorConfig `yaml:"aggregator"`
	Persister  *PersisterConfig  `yaml:"persister"`
	Alert      *AlertConfig      `yaml:"alert"`
	System     *SystemConfig     `yaml:"system"`
}

// Initialize loads pulse.yaml from configDir (if present), expands
// environment variables, merges it over the built-in defaults, validates the
// result, and returns a ready-to-use Config.
//
// A missing pulse.yaml is not an error — pure built-in defaults are valid.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := DefaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "pulse.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var overlay YAMLConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, NewLoadError("pulse.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := applyOverlay(cfg, &overlay); err != nil {
			return nil, NewLoadError("pulse.yaml", err)
		}
		log.Info("Loaded configuration overlay", "path", path)
	case os.IsNotExist(err):
		log.Info("No pulse.yaml found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError("pulse.yaml", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	return cfg, nil
}

// applyOverlay merges non-zero fields from overlay onto cfg in place.
func applyOverlay(cfg *Config, overlay *YAMLConfig) error {
	if overlay.Receiver != nil {
		if err := mergo.Merge(&cfg.Receiver, *overlay.Receiver, mergo.WithOverride); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
	}
	if overlay.Pipeline != nil {
		if err := mergo.Merge(&cfg.Pipeline, *overlay.Pipeline, mergo.WithOverride); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
	}
	if overlay.Enricher != nil {
		if err := mergo.Merge(&cfg.Enricher, *overlay.Enricher, mergo.WithOverride); err != nil {
			return fmt.Errorf("enricher: %w", err)
		}
	}
	if overlay.Cost != nil {
		if err := mergo.Merge(&cfg.Cost, *overlay.Cost, mergo.WithOverride); err != nil {
			return fmt.Errorf("cost: %w", err)
		}
	}
	if overlay.Aggregator != nil {
		if err := mergo.Merge(&cfg.Aggregator, *overlay.Aggregator, mergo.WithOverride); err != nil {
			return fmt.Errorf("aggregator: %w", err)
		}
	}
	if overlay.Persister != nil {
		if err := mergo.Merge(&cfg.Persister, *overlay.Persister, mergo.WithOverride); err != nil {
			return fmt.Errorf("persister: %w", err)
		}
	}
	if overlay.Alert != nil {
		if err := mergo.Merge(&cfg.Alert, *overlay.Alert, mergo.WithOverride); err != nil {
			return fmt.Errorf("alert: %w", err)
		}
	}
	if overlay.System != nil {
		if err := mergo.Merge(&cfg.System, *overlay.System, mergo.WithOverride); err != nil {
			return fmt.Errorf("system: %w", err)
		}
	}
	return nil
}
