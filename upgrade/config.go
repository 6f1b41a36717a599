package upgrade

import (
	"fmt"
	"time"
)

type Config struct {
	// StageDir holds staged artifacts, one directory per sha256.
	StageDir string `mapstructure:"stage_dir"`
	// BaseURL is where the nodes fetch StageDir from.
	BaseURL string `mapstructure:"base_url"`
	// SafetyMargin is the least number of blocks between submission and activation.
	SafetyMargin uint64 `mapstructure:"safety_margin"`
	// ActivationOffset is added to the current height when no offset is given.
	ActivationOffset   uint64        `mapstructure:"activation_offset"`
	ConvergenceTimeout time.Duration `mapstructure:"convergence_timeout"`
}

func DefaultConfig() Config {
	return Config{
		StageDir:           "stage",
		BaseURL:            "http://localhost:8080/files",
		SafetyMargin:       10,
		ActivationOffset:   40,
		ConvergenceTimeout: 5 * time.Minute,
	}
}

func (cfg Config) ValidateBasic() error {
	if cfg.StageDir == "" {
		return fmt.Errorf("upgrade.stage_dir must be set")
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("upgrade.base_url must be set")
	}
	if cfg.ActivationOffset <= cfg.SafetyMargin {
		return fmt.Errorf("upgrade.activation_offset %d must exceed safety_margin %d", cfg.ActivationOffset, cfg.SafetyMargin)
	}
	if cfg.ConvergenceTimeout <= 0 {
		return fmt.Errorf("upgrade.convergence_timeout must be positive")
	}
	return nil
}
