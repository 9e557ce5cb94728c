package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envPrefix starts every override variable, e.g. GRAYLOGIC_API_PORT.
const envPrefix = "GRAYLOGIC_"

// applyEnvOverrides copies every non-empty GRAYLOGIC_* variable named by
// an env struct tag into cfg. A value that does not parse leaves its field
// alone and is reported by Validate.
func applyEnvOverrides(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		cfg.envErrs = append(cfg.envErrs, fmt.Errorf("environment overrides: %w", err))
	}
}
