package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type MemoryConfig struct {
	MaxFactsPerCategory   int           `env:"VITAL_MAX_FACTS_PER_CATEGORY" envDefault:"15"`
	InactiveFactPruneDays int           `env:"VITAL_INACTIVE_FACT_PRUNE_DAYS" envDefault:"90"`
	SyncDebounce          time.Duration `env:"VITAL_SYNC_DEBOUNCE" envDefault:"5s"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse memory config")
	}
	return c
}
