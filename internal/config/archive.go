package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type ArchiveConfig struct {
	BaseURL string `env:"VITAL_ARCHIVE_URL" envDefault:"http://127.0.0.1:9480"`
	APIKey  string `env:"VITAL_ARCHIVE_API_KEY"`
}

func NewArchiveConfig(ctx context.Context) *ArchiveConfig {
	c := &ArchiveConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse archive config")
	}
	return c
}
