package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type ExtractConfig struct {
	BaseURL string `env:"VITAL_EXTRACT_URL" envDefault:"https://api.openai.com"`
	APIKey  string `env:"VITAL_EXTRACT_API_KEY"`
	Model   string `env:"VITAL_EXTRACT_MODEL" envDefault:"gpt-4o-mini"`

	// Token budget for the transcript portion of an extraction request.
	TranscriptTokenBudget int `env:"VITAL_EXTRACT_TOKEN_BUDGET" envDefault:"6000"`
}

func NewExtractConfig(ctx context.Context) *ExtractConfig {
	c := &ExtractConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse extract config")
	}
	return c
}
