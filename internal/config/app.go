package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"VITAL_RUNTIME_PATH" envDefault:".vitalmem"`

	// Transport flags
	EnableHTTP bool   `env:"VITAL_ENABLE_HTTP" envDefault:"true"`
	ListenAddr string `env:"VITAL_LISTEN_ADDR" envDefault:"127.0.0.1:8199"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

// GetRuntimePath resolves the runtime directory, anchoring relative
// paths at the user's home directory.
func (c AppConfig) GetRuntimePath() string {
	path := c.RuntimePath
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.GetRuntimePath(), "vitalmem.db")
}
