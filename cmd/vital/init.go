package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/pkg/env"
	"github.com/sandevgo/vitalmem/pkg/log"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the runtime directory and write the resolved configuration to .env",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancelLogger := setupLogger(cmd.Context())
		defer cancelLogger()
		logger := log.FromCtx(ctx)

		path := config.GetRuntimePath()
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal().Err(err).Msg("failed to create runtime directory")
		}

		envPath := filepath.Join(path, ".env")
		if _, err := os.Stat(envPath); err == nil {
			logger.Fatal().Str("path", envPath).Msg(".env already exists, remove it to re-initialize")
		}

		// Snapshot the resolved values so a fresh install starts from
		// explicit settings instead of implicit defaults
		var sections []string
		for _, cfg := range []any{
			config.NewAppConfig(ctx),
			config.NewStorageConfig(ctx),
			config.NewMemoryConfig(ctx),
			config.NewArchiveConfig(ctx),
			config.NewExtractConfig(ctx),
		} {
			content, err := env.MarshalEnv(cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to marshal config")
			}
			if content != "" {
				sections = append(sections, content)
			}
		}

		if err := os.WriteFile(envPath, []byte(strings.Join(sections, "\n")), 0600); err != nil {
			logger.Fatal().Err(err).Msg("failed to write .env")
		}

		fmt.Printf("Initialized %s\n", envPath)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
