package main

import (
	"context"
	"os"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "vital",
	Short: "VitalMem — per-user health memory service",
	Long:  `VitalMem keeps an encrypted, locally stored memory of a user's health conversations and daily logs.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
