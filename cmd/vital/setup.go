package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/crypto"
	"github.com/sandevgo/vitalmem/internal/providers/archive"
	"github.com/sandevgo/vitalmem/internal/providers/extract"
	"github.com/sandevgo/vitalmem/internal/search"
	"github.com/sandevgo/vitalmem/internal/service/health"
	"github.com/sandevgo/vitalmem/internal/service/memory"
	"github.com/sandevgo/vitalmem/internal/storage/sqlite"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
	"github.com/sandevgo/vitalmem/internal/transport/httpapi"
	"github.com/sandevgo/vitalmem/pkg/log"
	"github.com/sandevgo/vitalmem/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	storageCfg := config.NewStorageConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)
	archiveCfg := config.NewArchiveConfig(ctx)
	extractCfg := config.NewExtractConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	recordsRepo := sqlite.NewRecordsRepo(db)
	searchStore := sqlite.NewSearchStore(db)

	// 3. Encryption key
	keys := crypto.NewKeyManager()
	initEncryptionKey(ctx, keys, storageCfg)

	// 4. Archive client
	archiveClient := archive.NewClient(archive.NewHTTPTransport(archiveCfg), keys)

	// 5. Tiered store over the records repo
	store := tiered.NewAdapter(recordsRepo, keys, archiveClient, storageCfg)
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tiered storage")
	}
	if storageCfg.CloudArchiveEnabled {
		services = append(services, tiered.NewArchiver(store, storageCfg.ArchiveSweepInterval))
	}

	// 6. Search index
	index := search.NewIndex(searchStore)

	// 7. Extraction provider
	extractor, err := extract.NewClient(extractCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize extraction client")
	}

	// 8. Domain services
	memories := memory.NewService(store, index, extractor, archiveClient, memCfg)
	services = append(services, memories)

	dailyLog := health.NewDailyLogService(store, index)
	profiles := health.NewProfileStore(store, index)

	// 9. Transports
	if appCfg.EnableHTTP {
		services = append(services, httpapi.NewServer(ctx, appCfg, memories, dailyLog, profiles, index))
	}

	return services
}

// initEncryptionKey derives the AES key from the signature artifact
// when one is configured. Without it the key manager stays
// uninitialized and encrypted operations fail until a signature
// arrives; that is a usable state for plaintext-only setups.
func initEncryptionKey(ctx context.Context, keys *crypto.KeyManager, cfg *config.StorageConfig) {
	logger := log.FromCtx(ctx)

	if cfg.KeySignatureFile == "" {
		if cfg.EncryptionEnabled {
			logger.Warn().Msg("encryption enabled but no key signature file configured")
		}
		return
	}

	signature, err := os.ReadFile(cfg.KeySignatureFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.KeySignatureFile).Msg("failed to read key signature file")
	}
	if err := keys.Initialize(signature); err != nil {
		logger.Fatal().Err(err).Msg("failed to derive encryption key")
	}
	logger.Info().Msg("encryption key derived from signature artifact")
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
