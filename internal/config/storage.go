package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vitalmem/pkg/log"
)

// StorageConfig controls the tiered local store. Records younger than
// HotStorageDays sit in the hot tier, records between hot and warm in
// the warm tier, and older records become eligible for cloud archival.
type StorageConfig struct {
	HotStorageDays      int  `env:"VITAL_HOT_STORAGE_DAYS" envDefault:"30"`
	WarmStorageDays     int  `env:"VITAL_WARM_STORAGE_DAYS" envDefault:"180"`
	EncryptionEnabled   bool `env:"VITAL_ENCRYPTION_ENABLED" envDefault:"true"`
	CloudArchiveEnabled bool `env:"VITAL_CLOUD_ARCHIVE_ENABLED" envDefault:"false"`

	// ArchiveSweepInterval is how often the cold-tier sweep looks for
	// records due for forwarding.
	ArchiveSweepInterval time.Duration `env:"VITAL_ARCHIVE_SWEEP_INTERVAL" envDefault:"1h"`

	// KeySignatureFile points at the signature artifact the encryption
	// key is derived from. Empty means the key stays uninitialized and
	// encrypted operations fail until a signature is provided.
	KeySignatureFile string `env:"VITAL_KEY_SIGNATURE_FILE"`
}

func NewStorageConfig(ctx context.Context) *StorageConfig {
	c := &StorageConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse storage config")
	}
	return c
}
