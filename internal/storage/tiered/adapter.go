// Package tiered persists structured records across hot/warm retention
// windows, encrypting payloads at rest and forwarding aged records to
// the remote archive.
package tiered

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold" // eligible for cloud archival
)

type Adapter struct {
	repo    core.RecordRepository
	cipher  core.Cipher
	archive core.ArchiveClient
	cfg     *config.StorageConfig

	mu          sync.Mutex
	initialized bool
}

func NewAdapter(repo core.RecordRepository, cipher core.Cipher, archive core.ArchiveClient, cfg *config.StorageConfig) *Adapter {
	return &Adapter{
		repo:    repo,
		cipher:  cipher,
		archive: archive,
		cfg:     cfg,
	}
}

// Initialize is idempotent; calling it again never re-creates
// underlying structures.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}
	if a.cfg.HotStorageDays <= 0 || a.cfg.WarmStorageDays <= a.cfg.HotStorageDays {
		return fmt.Errorf("invalid retention windows: hot=%d warm=%d", a.cfg.HotStorageDays, a.cfg.WarmStorageDays)
	}
	a.initialized = true
	return nil
}

// Put marshals the value to canonical JSON, encrypts it when
// encryption is enabled, and overwrites the record at (user, kind, key).
func (a *Adapter) Put(ctx context.Context, userID string, kind core.RecordKind, key string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	payload := plaintext
	encrypted := false
	if a.cfg.EncryptionEnabled {
		if payload, err = a.cipher.Encrypt(plaintext); err != nil {
			return fmt.Errorf("failed to encrypt record: %w", err)
		}
		encrypted = true
	}

	return a.repo.Put(ctx, core.Record{
		UserID:    userID,
		Kind:      kind,
		Key:       key,
		Payload:   payload,
		Encrypted: encrypted,
	})
}

// Get loads and decodes the record into out. Returns core.ErrNotFound
// for missing records and for records whose payload has been evicted
// to the archive.
func (a *Adapter) Get(ctx context.Context, userID string, kind core.RecordKind, key string, out any) error {
	rec, err := a.repo.Get(ctx, userID, kind, key)
	if err != nil {
		return err
	}
	if rec.Archived {
		return core.ErrNotFound
	}
	return a.decode(*rec, out)
}

// QueryByDateRange returns decoded payloads for records whose natural
// keys fall inside [start, end], oldest first.
func (a *Adapter) QueryByDateRange(ctx context.Context, userID string, kind core.RecordKind, start, end time.Time) ([]json.RawMessage, error) {
	records, err := a.repo.QueryByKeyRange(ctx, userID, kind,
		start.Format(core.DateKey), end.Format(core.DateKey))
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		var raw json.RawMessage
		if err := a.decode(rec, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", rec.Key, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Delete removes the record at (user, kind, key). The archived copy,
// if any, is not touched.
func (a *Adapter) Delete(ctx context.Context, userID string, kind core.RecordKind, key string) error {
	return a.repo.Delete(ctx, userID, kind, key)
}

// Tier classifies a record by age against the configured windows.
func (a *Adapter) Tier(rec core.Record, now time.Time) Tier {
	age := rec.Age(now)
	switch {
	case age < time.Duration(a.cfg.HotStorageDays)*24*time.Hour:
		return TierHot
	case age < time.Duration(a.cfg.WarmStorageDays)*24*time.Hour:
		return TierWarm
	default:
		return TierCold
	}
}

// ArchiveIfDue forwards records past the warm window to the remote
// archive and evicts their local payloads. Already-encrypted payloads
// are forwarded as-is, never re-encrypted. A record is marked archived
// only after its upload fully succeeded, so a failed upload leaves the
// record due on the next pass.
func (a *Adapter) ArchiveIfDue(ctx context.Context) (int, error) {
	if !a.cfg.CloudArchiveEnabled {
		return 0, nil
	}

	logger := log.FromCtx(ctx)
	cutoff := time.Now().Add(-time.Duration(a.cfg.WarmStorageDays) * 24 * time.Hour)

	due, err := a.repo.ListUpdatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, rec := range due {
		ref, err := a.forward(ctx, rec)
		if err != nil {
			logger.Warn().Err(err).
				Str("kind", string(rec.Kind)).Str("key", rec.Key).
				Msg("archive upload failed, record stays local")
			continue
		}
		if err := a.repo.MarkArchived(ctx, rec.UserID, rec.Kind, rec.Key, ref.URI); err != nil {
			return archived, fmt.Errorf("failed to checkpoint archived record: %w", err)
		}
		archived++
	}

	if archived > 0 {
		logger.Info().Int("count", archived).Msg("records archived to cloud")
	}
	return archived, nil
}

func (a *Adapter) forward(ctx context.Context, rec core.Record) (*core.StorageReference, error) {
	opts := core.StoreOptions{
		DataType: string(rec.Kind),
		Metadata: map[string]string{"key": rec.Key},
	}

	if !rec.Encrypted {
		return a.archive.Store(ctx, rec.Payload, rec.UserID, opts)
	}

	// The content hash covers the plaintext; decrypt only to hash,
	// then forward the stored ciphertext untouched.
	plaintext, err := a.cipher.Decrypt(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to hash archived payload: %w", err)
	}
	sum := sha256.Sum256(plaintext)
	return a.archive.StoreCiphertext(ctx, rec.Payload, hex.EncodeToString(sum[:]), rec.UserID, opts)
}

func (a *Adapter) decode(rec core.Record, out any) error {
	payload := rec.Payload
	if rec.Encrypted {
		var err error
		if payload, err = a.cipher.Decrypt(rec.Payload); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		// Intact ciphertext that decrypts to garbage means the wrong key
		if rec.Encrypted {
			return fmt.Errorf("unmarshal decrypted payload: %w", core.ErrKeyMismatch)
		}
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
