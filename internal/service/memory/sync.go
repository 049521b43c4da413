package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

const memoryDataType = "conversation-memory"

// SyncToCloud uploads the user's aggregate as an encrypted snapshot.
// Debounced per user: skipped when the last sync for that user was
// within the configured window, unless force is set. The aggregate is
// re-read here, at sync time, so a sync scheduled before a later local
// mutation still uploads the latest state.
func (s *Service) SyncToCloud(ctx context.Context, userID string, force bool) error {
	s.mu.Lock()
	last, ok := s.lastSync[userID]
	s.mu.Unlock()
	if ok && !force && time.Since(last) < s.cfg.SyncDebounce {
		log.FromCtx(ctx).Debug().Str("user", userID).Msg("sync debounced")
		return nil
	}

	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to serialize memory snapshot: %w", err)
	}

	ref, err := s.archive.Store(ctx, plaintext, userID, core.StoreOptions{
		DataType: memoryDataType,
		Metadata: map[string]string{"last-updated": mem.LastUpdated.UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return fmt.Errorf("failed to upload memory snapshot: %w", err)
	}

	s.mu.Lock()
	s.lastSync[userID] = time.Now()
	s.mu.Unlock()

	log.FromCtx(ctx).Info().
		Str("user", userID).
		Str("uri", ref.URI).
		Int64("size", ref.Size).
		Msg("memory synced to cloud")
	return nil
}

// PullFromCloud fetches the most recent remote snapshot, merges it
// with the local aggregate, persists the result and returns it. With
// no remote snapshot the local aggregate is returned untouched.
func (s *Service) PullFromCloud(ctx context.Context, userID string) (*core.ConversationMemory, error) {
	logger := log.FromCtx(ctx)

	local, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	refs, err := s.archive.List(ctx, userID, memoryDataType)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote snapshots: %w", err)
	}
	if len(refs) == 0 {
		return local, nil
	}

	// Newest first; retrieval tolerates partial failure by falling
	// back to the next snapshot.
	sort.Slice(refs, func(a, b int) bool {
		return refs[a].UploadedAt.After(refs[b].UploadedAt)
	})

	var remote *core.ConversationMemory
	for _, ref := range refs {
		result, err := s.archive.Retrieve(ctx, ref.URI, ref.ContentHash)
		if err != nil {
			logger.Warn().Err(err).Str("uri", ref.URI).Msg("snapshot retrieval failed")
			continue
		}
		if !result.Verified {
			logger.Warn().Str("uri", ref.URI).Msg("snapshot failed integrity check, using anyway")
		}
		if len(result.Data) == 0 {
			continue
		}
		snapshot, err := decodeSnapshot(result.Data)
		if err != nil {
			logger.Warn().Err(err).Str("uri", ref.URI).Msg("snapshot rejected at boundary")
			continue
		}
		remote = snapshot
		break
	}
	if remote == nil {
		return local, nil
	}

	merged := mergeMemories(local, remote)
	if err := s.save(ctx, merged); err != nil {
		return nil, err
	}

	logger.Info().
		Str("user", userID).
		Int("facts", len(merged.CriticalFacts)).
		Msg("memory reconciled from cloud")
	return merged, nil
}
