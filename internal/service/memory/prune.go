package memory

import (
	"context"
	"sort"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

// PruneMemory drops inactive facts past the retention window and caps
// facts per category, keeping the most recent by DateIdentified.
// Returns the counts removed by each step; the aggregate is persisted
// only when something changed.
func (s *Service) PruneMemory(ctx context.Context, userID string) (droppedInactive, droppedOverCap int, err error) {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	droppedInactive = dropStaleInactive(mem, s.cfg.InactiveFactPruneDays)
	droppedOverCap = capPerCategory(mem, s.cfg.MaxFactsPerCategory)

	if droppedInactive == 0 && droppedOverCap == 0 {
		return 0, 0, nil
	}

	mem.Touch()
	if err := s.save(ctx, mem); err != nil {
		return 0, 0, err
	}

	log.FromCtx(ctx).Debug().
		Str("user", userID).
		Int("inactive", droppedInactive).
		Int("over_cap", droppedOverCap).
		Msg("memory pruned")
	return droppedInactive, droppedOverCap, nil
}

func dropStaleInactive(mem *core.ConversationMemory, pruneDays int) int {
	cutoff := time.Now().AddDate(0, 0, -pruneDays)

	kept := mem.CriticalFacts[:0]
	dropped := 0
	for _, f := range mem.CriticalFacts {
		if !f.IsActive && f.DateIdentified.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, f)
	}
	mem.CriticalFacts = kept
	return dropped
}

func capPerCategory(mem *core.ConversationMemory, maxPerCategory int) int {
	byCategory := make(map[core.FactCategory][]core.CriticalFact)
	for _, f := range mem.CriticalFacts {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	dropped := 0
	var kept []core.CriticalFact
	for _, facts := range byCategory {
		if len(facts) > maxPerCategory {
			sort.Slice(facts, func(a, b int) bool {
				return facts[a].DateIdentified.After(facts[b].DateIdentified)
			})
			dropped += len(facts) - maxPerCategory
			facts = facts[:maxPerCategory]
		}
		kept = append(kept, facts...)
	}

	if dropped == 0 {
		return 0
	}
	// Restore a stable order for deterministic persistence
	sort.Slice(kept, func(a, b int) bool {
		if !kept[a].DateIdentified.Equal(kept[b].DateIdentified) {
			return kept[a].DateIdentified.Before(kept[b].DateIdentified)
		}
		return kept[a].ID < kept[b].ID
	})
	mem.CriticalFacts = kept
	return dropped
}

// ConsolidateFacts merges facts whose normalized (category, value)
// collide, keeping the first-seen occurrence. Returns the number
// merged away; running it again immediately merges zero.
func (s *Service) ConsolidateFacts(ctx context.Context, userID string) (int, error) {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	kept := mem.CriticalFacts[:0]
	merged := 0
	for _, f := range mem.CriticalFacts {
		key := f.DedupKey()
		if _, dup := seen[key]; dup {
			merged++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, f)
	}

	if merged == 0 {
		return 0, nil
	}

	mem.CriticalFacts = kept
	mem.Touch()
	if err := s.save(ctx, mem); err != nil {
		return 0, err
	}

	log.FromCtx(ctx).Info().Str("user", userID).Int("merged", merged).Msg("facts consolidated")
	return merged, nil
}
