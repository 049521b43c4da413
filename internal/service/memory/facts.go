package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

// AddFact stores a fact from direct user action. A fact whose
// normalized (category, value) already exists is silently merged into
// the existing one, never duplicated.
func (s *Service) AddFact(ctx context.Context, userID string, fact core.CriticalFact) (*core.CriticalFact, error) {
	if strings.TrimSpace(fact.Value) == "" {
		return nil, fmt.Errorf("fact value is required")
	}
	if !core.IsValidCategory(fact.Category) {
		return nil, fmt.Errorf("invalid fact category %q", fact.Category)
	}

	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	if fact.DateIdentified.IsZero() {
		fact.DateIdentified = time.Now()
	}
	if fact.Source == "" {
		fact.Source = core.SourceUserInput
	}
	if fact.StorageLocation == "" {
		fact.StorageLocation = core.LocationLocal
	}
	if fact.Confidence == 0 {
		fact.Confidence = 1
	}
	fact.IsActive = true

	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	storedID, _ := upsertFact(mem, fact)
	mem.Touch()
	if err := s.save(ctx, mem); err != nil {
		return nil, err
	}

	// Merged facts are re-indexed too; the refreshed context and
	// confidence must be searchable
	stored := mem.FindFact(storedID)
	if stored != nil {
		s.indexFact(ctx, userID, *stored)
	}
	s.scheduleSync(userID, false)
	return stored, nil
}

// upsertFact adds a fact unless its normalized (category, value)
// collides with an existing one. On collision the existing fact is
// kept and only refreshed: reactivated, and its context filled in if
// it had none. Returns the id of the stored fact and whether it was
// newly added.
func upsertFact(mem *core.ConversationMemory, fact core.CriticalFact) (string, bool) {
	key := fact.DedupKey()
	for i := range mem.CriticalFacts {
		if mem.CriticalFacts[i].DedupKey() == key {
			existing := &mem.CriticalFacts[i]
			existing.IsActive = true
			if existing.Context == "" {
				existing.Context = fact.Context
			}
			if fact.Confidence > existing.Confidence {
				existing.Confidence = fact.Confidence
			}
			return existing.ID, false
		}
	}
	mem.CriticalFacts = append(mem.CriticalFacts, fact)
	return fact.ID, true
}

// FactUpdate carries the mutable fields of UpdateFact; nil means
// leave unchanged.
type FactUpdate struct {
	Value           *string
	Context         *string
	Confidence      *float64
	StorageLocation *core.StorageLocation
	ProofRef        *string
}

func (s *Service) UpdateFact(ctx context.Context, userID, factID string, update FactUpdate) (*core.CriticalFact, error) {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	fact := mem.FindFact(factID)
	if fact == nil {
		return nil, core.ErrNotFound
	}

	if update.Value != nil && strings.TrimSpace(*update.Value) != "" {
		fact.Value = strings.TrimSpace(*update.Value)
	}
	if update.Context != nil {
		fact.Context = *update.Context
	}
	if update.Confidence != nil {
		fact.Confidence = *update.Confidence
	}
	if update.StorageLocation != nil {
		fact.StorageLocation = *update.StorageLocation
	}
	if update.ProofRef != nil {
		fact.ProofRef = *update.ProofRef
	}

	mem.Touch()
	if err := s.save(ctx, mem); err != nil {
		return nil, err
	}
	s.indexFact(ctx, userID, *fact)
	s.scheduleSync(userID, false)
	return fact, nil
}

// DeactivateFact marks a fact inactive. Inactive facts survive until
// age-based pruning; they are never hard-deleted here.
func (s *Service) DeactivateFact(ctx context.Context, userID, factID string) error {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	fact := mem.FindFact(factID)
	if fact == nil {
		return core.ErrNotFound
	}
	fact.IsActive = false
	mem.Touch()

	if err := s.save(ctx, mem); err != nil {
		return err
	}
	s.scheduleSync(userID, false)
	return nil
}

// GetFactsByCategory returns active facts in one category, most
// recently identified first.
func (s *Service) GetFactsByCategory(ctx context.Context, userID string, category core.FactCategory) ([]core.CriticalFact, error) {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var facts []core.CriticalFact
	for _, f := range mem.CriticalFacts {
		if f.Category == category && f.IsActive {
			facts = append(facts, f)
		}
	}
	sort.Slice(facts, func(a, b int) bool {
		return facts[a].DateIdentified.After(facts[b].DateIdentified)
	})
	return facts, nil
}

func (s *Service) GetMemoryStats(ctx context.Context, userID string) (*core.MemoryStats, error) {
	mem, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &core.MemoryStats{
		UserID:              userID,
		TotalFacts:          len(mem.CriticalFacts),
		FactsByCategory:     make(map[core.FactCategory]int),
		ImportantSessions:   len(mem.ImportantSessions),
		RecentSessions:      len(mem.RecentSessions),
		TotalSessions:       mem.TotalSessions,
		TotalFactsExtracted: mem.TotalFactsExtracted,
		LastUpdated:         mem.LastUpdated,
	}
	for _, f := range mem.CriticalFacts {
		stats.FactsByCategory[f.Category]++
		if f.IsActive {
			stats.ActiveFacts++
		}
	}
	return stats, nil
}

// insertSession appends a summary to its bucket by importance and
// evicts the oldest entries beyond the bucket cap.
func insertSession(mem *core.ConversationMemory, session core.SessionSummary) {
	if session.IsImportant() {
		mem.ImportantSessions = appendCapped(mem.ImportantSessions, session, core.MaxImportantSessions)
	} else {
		mem.RecentSessions = appendCapped(mem.RecentSessions, session, core.MaxRecentSessions)
	}
}

func appendCapped(bucket []core.SessionSummary, session core.SessionSummary, limit int) []core.SessionSummary {
	bucket = append(bucket, session)
	sort.Slice(bucket, func(a, b int) bool {
		return bucket[a].Date.Before(bucket[b].Date)
	})
	if len(bucket) > limit {
		bucket = bucket[len(bucket)-limit:]
	}
	return bucket
}

func (s *Service) scheduleSync(userID string, force bool) {
	s.sched.Schedule(userID, s.cfg.SyncDebounce, func() {
		// Detached context: the conversation's request scope is gone by
		// the time the debounced sync fires.
		ctx := context.Background()
		if err := s.SyncToCloud(ctx, userID, force); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("user", userID).Msg("scheduled sync failed")
		}
	})
}
