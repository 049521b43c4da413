package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
)

// decodeSnapshot validates a remote snapshot at the boundary so the
// merge only ever sees canonical types: facts without an id or value
// are dropped, unknown categories are coerced to context, and unknown
// importance levels to medium. A snapshot without a user id is
// rejected outright.
func decodeSnapshot(data []byte) (*core.ConversationMemory, error) {
	var snap core.ConversationMemory
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot is not a memory aggregate: %w", err)
	}
	if strings.TrimSpace(snap.UserID) == "" {
		return nil, fmt.Errorf("snapshot has no user id")
	}

	facts := snap.CriticalFacts[:0]
	for _, f := range snap.CriticalFacts {
		if f.ID == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		if !core.IsValidCategory(f.Category) {
			f.Category = core.FactContext
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			f.Confidence = 0.5
		}
		facts = append(facts, f)
	}
	snap.CriticalFacts = facts

	snap.ImportantSessions = sanitizeSessions(snap.ImportantSessions)
	snap.RecentSessions = sanitizeSessions(snap.RecentSessions)
	if snap.Preferences == nil {
		snap.Preferences = make(map[string]string)
	}
	return &snap, nil
}

func sanitizeSessions(sessions []core.SessionSummary) []core.SessionSummary {
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID == "" || strings.TrimSpace(s.Summary) == "" {
			continue
		}
		switch s.Importance {
		case core.ImportanceLow, core.ImportanceMedium, core.ImportanceHigh, core.ImportanceCritical:
		default:
			s.Importance = core.ImportanceMedium
		}
		kept = append(kept, s)
	}
	return kept
}

// mergeMemories reconciles a local aggregate with a remote snapshot.
// Last-write-wins at record granularity: facts union by id with the
// newer DateIdentified winning, sessions union by id and re-bucket
// purely by importance, preferences shallow-merge with remote
// overriding, counters take the max of both sides.
func mergeMemories(local, remote *core.ConversationMemory) *core.ConversationMemory {
	merged := core.NewConversationMemory(local.UserID)

	// Facts: union by id, newer identification date wins
	factsByID := make(map[string]core.CriticalFact)
	for _, f := range local.CriticalFacts {
		factsByID[f.ID] = f
	}
	for _, f := range remote.CriticalFacts {
		if existing, ok := factsByID[f.ID]; !ok || f.DateIdentified.After(existing.DateIdentified) {
			factsByID[f.ID] = f
		}
	}
	merged.CriticalFacts = make([]core.CriticalFact, 0, len(factsByID))
	for _, f := range factsByID {
		merged.CriticalFacts = append(merged.CriticalFacts, f)
	}
	sort.Slice(merged.CriticalFacts, func(a, b int) bool {
		if !merged.CriticalFacts[a].DateIdentified.Equal(merged.CriticalFacts[b].DateIdentified) {
			return merged.CriticalFacts[a].DateIdentified.Before(merged.CriticalFacts[b].DateIdentified)
		}
		return merged.CriticalFacts[a].ID < merged.CriticalFacts[b].ID
	})

	// Sessions: union all four buckets by id, then re-bucket purely by
	// each session's importance, capped per bucket
	sessionsByID := make(map[string]core.SessionSummary)
	for _, bucket := range [][]core.SessionSummary{
		local.ImportantSessions, local.RecentSessions,
		remote.ImportantSessions, remote.RecentSessions,
	} {
		for _, sess := range bucket {
			if _, ok := sessionsByID[sess.ID]; !ok {
				sessionsByID[sess.ID] = sess
			}
		}
	}
	for _, sess := range sortedSessions(sessionsByID) {
		insertSession(merged, sess)
	}

	// Preferences: shallow merge with remote overriding on collision
	for k, v := range local.Preferences {
		merged.Preferences[k] = v
	}
	for k, v := range remote.Preferences {
		merged.Preferences[k] = v
	}

	// Coarse, conservative counters: keep the larger side
	merged.TotalSessions = max(local.TotalSessions, remote.TotalSessions)
	merged.TotalFactsExtracted = max(local.TotalFactsExtracted, remote.TotalFactsExtracted)

	merged.LastUpdated = time.Now()
	return merged
}

func sortedSessions(byID map[string]core.SessionSummary) []core.SessionSummary {
	sessions := make([]core.SessionSummary, 0, len(byID))
	for _, s := range byID {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(a, b int) bool {
		if !sessions[a].Date.Equal(sessions[b].Date) {
			return sessions[a].Date.Before(sessions[b].Date)
		}
		return sessions[a].ID < sessions[b].ID
	})
	return sessions
}
