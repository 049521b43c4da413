// Package health owns the domain records: one daily log entry per
// calendar day and one evolving profile per user. Every successful
// write flows through the storage adapter first and the search index
// second, so a crash between the two leaves data durable but
// unsearched, never the reverse.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type DailyLogService struct {
	storage *tiered.Adapter
	index   core.SearchIndex
}

func NewDailyLogService(storage *tiered.Adapter, index core.SearchIndex) *DailyLogService {
	return &DailyLogService{storage: storage, index: index}
}

// RecordDailyInput normalizes heterogeneous raw health data into the
// canonical per-day shape and persists it. Unknown or malformed fields
// are dropped, not fatal. Re-recording a day overwrites the whole
// entry for that day.
func (s *DailyLogService) RecordDailyInput(ctx context.Context, userID string, date time.Time, raw map[string]any) (*core.DailyLogEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	key := date.Format(core.DateKey)
	now := time.Now()

	entry := &core.DailyLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Keep the original creation time when overwriting an existing day
	var existing core.DailyLogEntry
	if err := s.storage.Get(ctx, userID, core.KindDailyLog, key, &existing); err == nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	dropped := normalize(entry, raw)
	if len(dropped) > 0 {
		log.FromCtx(ctx).Debug().Strs("fields", dropped).Msg("dropped unrecognized daily log fields")
	}

	if err := s.storage.Put(ctx, userID, core.KindDailyLog, key, entry); err != nil {
		return nil, fmt.Errorf("failed to persist daily log: %w", err)
	}
	if err := s.index.Index(ctx, core.SearchDocument{
		ID:        "log:" + userID + ":" + key,
		UserID:    userID,
		Kind:      core.KindDailyLog,
		Content:   logSearchText(entry),
		CreatedAt: entry.UpdatedAt,
	}); err != nil {
		// Durable but unsearched is acceptable; surface it to the caller
		return entry, fmt.Errorf("daily log stored but not indexed: %w", err)
	}

	return entry, nil
}

// GetLogsForRange returns entries with dates in [start, end], oldest
// first.
func (s *DailyLogService) GetLogsForRange(ctx context.Context, userID string, start, end time.Time) ([]core.DailyLogEntry, error) {
	raws, err := s.storage.QueryByDateRange(ctx, userID, core.KindDailyLog, start, end)
	if err != nil {
		return nil, err
	}

	entries := make([]core.DailyLogEntry, 0, len(raws))
	for _, raw := range raws {
		var entry core.DailyLogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode daily log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// normalize maps known raw fields onto the entry, returning the names
// of fields it dropped as unknown or malformed.
func normalize(entry *core.DailyLogEntry, raw map[string]any) []string {
	var dropped []string
	for field, value := range raw {
		known := true
		switch strings.ToLower(field) {
		case "sleephours", "sleep_hours", "sleep":
			if v, ok := asFloat(value); ok && v >= 0 && v <= 24 {
				entry.SleepHours = v
			}
		case "steps":
			if v, ok := asFloat(value); ok && v >= 0 {
				entry.Steps = int(v)
			}
		case "calories", "caloriesin", "calories_in":
			if v, ok := asFloat(value); ok && v >= 0 {
				entry.Calories = int(v)
			}
		case "weightkg", "weight_kg", "weight":
			if v, ok := asFloat(value); ok && v > 0 {
				entry.WeightKg = v
			}
		case "mood":
			if v, ok := value.(string); ok {
				entry.Mood = strings.TrimSpace(v)
			}
		case "energylevel", "energy_level", "energy":
			if v, ok := asFloat(value); ok && v >= 1 && v <= 10 {
				entry.EnergyLevel = int(v)
			}
		case "workouts", "exercise":
			entry.Workouts = asStringSlice(value)
		case "notes", "note":
			if v, ok := value.(string); ok {
				entry.Notes = strings.TrimSpace(v)
			}
		default:
			known = false
		}
		if !known {
			dropped = append(dropped, field)
		}
	}
	return dropped
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func logSearchText(entry *core.DailyLogEntry) string {
	var sb strings.Builder
	sb.WriteString("daily log ")
	sb.WriteString(entry.Date)
	if entry.Mood != "" {
		sb.WriteString(" mood " + entry.Mood)
	}
	if len(entry.Workouts) > 0 {
		sb.WriteString(" workouts " + strings.Join(entry.Workouts, " "))
	}
	if entry.Notes != "" {
		sb.WriteString(" " + entry.Notes)
	}
	return sb.String()
}
