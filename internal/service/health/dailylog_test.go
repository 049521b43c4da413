package health

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRecordDailyInput_RequiresUserID(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	svc := NewDailyLogService(storage, newFakeIndex())

	if _, err := svc.RecordDailyInput(context.Background(), "", time.Now(), nil); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestRecordDailyInput_NormalizesFields(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	index := newFakeIndex()
	svc := NewDailyLogService(storage, index)

	entry, err := svc.RecordDailyInput(context.Background(), "u1", day("2026-03-10"), map[string]any{
		"sleep_hours":  7.5,
		"steps":        8200,
		"weight":       81.4,
		"mood":         "  good  ",
		"energy":       6,
		"workouts":     []any{"run", "", "yoga"},
		"notes":        "felt strong today",
		"heart_rate":   62, // unknown, dropped
		"bloodOxygen":  98, // unknown, dropped
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if entry.Date != "2026-03-10" {
		t.Errorf("date = %q", entry.Date)
	}
	if entry.SleepHours != 7.5 || entry.Steps != 8200 || entry.WeightKg != 81.4 {
		t.Errorf("numeric fields = %v %v %v", entry.SleepHours, entry.Steps, entry.WeightKg)
	}
	if entry.Mood != "good" {
		t.Errorf("mood = %q, want trimmed", entry.Mood)
	}
	if entry.EnergyLevel != 6 {
		t.Errorf("energy = %d", entry.EnergyLevel)
	}
	if len(entry.Workouts) != 2 || entry.Workouts[0] != "run" || entry.Workouts[1] != "yoga" {
		t.Errorf("workouts = %v", entry.Workouts)
	}

	doc, ok := index.doc("log:u1:2026-03-10")
	if !ok {
		t.Fatal("entry was not indexed")
	}
	if !strings.Contains(doc.Content, "felt strong today") {
		t.Errorf("index content %q missing notes", doc.Content)
	}
}

func TestRecordDailyInput_RejectsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	svc := NewDailyLogService(storage, newFakeIndex())

	entry, err := svc.RecordDailyInput(context.Background(), "u1", day("2026-03-10"), map[string]any{
		"sleep":  30.0, // above 24h
		"steps":  -100,
		"energy": 15, // above 10
		"weight": 0.0,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.SleepHours != 0 || entry.Steps != 0 || entry.EnergyLevel != 0 || entry.WeightKg != 0 {
		t.Errorf("out-of-range values should be dropped, got %+v", entry)
	}
}

func TestRecordDailyInput_OverwriteKeepsIdentity(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	svc := NewDailyLogService(storage, newFakeIndex())
	ctx := context.Background()

	first, err := svc.RecordDailyInput(ctx, "u1", day("2026-03-10"), map[string]any{"steps": 1000})
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := svc.RecordDailyInput(ctx, "u1", day("2026-03-10"), map[string]any{"mood": "tired"})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	if second.ID != first.ID {
		t.Error("overwrite should keep the original entry id")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("overwrite should keep the original creation time")
	}
	// The overwrite replaces the whole day, not a field at a time.
	if second.Steps != 0 {
		t.Errorf("steps = %d, want 0 after full overwrite", second.Steps)
	}
	if second.Mood != "tired" {
		t.Errorf("mood = %q", second.Mood)
	}
}

func TestRecordDailyInput_IndexFailureStillStores(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	index := newFakeIndex()
	index.failing = true
	svc := NewDailyLogService(storage, index)
	ctx := context.Background()

	entry, err := svc.RecordDailyInput(ctx, "u1", day("2026-03-10"), map[string]any{"steps": 500})
	if err == nil {
		t.Fatal("expected an indexing error")
	}
	if entry == nil {
		t.Fatal("entry should still be returned; the write is durable")
	}

	logs, err := svc.GetLogsForRange(ctx, "u1", day("2026-03-01"), day("2026-03-31"))
	if err != nil {
		t.Fatalf("range query: %v", err)
	}
	if len(logs) != 1 || logs[0].Steps != 500 {
		t.Fatalf("logs = %+v, want the stored entry", logs)
	}
}

func TestGetLogsForRange(t *testing.T) {
	t.Parallel()

	storage, _ := newTestStorage(t)
	svc := NewDailyLogService(storage, newFakeIndex())
	ctx := context.Background()

	for _, d := range []string{"2026-03-01", "2026-03-05", "2026-03-20"} {
		if _, err := svc.RecordDailyInput(ctx, "u1", day(d), map[string]any{"steps": 100}); err != nil {
			t.Fatalf("record %s: %v", d, err)
		}
	}
	if _, err := svc.RecordDailyInput(ctx, "u2", day("2026-03-05"), map[string]any{"steps": 100}); err != nil {
		t.Fatalf("record other user: %v", err)
	}

	logs, err := svc.GetLogsForRange(ctx, "u1", day("2026-03-01"), day("2026-03-10"))
	if err != nil {
		t.Fatalf("range query: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d entries, want 2", len(logs))
	}
	if logs[0].Date != "2026-03-01" || logs[1].Date != "2026-03-05" {
		t.Errorf("entries out of order: %s, %s", logs[0].Date, logs[1].Date)
	}
	for _, l := range logs {
		if l.UserID != "u1" {
			t.Errorf("leaked entry for %s", l.UserID)
		}
	}
}
