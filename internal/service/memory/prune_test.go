package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
)

func TestPruneMemory_DropsStaleInactiveFacts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	stale, err := env.svc.AddFact(ctx, "u1", core.CriticalFact{
		Category:       core.FactConcern,
		Value:          "Old worry",
		DateIdentified: time.Now().AddDate(0, 0, -120),
	})
	if err != nil {
		t.Fatalf("add stale: %v", err)
	}
	recent, err := env.svc.AddFact(ctx, "u1", core.CriticalFact{
		Category:       core.FactConcern,
		Value:          "Recent worry",
		DateIdentified: time.Now().AddDate(0, 0, -10),
	})
	if err != nil {
		t.Fatalf("add recent: %v", err)
	}

	for _, id := range []string{stale.ID, recent.ID} {
		if err := env.svc.DeactivateFact(ctx, "u1", id); err != nil {
			t.Fatalf("deactivate %s: %v", id, err)
		}
	}

	droppedInactive, droppedOverCap, err := env.svc.PruneMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if droppedInactive != 1 {
		t.Errorf("expected 1 stale inactive fact dropped, got %d", droppedInactive)
	}
	if droppedOverCap != 0 {
		t.Errorf("expected 0 over-cap drops, got %d", droppedOverCap)
	}

	mem, _ := env.svc.GetMemory(ctx, "u1")
	if len(mem.CriticalFacts) != 1 {
		t.Fatalf("expected 1 fact after prune, got %d", len(mem.CriticalFacts))
	}
	if mem.CriticalFacts[0].ID != recent.ID {
		t.Errorf("wrong fact survived: %s", mem.CriticalFacts[0].ID)
	}
}

func TestPruneMemory_ActiveFactsAreNeverAgePruned(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.svc.AddFact(ctx, "u1", core.CriticalFact{
		Category:       core.FactCondition,
		Value:          "Type 1 diabetes",
		DateIdentified: time.Now().AddDate(-2, 0, 0),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	droppedInactive, _, err := env.svc.PruneMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if droppedInactive != 0 {
		t.Errorf("active fact must survive regardless of age, dropped %d", droppedInactive)
	}
}

func TestPruneMemory_CapsPerCategory(t *testing.T) {
	cfg := &config.MemoryConfig{
		MaxFactsPerCategory:   15,
		InactiveFactPruneDays: 90,
		SyncDebounce:          10 * time.Millisecond,
	}
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 20; i++ {
		_, err := env.svc.AddFact(ctx, "u1", core.CriticalFact{
			Category:       core.FactGoal,
			Value:          fmt.Sprintf("goal %d", i),
			DateIdentified: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	_, droppedOverCap, err := env.svc.PruneMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if droppedOverCap != 5 {
		t.Errorf("expected 5 over-cap drops, got %d", droppedOverCap)
	}

	mem, _ := env.svc.GetMemory(ctx, "u1")
	if len(mem.CriticalFacts) != 15 {
		t.Fatalf("expected 15 facts after prune, got %d", len(mem.CriticalFacts))
	}
	// The most recently identified facts survive
	for _, f := range mem.CriticalFacts {
		if f.Value == "goal 0" || f.Value == "goal 4" {
			t.Errorf("oldest fact %q should have been dropped", f.Value)
		}
	}

	// Second prune is a no-op
	droppedInactive, droppedOverCap, err := env.svc.PruneMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("second prune: %v", err)
	}
	if droppedInactive != 0 || droppedOverCap != 0 {
		t.Errorf("second prune should drop nothing, got %d/%d", droppedInactive, droppedOverCap)
	}
}

func TestConsolidateFacts_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Seed duplicates directly: normal writes dedup on entry, but
	// merged remote snapshots can land colliding facts.
	mem, err := env.svc.GetMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	now := time.Now()
	mem.CriticalFacts = []core.CriticalFact{
		{ID: "a", Category: core.FactGoal, Value: "Drink more water", DateIdentified: now, IsActive: true},
		{ID: "b", Category: core.FactGoal, Value: "drink MORE water", DateIdentified: now.Add(time.Minute), IsActive: true},
		{ID: "c", Category: core.FactPreference, Value: "Drink more water", DateIdentified: now, IsActive: true},
	}
	if err := env.svc.save(ctx, mem); err != nil {
		t.Fatalf("save: %v", err)
	}

	merged, err := env.svc.ConsolidateFacts(ctx, "u1")
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if merged != 1 {
		t.Errorf("expected 1 merged fact, got %d", merged)
	}

	mem, _ = env.svc.GetMemory(ctx, "u1")
	if len(mem.CriticalFacts) != 2 {
		t.Fatalf("expected 2 facts after consolidation, got %d", len(mem.CriticalFacts))
	}
	if mem.CriticalFacts[0].ID != "a" {
		t.Errorf("first-seen fact should win, got %s", mem.CriticalFacts[0].ID)
	}

	merged, err = env.svc.ConsolidateFacts(ctx, "u1")
	if err != nil {
		t.Fatalf("second consolidate: %v", err)
	}
	if merged != 0 {
		t.Errorf("second consolidation must merge nothing, got %d", merged)
	}
}
