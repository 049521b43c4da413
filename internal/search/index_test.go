package search

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/sqlite"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewIndex(sqlite.NewSearchStore(db))
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"simple", "sleep quality", []string{"sleep", "quality"}},
		{"mixed case and punctuation", "How's my SLEEP, doc?!", []string{"how", "my", "sleep", "doc"}},
		{"short tokens dropped", "a I 5k run", []string{"5k", "run"}},
		{"numbers kept", "weight 72kg", []string{"weight", "72kg"}},
		{"empty", "  ... ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestQueryExpressions(t *testing.T) {
	t.Parallel()

	if got := strictExpr([]string{"sleep", "quality"}); got != `"sleep" "quality"` {
		t.Errorf("strictExpr = %q", got)
	}

	broad := broadExpr([]string{"run"})
	for _, part := range []string{`"run"`, `run*`, `"running"`, `"jog"`} {
		if !strings.Contains(broad, part) {
			t.Errorf("broadExpr missing %q: %s", part, broad)
		}
	}
	if !strings.Contains(broad, " OR ") {
		t.Errorf("broadExpr should OR alternatives: %s", broad)
	}
}

func TestSearch_StandardMode(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	ctx := context.Background()

	seed := []core.SearchDocument{
		{ID: "d1", UserID: "u1", Kind: core.KindDailyLog, Content: "poor sleep after late caffeine", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "d2", UserID: "u1", Kind: core.KindDailyLog, Content: "morning jog felt great", CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "d3", UserID: "u1", Kind: core.KindConversationMemory, Content: "discussed sleep hygiene and caffeine cutoff", CreatedAt: time.Now()},
	}
	for _, doc := range seed {
		if err := idx.Index(ctx, doc); err != nil {
			t.Fatalf("index %s: %v", doc.ID, err)
		}
	}

	results, err := idx.Search(ctx, "u1", "sleep caffeine", core.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.ID == "d2" {
			t.Error("d2 does not mention the query terms")
		}
	}
}

func TestSearch_DeepModeIsSuperset(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	ctx := context.Background()

	seed := []core.SearchDocument{
		// Exact token match: found by both modes
		{ID: "exact", UserID: "u1", Kind: core.KindDailyLog, Content: "skipped my run today", CreatedAt: time.Now().Add(-time.Hour)},
		// Only reachable through prefix or synonym broadening
		{ID: "prefix", UserID: "u1", Kind: core.KindDailyLog, Content: "running felt easier this week", CreatedAt: time.Now().Add(-30 * time.Minute)},
		{ID: "synonym", UserID: "u1", Kind: core.KindDailyLog, Content: "long jog along the river", CreatedAt: time.Now()},
	}
	for _, doc := range seed {
		if err := idx.Index(ctx, doc); err != nil {
			t.Fatalf("index %s: %v", doc.ID, err)
		}
	}

	standard, err := idx.Search(ctx, "u1", "run", core.SearchOptions{Mode: core.SearchStandard})
	if err != nil {
		t.Fatalf("standard search: %v", err)
	}
	if len(standard) != 1 || standard[0].ID != "exact" {
		t.Fatalf("standard mode should only find the exact token, got %+v", standard)
	}

	deep, err := idx.Search(ctx, "u1", "run", core.SearchOptions{Mode: core.SearchDeep})
	if err != nil {
		t.Fatalf("deep search: %v", err)
	}
	if len(deep) != 3 {
		t.Fatalf("deep mode should broaden to all 3 documents, got %d", len(deep))
	}

	// Every standard hit must appear in the deep results
	deepIDs := make(map[string]bool)
	for _, r := range deep {
		deepIDs[r.ID] = true
	}
	for _, r := range standard {
		if !deepIDs[r.ID] {
			t.Errorf("standard hit %s missing from deep results", r.ID)
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)

	results, err := idx.Search(context.Background(), "u1", "  ?! ", core.SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Errorf("unusable query should yield no results, got %v", results)
	}
}

func TestIndex_RejectsEmptyDocuments(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, core.SearchDocument{ID: "", Content: "text"}); err == nil {
		t.Error("expected error for missing id")
	}
	if err := idx.Index(ctx, core.SearchDocument{ID: "d1", Content: "   "}); err == nil {
		t.Error("expected error for blank content")
	}
}

func TestMergeRanked_StandardHitsSurviveTheCut(t *testing.T) {
	t.Parallel()

	now := time.Now()
	standard := []core.SearchResult{
		{ID: "s1", Score: 0.1, CreatedAt: now},
	}
	var broad []core.SearchResult
	for i := 0; i < 5; i++ {
		broad = append(broad, core.SearchResult{
			ID:        string(rune('a' + i)),
			Score:     float64(10 - i),
			CreatedAt: now,
		})
	}

	merged := mergeRanked(standard, broad, 3)

	found := false
	for _, r := range merged {
		if r.ID == "s1" {
			found = true
		}
	}
	if !found {
		t.Errorf("standard hit must survive the limit cut: %+v", merged)
	}
	// Only broad-only extras are trimmed
	if len(merged) != 4 {
		t.Errorf("expected limit + protected standard hit = 4, got %d", len(merged))
	}
}

func TestMergeRanked_KeepsBestScore(t *testing.T) {
	t.Parallel()

	now := time.Now()
	standard := []core.SearchResult{{ID: "d1", Score: 1.0, CreatedAt: now}}
	broad := []core.SearchResult{{ID: "d1", Score: 2.5, CreatedAt: now}}

	merged := mergeRanked(standard, broad, 10)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged result, got %d", len(merged))
	}
	if merged[0].Score != 2.5 {
		t.Errorf("expected the best score to win, got %v", merged[0].Score)
	}
}
