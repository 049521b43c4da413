// Package search ranks indexed records in two modes: standard, a BM25
// lexical ranking over FTS5, and deep, which broadens the candidate set
// with prefix and synonym expansion at higher latency cost.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/sqlite"
	"github.com/sandevgo/vitalmem/pkg/log"
)

const defaultLimit = 10

type Index struct {
	store *sqlite.SearchStore
}

func NewIndex(store *sqlite.SearchStore) *Index {
	return &Index{store: store}
}

// Index makes a document searchable. It is called synchronously after
// the owning service's durable write, so a record is findable as soon
// as that write returns.
func (i *Index) Index(ctx context.Context, doc core.SearchDocument) error {
	doc.Content = strings.TrimSpace(doc.Content)
	if doc.ID == "" || doc.Content == "" {
		return fmt.Errorf("search document needs an id and content")
	}
	return i.store.Upsert(ctx, doc)
}

// DeleteByUserKind removes the user's indexed documents of one record
// kind, as part of an explicit memory wipe.
func (i *Index) DeleteByUserKind(ctx context.Context, userID string, kind core.RecordKind) error {
	return i.store.DeleteByUserKind(ctx, userID, kind)
}

func (i *Index) Search(ctx context.Context, userID, query string, opts core.SearchOptions) ([]core.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	standard, err := i.store.Match(ctx, userID, strictExpr(tokens), limit)
	if err != nil {
		return nil, err
	}
	if opts.Mode != core.SearchDeep {
		return standard, nil
	}

	// Deep mode unions the standard hits with a broadened candidate
	// set, so it never returns fewer relevant hits than standard.
	broad, err := i.store.Match(ctx, userID, broadExpr(tokens), limit*3)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("broadened search failed, returning standard results")
		return standard, nil
	}

	return mergeRanked(standard, broad, limit), nil
}

// Tokenize lowercases and strips non-alphanumeric runes, dropping
// tokens shorter than two characters.
func Tokenize(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return ' '
	}, query)

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// strictExpr ANDs quoted tokens: FTS5's implicit AND over phrases.
func strictExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// broadExpr ORs each token with its prefix form and any synonyms.
func broadExpr(tokens []string) string {
	seen := make(map[string]struct{})
	var alts []string
	add := func(expr string) {
		if _, ok := seen[expr]; !ok {
			seen[expr] = struct{}{}
			alts = append(alts, expr)
		}
	}

	for _, t := range tokens {
		add(`"` + t + `"`)
		add(`"` + t + `" *`)
		for _, syn := range Synonyms(t) {
			add(`"` + syn + `"`)
		}
	}

	// FTS5 prefix queries use token*, not "token" *
	for i, a := range alts {
		if strings.HasSuffix(a, `" *`) {
			alts[i] = strings.TrimSuffix(a, `" *`)[1:] + "*"
		}
	}
	return strings.Join(alts, " OR ")
}

// mergeRanked unions two ranked lists, keeping each document's best
// score. Equal scores break by recency, newest first. Every standard
// hit survives the cut: deep results are a superset of standard ones,
// only broad-only extras are trimmed to the limit.
func mergeRanked(standard, broad []core.SearchResult, limit int) []core.SearchResult {
	merged := make([]core.SearchResult, 0, len(standard)+len(broad))
	index := make(map[string]int)
	fromStandard := make(map[string]bool, len(standard))

	for _, r := range standard {
		index[r.ID] = len(merged)
		fromStandard[r.ID] = true
		merged = append(merged, r)
	}
	for _, r := range broad {
		if at, ok := index[r.ID]; ok {
			if r.Score > merged[at].Score {
				merged[at].Score = r.Score
			}
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Score != merged[b].Score {
			return merged[a].Score > merged[b].Score
		}
		return merged[a].CreatedAt.After(merged[b].CreatedAt)
	})

	if len(merged) <= limit {
		return merged
	}
	kept := make([]core.SearchResult, 0, limit)
	for _, r := range merged {
		if len(kept) < limit || fromStandard[r.ID] {
			kept = append(kept, r)
		}
	}
	return kept
}
