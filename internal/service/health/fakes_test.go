package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]core.Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]core.Record)}
}

func (r *fakeRepo) key(userID string, kind core.RecordKind, key string) string {
	return userID + "|" + string(kind) + "|" + key
}

func (r *fakeRepo) Put(ctx context.Context, rec core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	r.records[r.key(rec.UserID, rec.Kind, rec.Key)] = rec
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, userID string, kind core.RecordKind, key string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[r.key(userID, kind, key)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &rec, nil
}

func (r *fakeRepo) QueryByKeyRange(ctx context.Context, userID string, kind core.RecordKind, start, end string) ([]core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Record
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Kind == kind && !rec.Archived && rec.Key >= start && rec.Key <= end {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *fakeRepo) ListUpdatedBefore(ctx context.Context, cutoff time.Time) ([]core.Record, error) {
	return nil, nil
}

func (r *fakeRepo) MarkArchived(ctx context.Context, userID string, kind core.RecordKind, key, archiveURI string) error {
	return errors.New("not supported")
}

func (r *fakeRepo) Delete(ctx context.Context, userID string, kind core.RecordKind, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, r.key(userID, kind, key))
	return nil
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]core.SearchDocument
	failing bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]core.SearchDocument)}
}

func (i *fakeIndex) Index(ctx context.Context, doc core.SearchDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failing {
		return fmt.Errorf("index unavailable")
	}
	i.docs[doc.ID] = doc
	return nil
}

func (i *fakeIndex) Search(ctx context.Context, userID, query string, opts core.SearchOptions) ([]core.SearchResult, error) {
	return nil, nil
}

func (i *fakeIndex) DeleteByUserKind(ctx context.Context, userID string, kind core.RecordKind) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, doc := range i.docs {
		if doc.UserID == userID && doc.Kind == kind {
			delete(i.docs, id)
		}
	}
	return nil
}

func (i *fakeIndex) doc(id string) (core.SearchDocument, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	doc, ok := i.docs[id]
	return doc, ok
}

func newTestStorage(t *testing.T) (*tiered.Adapter, *fakeRepo) {
	t.Helper()

	repo := newFakeRepo()
	adapter := tiered.NewAdapter(repo, nil, nil, &config.StorageConfig{
		HotStorageDays:  30,
		WarmStorageDays: 180,
	})
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize storage: %v", err)
	}
	return adapter, repo
}

func day(s string) time.Time {
	d, err := time.Parse(core.DateKey, s)
	if err != nil {
		panic(err)
	}
	return d
}
