package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/internal/storage/tiered"
)

// fakeRepo is an in-memory RecordRepository.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]core.Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]core.Record)}
}

func recordKey(userID string, kind core.RecordKind, key string) string {
	return userID + "|" + string(kind) + "|" + key
}

func (r *fakeRepo) Put(ctx context.Context, rec core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.records[recordKey(rec.UserID, rec.Kind, rec.Key)]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[recordKey(rec.UserID, rec.Kind, rec.Key)] = rec
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, userID string, kind core.RecordKind, key string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey(userID, kind, key)]
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
	return out, nil
}

func (r *fakeRepo) ListUpdatedBefore(ctx context.Context, cutoff time.Time) ([]core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Record
	for _, rec := range r.records {
		if !rec.Archived && rec.UpdatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkArchived(ctx context.Context, userID string, kind core.RecordKind, key, archiveURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey(userID, kind, key)]
	if !ok {
		return core.ErrNotFound
	}
	rec.Archived = true
	rec.ArchiveURI = archiveURI
	rec.Payload = nil
	r.records[recordKey(userID, kind, key)] = rec
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, userID string, kind core.RecordKind, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, recordKey(userID, kind, key))
	return nil
}

// fakeIndex records indexed documents.
type fakeIndex struct {
	mu   sync.Mutex
	docs map[string]core.SearchDocument
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]core.SearchDocument)}
}

func (i *fakeIndex) Index(ctx context.Context, doc core.SearchDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()
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

func (i *fakeIndex) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.docs)
}

// fakeExtractor returns canned extraction results.
type fakeExtractor struct {
	mu         sync.Mutex
	facts      []core.CriticalFact
	summary    *core.SessionSummary
	factErr    error
	summaryErr error
	calls      int
}

func (e *fakeExtractor) ExtractFacts(ctx context.Context, transcript []core.Message) ([]core.CriticalFact, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.facts, e.factErr
}

func (e *fakeExtractor) SummarizeSession(ctx context.Context, transcript []core.Message) (*core.SessionSummary, error) {
	return e.summary, e.summaryErr
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeArchive keeps uploaded snapshots in memory, addressed like the
// real client.
type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	refs    []core.StorageReference
	uploads int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (a *fakeArchive) Store(ctx context.Context, plaintext []byte, userID string, opts core.StoreOptions) (*core.StorageReference, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sum := sha256.Sum256(plaintext)
	uri := fmt.Sprintf("arc://%s/%s/%s", userID, opts.DataType, hex.EncodeToString(sum[:]))
	a.objects[uri] = append([]byte(nil), plaintext...)
	ref := core.StorageReference{
		URI:         uri,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        int64(len(plaintext)),
		UploadedAt:  time.Now(),
		DataType:    opts.DataType,
	}
	a.refs = append(a.refs, ref)
	a.uploads++
	return &ref, nil
}

func (a *fakeArchive) StoreCiphertext(ctx context.Context, ciphertext []byte, contentHash, userID string, opts core.StoreOptions) (*core.StorageReference, error) {
	return a.Store(ctx, ciphertext, userID, opts)
}

func (a *fakeArchive) Retrieve(ctx context.Context, uri, expectedHash string) (*core.RetrieveResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[uri]
	if !ok {
		return nil, core.ErrNotFound
	}
	sum := sha256.Sum256(data)
	return &core.RetrieveResult{
		Data:        data,
		ContentHash: hex.EncodeToString(sum[:]),
		Verified:    expectedHash == "" || expectedHash == hex.EncodeToString(sum[:]),
	}, nil
}

func (a *fakeArchive) List(ctx context.Context, userID, dataType string) ([]core.StorageReference, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []core.StorageReference
	for _, ref := range a.refs {
		if ref.DataType == dataType {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (a *fakeArchive) Exists(ctx context.Context, uri string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[uri]
	return ok, nil
}

func (a *fakeArchive) Delete(ctx context.Context, uri, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, uri)
	return nil
}

func (a *fakeArchive) uploadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploads
}

type testEnv struct {
	svc       *Service
	repo      *fakeRepo
	index     *fakeIndex
	extractor *fakeExtractor
	archive   *fakeArchive
}

func newTestEnv(t *testing.T, cfg *config.MemoryConfig) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.MemoryConfig{
			MaxFactsPerCategory:   15,
			InactiveFactPruneDays: 90,
			SyncDebounce:          10 * time.Millisecond,
		}
	}

	repo := newFakeRepo()
	store := tiered.NewAdapter(repo, nil, nil, &config.StorageConfig{
		HotStorageDays:  30,
		WarmStorageDays: 180,
	})
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize storage: %v", err)
	}

	index := newFakeIndex()
	extractor := &fakeExtractor{}
	archive := newFakeArchive()

	return &testEnv{
		svc:       NewService(store, index, extractor, archive, cfg),
		repo:      repo,
		index:     index,
		extractor: extractor,
		archive:   archive,
	}
}

func substantiveConversation() []core.Message {
	return []core.Message{
		{Role: core.RoleUser, Content: "I've been sleeping really badly this week, barely five hours a night, and my energy is gone by noon."},
		{Role: core.RoleAssistant, Content: "That sounds rough. Has anything changed in your routine?"},
		{Role: core.RoleUser, Content: "I started a new job and I'm skipping my morning workout. I want to get back to running three times a week."},
	}
}
