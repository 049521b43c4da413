package core

import (
	"context"
	"time"
)

type RecordKind string

const (
	KindDailyLog           RecordKind = "daily-log"
	KindHealthProfile      RecordKind = "health-profile"
	KindConversationMemory RecordKind = "conversation-memory"
)

// Record is one locally persisted payload, addressed by natural key
// within (user, kind). Payload is canonical JSON, optionally encrypted.
type Record struct {
	UserID     string
	Kind       RecordKind
	Key        string
	Payload    []byte
	Encrypted  bool
	Archived   bool
	ArchiveURI string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Age of the record relative to its last update.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.UpdatedAt)
}

type RecordRepository interface {
	// Put inserts or overwrites by (user, kind, key). Never a partial patch.
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, userID string, kind RecordKind, key string) (*Record, error)
	// QueryByKeyRange returns unarchived records whose natural keys fall in
	// [start, end], ordered ascending.
	QueryByKeyRange(ctx context.Context, userID string, kind RecordKind, start, end string) ([]Record, error)
	// ListUpdatedBefore returns unarchived records last touched before cutoff.
	ListUpdatedBefore(ctx context.Context, cutoff time.Time) ([]Record, error)
	// MarkArchived records the archive URI and evicts the local payload.
	MarkArchived(ctx context.Context, userID string, kind RecordKind, key, archiveURI string) error
	Delete(ctx context.Context, userID string, kind RecordKind, key string) error
}

// StorageReference is a content-addressed pointer into the remote archive.
type StorageReference struct {
	URI         string    `json:"uri"`
	ContentHash string    `json:"contentHash"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	DataType    string    `json:"dataType"`
}

type SearchMode string

const (
	SearchStandard SearchMode = "standard"
	SearchDeep     SearchMode = "deep"
)

// SearchDocument is the indexable projection of a stored record.
type SearchDocument struct {
	ID        string
	UserID    string
	Kind      RecordKind
	Content   string
	CreatedAt time.Time
}

type SearchResult struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type SearchOptions struct {
	Mode  SearchMode
	Limit int
}

type SearchIndex interface {
	Index(ctx context.Context, doc SearchDocument) error
	Search(ctx context.Context, userID, query string, opts SearchOptions) ([]SearchResult, error)
	// DeleteByUserKind drops the user's indexed documents of one
	// record kind, leaving documents of other kinds searchable.
	DeleteByUserKind(ctx context.Context, userID string, kind RecordKind) error
}
