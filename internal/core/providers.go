package core

import "context"

// Cipher encrypts every payload that leaves process memory, whether to
// local disk or to the remote archive.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// FactExtractor is the external extraction collaborator. Malformed
// responses degrade to empty results, never errors surfaced to users.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, transcript []Message) ([]CriticalFact, error)
	SummarizeSession(ctx context.Context, transcript []Message) (*SessionSummary, error)
}

type StoreOptions struct {
	DataType string
	Metadata map[string]string
}

// RetrieveResult carries decrypted archive data. Verified is false when
// the recomputed content hash does not match the expected one; the data
// is still returned so degraded trust does not block usage.
type RetrieveResult struct {
	Data        []byte
	ContentHash string
	Verified    bool
}

// ArchiveClient is the content-addressed encrypted remote archive.
type ArchiveClient interface {
	// Store serializes nothing itself: it encrypts the given plaintext,
	// uploads the ciphertext and returns a content-addressed reference.
	// The content hash covers the plaintext.
	Store(ctx context.Context, plaintext []byte, userID string, opts StoreOptions) (*StorageReference, error)
	// StoreCiphertext forwards an already-encrypted payload without
	// re-encrypting it. contentHash must cover the original plaintext.
	StoreCiphertext(ctx context.Context, ciphertext []byte, contentHash, userID string, opts StoreOptions) (*StorageReference, error)
	Retrieve(ctx context.Context, uri, expectedHash string) (*RetrieveResult, error)
	List(ctx context.Context, userID, dataType string) ([]StorageReference, error)
	Exists(ctx context.Context, uri string) (bool, error)
	Delete(ctx context.Context, uri, userID string) error
}
