// Package archive implements the content-addressed encrypted remote
// archive client. Objects are addressed by the SHA-256 of the uploaded
// ciphertext, so a corrupted download is detectable before decryption;
// the caller-facing content hash covers the plaintext.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

const uriScheme = "arc://"

const (
	metaContentHash = "content-hash"
	metaDataType    = "data-type"
	metaUploadedAt  = "uploaded-at"
)

type Client struct {
	store  ObjectStore
	cipher core.Cipher
}

func NewClient(store ObjectStore, cipher core.Cipher) *Client {
	return &Client{store: store, cipher: cipher}
}

func (c *Client) Store(ctx context.Context, plaintext []byte, userID string, opts core.StoreOptions) (*core.StorageReference, error) {
	sum := sha256.Sum256(plaintext)

	ciphertext, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt archive payload: %w", err)
	}
	return c.upload(ctx, ciphertext, hex.EncodeToString(sum[:]), userID, opts)
}

func (c *Client) StoreCiphertext(ctx context.Context, ciphertext []byte, contentHash, userID string, opts core.StoreOptions) (*core.StorageReference, error) {
	return c.upload(ctx, ciphertext, NormalizeHash(contentHash), userID, opts)
}

func (c *Client) upload(ctx context.Context, ciphertext []byte, contentHash, userID string, opts core.StoreOptions) (*core.StorageReference, error) {
	addrSum := sha256.Sum256(ciphertext)
	address := fmt.Sprintf("%s/%s/%s", userID, opts.DataType, hex.EncodeToString(addrSum[:]))
	uploadedAt := time.Now().UTC()

	meta := map[string]string{
		metaContentHash: contentHash,
		metaDataType:    opts.DataType,
		metaUploadedAt:  uploadedAt.Format(time.RFC3339),
	}
	for k, v := range opts.Metadata {
		meta[k] = v
	}

	if err := c.store.PutObject(ctx, address, ciphertext, meta); err != nil {
		return nil, fmt.Errorf("upload archive object: %w", err)
	}

	return &core.StorageReference{
		URI:         uriScheme + address,
		ContentHash: "sha256:" + contentHash,
		Size:        int64(len(ciphertext)),
		UploadedAt:  uploadedAt,
		DataType:    opts.DataType,
	}, nil
}

// Retrieve downloads and decrypts an object. A hash mismatch is a soft
// failure: Verified is false but whatever decrypted is still returned.
// An intact ciphertext that fails to open is a key mismatch, which is
// a hard, distinct error.
func (c *Client) Retrieve(ctx context.Context, uri, expectedHash string) (*core.RetrieveResult, error) {
	address, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	ciphertext, err := c.store.GetObject(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("download archive object: %w", err)
	}

	// The address embeds the ciphertext hash; recompute to detect
	// corruption before trusting decryption errors.
	addrSum := sha256.Sum256(ciphertext)
	intact := strings.HasSuffix(address, hex.EncodeToString(addrSum[:]))

	plaintext, err := c.cipher.Decrypt(ciphertext)
	if err != nil {
		if intact {
			return nil, fmt.Errorf("decrypt archive object: %w", err)
		}
		// Corrupted bytes: degraded trust, not a hard failure
		log.FromCtx(ctx).Warn().Str("uri", uri).Msg("archived object is corrupted")
		return &core.RetrieveResult{Verified: false}, nil
	}

	sum := sha256.Sum256(plaintext)
	contentHash := hex.EncodeToString(sum[:])
	verified := intact
	if expectedHash != "" && NormalizeHash(expectedHash) != contentHash {
		verified = false
	}

	return &core.RetrieveResult{
		Data:        plaintext,
		ContentHash: "sha256:" + contentHash,
		Verified:    verified,
	}, nil
}

func (c *Client) List(ctx context.Context, userID, dataType string) ([]core.StorageReference, error) {
	prefix := userID + "/"
	if dataType != "" {
		prefix += dataType + "/"
	}

	infos, err := c.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list archive objects: %w", err)
	}

	refs := make([]core.StorageReference, 0, len(infos))
	for _, info := range infos {
		ref := core.StorageReference{
			URI:        uriScheme + info.Address,
			Size:       info.Size,
			UploadedAt: info.UploadedAt,
			DataType:   info.Meta[metaDataType],
		}
		if h := info.Meta[metaContentHash]; h != "" {
			ref.ContentHash = "sha256:" + NormalizeHash(h)
		}
		if ts := info.Meta[metaUploadedAt]; ref.UploadedAt.IsZero() && ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				ref.UploadedAt = parsed
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (c *Client) Exists(ctx context.Context, uri string) (bool, error) {
	address, err := parseURI(uri)
	if err != nil {
		return false, err
	}
	return c.store.HeadObject(ctx, address)
}

func (c *Client) Delete(ctx context.Context, uri, userID string) error {
	address, err := parseURI(uri)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(address, userID+"/") {
		return fmt.Errorf("object %s does not belong to user %s", uri, userID)
	}
	return c.store.DeleteObject(ctx, address)
}

// NormalizeHash lowercases and strips the sha256: prefix so hashes
// from different writers compare equal.
func NormalizeHash(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "sha256:")
}

func parseURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", fmt.Errorf("not an archive uri: %s", uri)
	}
	return strings.TrimPrefix(uri, uriScheme), nil
}
