package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/pkg/retry"
)

// ObjectStore is the raw byte transport under the archive client. The
// memory subsystem never retries; transient upload/download failures
// are absorbed here, at the collaborator boundary.
type ObjectStore interface {
	PutObject(ctx context.Context, address string, data []byte, meta map[string]string) error
	GetObject(ctx context.Context, address string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	HeadObject(ctx context.Context, address string) (bool, error)
	DeleteObject(ctx context.Context, address string) error
}

type ObjectInfo struct {
	Address    string            `json:"address"`
	Size       int64             `json:"size"`
	UploadedAt time.Time         `json:"uploadedAt"`
	Meta       map[string]string `json:"meta,omitempty"`
}

type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retrier *retry.Retrier
}

func NewHTTPTransport(cfg *config.ArchiveConfig) *HTTPTransport {
	return &HTTPTransport{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		retrier: retry.NewDefaultRetrier(),
	}
}

func (t *HTTPTransport) PutObject(ctx context.Context, address string, data []byte, meta map[string]string) error {
	return t.retrier.Do(ctx, func() error {
		req, err := t.newRequest(ctx, http.MethodPut, "/objects/"+url.PathEscape(address), bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		for k, v := range meta {
			req.Header.Set("X-Archive-Meta-"+k, v)
		}
		return t.expect(req, http.StatusOK, http.StatusCreated)
	})
}

func (t *HTTPTransport) GetObject(ctx context.Context, address string) ([]byte, error) {
	var data []byte
	err := t.retrier.Do(ctx, func() error {
		req, err := t.newRequest(ctx, http.MethodGet, "/objects/"+url.PathEscape(address), nil)
		if err != nil {
			return err
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("archive get %s: http %d", address, resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	return data, err
}

func (t *HTTPTransport) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := t.retrier.Do(ctx, func() error {
		req, err := t.newRequest(ctx, http.MethodGet, "/objects?prefix="+url.QueryEscape(prefix), nil)
		if err != nil {
			return err
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("archive list %s: http %d", prefix, resp.StatusCode)
		}
		infos = nil
		return json.NewDecoder(resp.Body).Decode(&infos)
	})
	return infos, err
}

func (t *HTTPTransport) HeadObject(ctx context.Context, address string) (bool, error) {
	req, err := t.newRequest(ctx, http.MethodHead, "/objects/"+url.PathEscape(address), nil)
	if err != nil {
		return false, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("archive head %s: http %d", address, resp.StatusCode)
	}
}

func (t *HTTPTransport) DeleteObject(ctx context.Context, address string) error {
	req, err := t.newRequest(ctx, http.MethodDelete, "/objects/"+url.PathEscape(address), nil)
	if err != nil {
		return err
	}
	return t.expect(req, http.StatusOK, http.StatusNoContent)
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	return req, nil
}

func (t *HTTPTransport) expect(req *http.Request, statuses ...int) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, s := range statuses {
		if resp.StatusCode == s {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("archive %s %s: http %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
}
