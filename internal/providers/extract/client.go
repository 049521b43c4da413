// Package extract is the client for the external extraction
// collaborator: an OpenAI-compatible chat endpoint asked to return
// strict JSON. Malformed output degrades to empty results; it is never
// a fatal error for the caller.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/vitalmem/internal/config"
	"github.com/sandevgo/vitalmem/internal/core"
	"github.com/sandevgo/vitalmem/pkg/log"
)

type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	tokenBudget int
	encoder     *tiktoken.Tiktoken
}

func NewClient(cfg *config.ExtractConfig) (*Client, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoder: %w", err)
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		tokenBudget: cfg.TranscriptTokenBudget,
		encoder:     enc,
	}, nil
}

// ExtractFacts asks the collaborator for structured facts. A response
// that is not parseable JSON yields an empty list, not an error.
func (c *Client) ExtractFacts(ctx context.Context, transcript []core.Message) ([]core.CriticalFact, error) {
	content, err := c.complete(ctx, factSystemPrompt, buildFactPrompt(c.formatTranscript(transcript)))
	if err != nil {
		return nil, err
	}

	facts := parseFactsResponse(content)
	if len(facts) == 0 && strings.TrimSpace(content) != "" {
		log.FromCtx(ctx).Debug().Msg("fact extraction returned no usable facts")
	}
	return facts, nil
}

// SummarizeSession asks the collaborator for a session summary.
func (c *Client) SummarizeSession(ctx context.Context, transcript []core.Message) (*core.SessionSummary, error) {
	content, err := c.complete(ctx, summarySystemPrompt, buildSummaryPrompt(c.formatTranscript(transcript)))
	if err != nil {
		return nil, err
	}
	return parseSummaryResponse(content), nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []core.Message{
			{Role: core.RoleSystem, Content: systemPrompt},
			{Role: core.RoleUser, Content: userPrompt},
		},
		"temperature": 0.1,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// formatTranscript renders role-prefixed lines, trimming the oldest
// turns when the transcript exceeds the token budget.
func (c *Client) formatTranscript(transcript []core.Message) string {
	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		if m.Role == core.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}

	// Drop from the front until within budget; the tail of the
	// conversation carries the most extractable signal.
	for len(lines) > 1 {
		joined := strings.Join(lines, "\n")
		if len(c.encoder.Encode(joined, nil, nil)) <= c.tokenBudget {
			break
		}
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}
