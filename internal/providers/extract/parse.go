package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vitalmem/internal/core"
)

type extractedFact struct {
	Value      string  `json:"value"`
	Category   string  `json:"category"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

type extractedSummary struct {
	Summary    string   `json:"summary"`
	Topics     []string `json:"topics"`
	Importance string   `json:"importance"`
}

// parseFactsResponse leniently pulls a JSON array out of the model's
// reply and converts valid entries. Unusable entries are dropped.
func parseFactsResponse(content string) []core.CriticalFact {
	jsonStr := sliceJSON(content, '[', ']')
	if jsonStr == "" {
		return nil
	}

	var raw []extractedFact
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil
	}

	now := time.Now()
	facts := make([]core.CriticalFact, 0, len(raw))
	for _, f := range raw {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		category := core.FactCategory(strings.ToLower(strings.TrimSpace(f.Category)))
		if !core.IsValidCategory(category) {
			category = core.FactContext
		}
		facts = append(facts, core.CriticalFact{
			ID:              uuid.NewString(),
			Category:        category,
			Value:           strings.TrimSpace(f.Value),
			Context:         strings.TrimSpace(f.Context),
			DateIdentified:  now,
			IsActive:        true,
			Source:          core.SourceExtracted,
			StorageLocation: core.LocationLocal,
			Confidence:      clamp01(f.Confidence),
		})
	}
	return facts
}

// parseSummaryResponse converts the model's summary JSON, or returns
// nil when no usable object is present.
func parseSummaryResponse(content string) *core.SessionSummary {
	jsonStr := sliceJSON(content, '{', '}')
	if jsonStr == "" {
		return nil
	}

	var raw extractedSummary
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil
	}

	importance := core.Importance(strings.ToLower(strings.TrimSpace(raw.Importance)))
	switch importance {
	case core.ImportanceLow, core.ImportanceMedium, core.ImportanceHigh, core.ImportanceCritical:
	default:
		importance = core.ImportanceMedium
	}

	topics := make([]string, 0, len(raw.Topics))
	for _, t := range raw.Topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			topics = append(topics, t)
		}
	}

	return &core.SessionSummary{
		ID:         uuid.NewString(),
		Date:       time.Now(),
		Summary:    strings.TrimSpace(raw.Summary),
		Topics:     topics,
		Importance: importance,
	}
}

// sliceJSON finds the outermost opener..closer span in content.
func sliceJSON(content string, opener, closer byte) string {
	start := strings.IndexByte(content, opener)
	if start == -1 {
		return ""
	}
	end := strings.LastIndexByte(content[start:], closer)
	if end == -1 {
		return ""
	}
	return content[start : start+end+1]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
