package core

import (
	"strings"
	"time"
)

const (
	AppName    = "VitalMem"
	AppVersion = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation transcript handed to the
// extraction collaborator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type FactCategory string

const (
	FactGoal       FactCategory = "goal"
	FactConcern    FactCategory = "concern"
	FactCondition  FactCategory = "condition"
	FactPreference FactCategory = "preference"
	FactMilestone  FactCategory = "milestone"
	FactContext    FactCategory = "context"
)

var FactCategories = []FactCategory{
	FactGoal, FactConcern, FactCondition, FactPreference, FactMilestone, FactContext,
}

func IsValidCategory(c FactCategory) bool {
	for _, v := range FactCategories {
		if v == c {
			return true
		}
	}
	return false
}

type FactSource string

const (
	SourceExtracted  FactSource = "ai-extracted"
	SourceUserInput  FactSource = "user-input"
	SourceBlockchain FactSource = "blockchain"
)

type StorageLocation string

const (
	LocationLocal      StorageLocation = "local"
	LocationBlockchain StorageLocation = "blockchain"
	LocationBoth       StorageLocation = "both"
)

type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// CriticalFact is an atomic durable statement about the user.
type CriticalFact struct {
	ID              string          `json:"id"`
	Category        FactCategory    `json:"category"`
	Value           string          `json:"value"`
	Context         string          `json:"context,omitempty"`
	DateIdentified  time.Time       `json:"dateIdentified"`
	IsActive        bool            `json:"isActive"`
	Source          FactSource      `json:"source"`
	StorageLocation StorageLocation `json:"storageLocation"`
	Confidence      float64         `json:"confidence"`
	ProofRef        string          `json:"proofRef,omitempty"`
}

// DedupKey is the uniqueness key for facts: category plus the
// lowercased, trimmed value.
func (f CriticalFact) DedupKey() string {
	return string(f.Category) + "|" + strings.ToLower(strings.TrimSpace(f.Value))
}

// SessionSummary is a compact record of one conversation.
type SessionSummary struct {
	ID             string     `json:"id"`
	Date           time.Time  `json:"date"`
	Summary        string     `json:"summary"`
	Topics         []string   `json:"topics"`
	MessageCount   int        `json:"messageCount"`
	ExtractedFacts []string   `json:"extractedFacts"`
	Importance     Importance `json:"importance"`
}

// IsImportant reports whether the summary belongs to the important
// bucket rather than the recent one.
func (s SessionSummary) IsImportant() bool {
	return s.Importance == ImportanceHigh || s.Importance == ImportanceCritical
}

// Session bucket caps. Insertion beyond a cap evicts the oldest entry.
const (
	MaxImportantSessions = 20
	MaxRecentSessions    = 5
)

// ConversationMemory is the per-user aggregate root.
type ConversationMemory struct {
	UserID              string            `json:"userId"`
	CriticalFacts       []CriticalFact    `json:"criticalFacts"`
	ImportantSessions   []SessionSummary  `json:"importantSessions"`
	RecentSessions      []SessionSummary  `json:"recentSessions"`
	Preferences         map[string]string `json:"preferences"`
	LastUpdated         time.Time         `json:"lastUpdated"`
	TotalSessions       int               `json:"totalSessions"`
	TotalFactsExtracted int               `json:"totalFactsExtracted"`
}

func NewConversationMemory(userID string) *ConversationMemory {
	return &ConversationMemory{
		UserID:      userID,
		Preferences: make(map[string]string),
		LastUpdated: time.Now(),
	}
}

// Touch advances LastUpdated. It never moves backwards, even under
// clock skew.
func (m *ConversationMemory) Touch() {
	if now := time.Now(); now.After(m.LastUpdated) {
		m.LastUpdated = now
	}
}

// FindFact returns the fact with the given id, or nil.
func (m *ConversationMemory) FindFact(id string) *CriticalFact {
	for i := range m.CriticalFacts {
		if m.CriticalFacts[i].ID == id {
			return &m.CriticalFacts[i]
		}
	}
	return nil
}

// MemoryStats is the read model returned by GetMemoryStats.
type MemoryStats struct {
	UserID              string               `json:"userId"`
	TotalFacts          int                  `json:"totalFacts"`
	ActiveFacts         int                  `json:"activeFacts"`
	FactsByCategory     map[FactCategory]int `json:"factsByCategory"`
	ImportantSessions   int                  `json:"importantSessions"`
	RecentSessions      int                  `json:"recentSessions"`
	TotalSessions       int                  `json:"totalSessions"`
	TotalFactsExtracted int                  `json:"totalFactsExtracted"`
	LastUpdated         time.Time            `json:"lastUpdated"`
}
