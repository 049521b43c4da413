package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/vitalmem/internal/core"
)

const (
	minUserTurns   = 2
	minUserContent = 100
)

// healthTopics are the keywords that mark a conversation as worth
// extracting from. Matched case-insensitively against user content.
var healthTopics = []string{
	"sleep", "weight", "diet", "nutrition", "exercise", "workout",
	"run", "steps", "calorie", "protein", "stress", "anxiety",
	"fatigue", "tired", "energy", "pain", "doctor", "medication",
	"symptom", "blood", "heart", "sugar", "glucose", "mood",
	"fasting", "injury", "recovery", "goal", "habit", "health",
}

// HasSubstance is the extraction gate: a conversation qualifies when
// it has at least two user turns, at least 100 characters of user
// content, and mentions a recognizable health topic.
func HasSubstance(messages []core.Message) bool {
	userTurns := 0
	contentRunes := 0
	var userContent strings.Builder
	for _, m := range messages {
		if m.Role != core.RoleUser {
			continue
		}
		userTurns++
		// Length is measured in runes of the turn content itself, so
		// multi-byte input and turn count don't skew the threshold
		contentRunes += utf8.RuneCountInString(strings.TrimSpace(m.Content))
		userContent.WriteString(m.Content)
		userContent.WriteByte(' ')
	}

	if userTurns < minUserTurns {
		return false
	}
	if contentRunes < minUserContent {
		return false
	}
	content := strings.ToLower(userContent.String())

	for _, topic := range healthTopics {
		if strings.Contains(content, topic) {
			return true
		}
	}
	return false
}

// detectTopics pulls the health keywords actually mentioned, for the
// fallback summary.
func detectTopics(messages []core.Message) []string {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == core.RoleUser {
			sb.WriteString(strings.ToLower(m.Content))
			sb.WriteByte(' ')
		}
	}
	content := sb.String()

	var topics []string
	for _, topic := range healthTopics {
		if strings.Contains(content, topic) {
			topics = append(topics, topic)
		}
		if len(topics) == 5 {
			break
		}
	}
	return topics
}
