package extract

import "fmt"

const factSystemPrompt = "You are a health fact extraction system. Output only valid JSON."

const summarySystemPrompt = "You are a conversation summarizer for a health assistant. Output only valid JSON."

func buildFactPrompt(transcript string) string {
	return fmt.Sprintf(
		`Extract distinct, durable health facts about the user from the conversation. Output format: JSON array of objects {value, category, context, confidence}. Categories: [goal, concern, condition, preference, milestone, context]. Confidence is 0-1. Rules: 1. Ignore greetings and small talk. 2. Facts must be self-contained (replace "he" with "User"). 3. Only include facts worth remembering across sessions. Conversation:
%s`,
		transcript,
	)
}

func buildSummaryPrompt(transcript string) string {
	return fmt.Sprintf(
		`Summarize this health conversation. Output format: JSON object {summary, topics, importance}. summary is 1-3 sentences. topics is an array of short keywords. importance is one of [low, medium, high, critical] based on how much the session matters for the user's long-term health picture. Conversation:
%s`,
		transcript,
	)
}
