// Package prompt renders retrieved memories and user input into the text
// sent to the generation backend. All functions are pure.
package prompt

import (
	"fmt"
	"strings"
)

// NoMemoriesSentinel is returned by FormatMemories for empty input.
const NoMemoriesSentinel = "No relevant past memories."

const withMemoryTemplate = `You are a helpful AI assistant with access to memories from past conversations.

Below are relevant facts and context from previous interactions:

%s

Use this information to provide personalized and contextually aware responses.
If the memories contain relevant information, incorporate it naturally into your answer.
If the memories don't help with the current question, just answer normally.

Current user message: %s`

const noMemoryTemplate = `You are a helpful AI assistant.

Current user message: %s`

const summaryTemplate = `You are creating memory summaries for a conversational AI system.
Extract ONLY factual information, preferences, or constraints from this conversation.

User said: %s
Assistant said: %s

Create a 3-5 line summary focusing on:
- Facts about the user (name, location, job, etc.)
- User preferences (likes, dislikes, habits)
- Important context for future conversations
- Specific requests or constraints

Rules:
- Be concise and factual
- No opinions or commentary
- No filler words
- Focus on what's memorable and useful

Summary:`

// FormatMemories renders memory texts as a numbered, delimited block.
// Empty input yields NoMemoriesSentinel.
func FormatMemories(memories []string) string {
	if len(memories) == 0 {
		return NoMemoriesSentinel
	}

	var b strings.Builder
	b.WriteString("=== Relevant Past Information ===\n")
	for i, mem := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, mem)
	}
	b.WriteString("================================\n")
	return b.String()
}

// BuildSystemPrompt selects the with-memories or no-memories template
// based solely on whether formattedMemories is non-empty.
func BuildSystemPrompt(userInput string, formattedMemories string) string {
	if formattedMemories != "" {
		return fmt.Sprintf(withMemoryTemplate, formattedMemories, userInput)
	}
	return fmt.Sprintf(noMemoryTemplate, userInput)
}

// SummaryPrompt builds the dedicated summarization prompt for one turn.
func SummaryPrompt(userInput string, assistantResponse string) string {
	return fmt.Sprintf(summaryTemplate, userInput, assistantResponse)
}
