package agent

import (
	"fmt"

	"github.com/kiransahoo/ddd-refactor/internal/llm"
)

// DefaultBasePrompt is the policy sent ahead of every chunk. Operators can
// replace it through configuration; the JSON contract in it must match
// Verdict.
const DefaultBasePrompt = `You are an expert in Go, Hexagonal Architecture, and advanced DDD frameworks.
Return EXACTLY one JSON:
{
  "violation": boolean,
  "reason": "...",
  "suggestedFix": "..."
}
If violation=true, suggestedFix MUST parse with go/parser. ASCII quotes only, no enumerations.`

const systemPrompt = "You are an advanced DDD refactoring agent. Follow instructions strictly."

// Corrective feedback appended to the conversation on each failed attempt.
// Only user messages grow the conversation; the model's own replies are
// never echoed back.
const (
	feedbackModelFailure = `LLM returned null, please produce valid JSON {"violation":..., "reason":..., "suggestedFix":...}`
	feedbackBadJSON      = "Your response wasn't valid JSON. Return exactly one JSON object."
)

func feedbackBadFix(parseErr error) string {
	return fmt.Sprintf("Your suggestedFix is not valid Go: %v. Please correct the syntax and ensure it parses with go/parser.", parseErr)
}

// BuildConversation assembles the opening exchange for one chunk. The
// section markers separate retrieval context from the code under judgment.
func BuildConversation(basePrompt, domainContext, chunk string) []llm.Message {
	if basePrompt == "" {
		basePrompt = DefaultBasePrompt
	}
	user := basePrompt +
		"\n\n//=== Domain Code Snippets ===\n" + domainContext +
		"\n\n//=== Legacy Code Chunk ===\n" + chunk

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
}
