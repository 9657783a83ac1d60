package entity

import "strings"

type Intent int

const (
	IntentSocial Intent = iota
	IntentDomain
)

func (i Intent) String() string {
	if i == IntentDomain {
		return "domain"
	}
	return "social"
}

// Turn is one message of caller-supplied history. Role is "user" or "model"
// ("assistant" and "bot" are accepted as aliases of "model").
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ChatRequest struct {
	ClientID string `json:"-"`
	Prompt   string `json:"prompt"`
	History  []Turn `json:"history"`

	// Stream selects the incremental text/plain variant of the response.
	Stream bool `json:"stream"`
}

type ChatResponse struct {
	Text   string `json:"text"`
	Cached bool   `json:"-"`
	Intent Intent `json:"-"`
}

// Prompt is the fully assembled input for one upstream call.
type Prompt struct {
	Intent   Intent
	System   string
	History  []Turn
	Question string
	Context  string // retrieved reference text, empty when none
}

// UserMessage is the final user turn: the question, preceded by the
// retrieved context block when there is one.
func (p Prompt) UserMessage() string {
	if p.Context == "" {
		return p.Question
	}
	var b strings.Builder
	b.WriteString("Tham khảo các điều luật sau:\n")
	b.WriteString(p.Context)
	b.WriteString("\n\nCâu hỏi: ")
	b.WriteString(p.Question)
	return b.String()
}

// NormalizeKey returns the cache key for a prompt: trimmed and case-folded.
func NormalizeKey(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}
