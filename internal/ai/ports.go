package ai

// Message is one entry of a conversation history.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IntentNone is what Classify returns when no intent matches.
const IntentNone = "none"

// Intent describes one command the model may pick.
type Intent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// Args are the arguments pulled out of free text for an intent.
// Fields the intent does not use stay empty.
type Args struct {
	Note       string
	Topic      string
	NewContent string
	Category   string
}

// Candidate is a note offered to MatchTopic.
type Candidate struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}
