package assistant

import (
	"context"

	"github.com/Vovarama1992/notebot/internal/ai"
	"github.com/Vovarama1992/notebot/internal/notes"
)

// Classifier maps free text to intents and arguments. Any error it returns
// makes the router fall back to plain chat.
type Classifier interface {
	Classify(ctx context.Context, text string, catalog []ai.Intent) (string, error)
	ExtractArgs(ctx context.Context, text, intent string) (ai.Args, error)
	MatchTopic(ctx context.Context, topic string, candidates []ai.Candidate) ([]int64, error)
	SuggestCategories(ctx context.Context, content string) ([]string, error)
}

// Generator answers on the plain chat path.
type Generator interface {
	GetReply(ctx context.Context, history []ai.Message) (string, error)
}

// NoteStore is the persistence the router needs.
type NoteStore interface {
	AddNote(ctx context.Context, conversationID, content string) (int64, error)
	GetRecentNotes(ctx context.Context, conversationID string, limit int) []notes.Note
	GetAllNotes(ctx context.Context, conversationID string) []notes.Note
	DeleteNote(ctx context.Context, id int64) (bool, error)
	UpdateNote(ctx context.Context, id int64, newContent string) (bool, error)
	CategorizeNote(ctx context.Context, id int64, names []string) (bool, error)
	GetNotesByCategory(ctx context.Context, conversationID, category string) []notes.Note
	GetAllCategories(ctx context.Context, conversationID string) []notes.Category
	VerifyConnection(ctx context.Context) bool
	Reconnect(ctx context.Context) error
}

// Reply is what the router hands back to a transport adapter.
type Reply struct {
	Text                 string
	Command              Kind
	AwaitingConfirmation bool
	// Discarded is set when the conversation was reset while the message was
	// being handled; adapters should send nothing.
	Discarded bool
}
