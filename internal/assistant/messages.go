package assistant

import (
	"fmt"
	"strings"

	"github.com/Vovarama1992/notebot/internal/notes"
)

const DefaultSystemPrompt = `You are a helpful AI assistant that also keeps the user's notes.
Respond helpfully and briefly, in less than 50 words.
Commands such as saving, listing, removing or editing notes are handled for you.`

const (
	msgGreeting       = "Hello! I'm your AI assistant. How can I help you today?"
	msgReset          = "Conversation reset. How can I assist you?"
	msgEmptyInput     = "Please type a message."
	msgSaveUsage      = "Please tell me what to note.\nExample: remember to buy milk tomorrow"
	msgSaveFailed     = "⚠️ Failed to save note, please try again"
	msgSavedPlain     = "📝 Note saved, but I couldn't determine categories"
	msgNoNotes        = "No notes found. Start by asking me to remember something."
	msgNoCategories   = "No categories yet. Notes are categorized when you save them."
	msgCategoryUsage  = "Please tell me which category to show.\nExample: show my work notes"
	msgRemoveUsage    = "Please specify a topic to remove notes about.\nExample: delete notes about coffee"
	msgEditUsage      = "Please specify a topic and the new content.\nExample: change notes about coffee to tea"
	msgCancelled      = "Command cancelled"
	msgChatFailed     = "🚨 Error processing your request"
	msgStoreDown      = "❌ Database connection issue, please try again later"
	msgUpdateRejected = "The new content of a note can't be empty."
)

const helpText = `Available commands (just ask in your own words):
start - Initialize new conversation
reset - Reset conversation history
help - List available commands
save <note> - Save a new note
notes - Show recent notes
categories - Show note categories
category_notes <category> - Show notes in a category
remove_notes <topic> - Remove notes related to a topic
edit_notes <topic> <new_content> - Edit notes related to a topic`

func savedWithCategories(categories []string) string {
	return "📝 I've saved this note under categories: " + strings.Join(categories, ", ")
}

func noMatches(topic string) string {
	return fmt.Sprintf("No notes found related to '%s'", topic)
}

func confirmPrompt(p *PendingConfirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Found %d notes related to '%s':\n", len(p.NoteIDs), p.Topic)
	for _, c := range p.Contents {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	switch p.Action {
	case KindEditNotes:
		fmt.Fprintf(&b, "Are you sure you want to update them to: '%s'? (yes/no)", p.NewContent)
	default:
		b.WriteString("Are you sure you want to delete them? (yes/no)")
	}
	return b.String()
}

func removedSummary(done, total int, topic string) string {
	return fmt.Sprintf("✅ Removed %d/%d notes related to '%s'", done, total, topic)
}

func updatedSummary(done, total int, topic string) string {
	return fmt.Sprintf("✅ Updated %d/%d notes related to '%s'", done, total, topic)
}

func formatNotes(title string, list []notes.Note) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, n := range list {
		fmt.Fprintf(&b, "• %s", n.Content)
		if len(n.Categories) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(n.Categories, ", "))
		}
		fmt.Fprintf(&b, "\n  (%s)\n", n.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCategories(list []notes.Category) string {
	var b strings.Builder
	b.WriteString("🗂 Your Categories:\n")
	for _, c := range list {
		fmt.Fprintf(&b, "\n• %s (%d)", c.Name, c.NoteCount)
	}
	return b.String()
}
