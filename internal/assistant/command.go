package assistant

import "github.com/Vovarama1992/notebot/internal/ai"

// Kind is the closed set of commands the router can run.
type Kind int

const (
	KindNone Kind = iota
	KindStart
	KindReset
	KindHelp
	KindSave
	KindNotes
	KindCategories
	KindCategoryNotes
	KindRemoveNotes
	KindEditNotes
)

var kindNames = map[Kind]string{
	KindStart:         "start",
	KindReset:         "reset",
	KindHelp:          "help",
	KindSave:          "save",
	KindNotes:         "notes",
	KindCategories:    "categories",
	KindCategoryNotes: "category_notes",
	KindRemoveNotes:   "remove_notes",
	KindEditNotes:     "edit_notes",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "none"
}

// Destructive commands change or delete existing notes and need a yes/no reply first.
func (k Kind) Destructive() bool {
	return k == KindRemoveNotes || k == KindEditNotes
}

func parseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNone, false
}

var catalog = []ai.Intent{
	{
		Name:        KindStart.String(),
		Description: "Initialize a new conversation",
		Examples:    []string{"start", "begin chat", "let's start over from scratch"},
	},
	{
		Name:        KindReset.String(),
		Description: "Reset the conversation history",
		Examples:    []string{"reset", "clear the chat", "forget our conversation"},
	},
	{
		Name:        KindHelp.String(),
		Description: "List available commands",
		Examples:    []string{"help", "commands", "what can you do?"},
	},
	{
		Name:        KindSave.String(),
		Description: "Save a new note",
		Examples:    []string{"remember to buy milk", "note this: call Ann on Monday", "please save this idea"},
	},
	{
		Name:        KindNotes.String(),
		Description: "Show recent notes",
		Examples:    []string{"show me my notes", "what notes do I have?", "list notes"},
	},
	{
		Name:        KindCategories.String(),
		Description: "List note categories",
		Examples:    []string{"which categories do I have?", "show my note categories"},
	},
	{
		Name:        KindCategoryNotes.String(),
		Description: "Show notes of one category",
		Examples:    []string{"show my work notes", "list notes in shopping"},
	},
	{
		Name:        KindRemoveNotes.String(),
		Description: "Delete notes related to a topic",
		Examples:    []string{"delete notes about coffee", "remove all gym notes", "clear notes related to the trip"},
	},
	{
		Name:        KindEditNotes.String(),
		Description: "Change notes related to a topic",
		Examples:    []string{"change notes about coffee to tea", "update my meeting notes to 3pm"},
	},
}

// Catalog returns the intents offered to the classifier.
func Catalog() []ai.Intent {
	out := make([]ai.Intent, len(catalog))
	copy(out, catalog)
	return out
}
