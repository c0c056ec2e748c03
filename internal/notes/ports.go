package notes

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultRecentLimit is how many notes GetRecentNotes returns when no limit is given.
const DefaultRecentLimit = 10

type Note struct {
	ID             int64
	ConversationID string
	Content        string
	Categories     []string
	CreatedAt      time.Time
}

type Category struct {
	Name      string
	NoteCount int
}

// NormalizeCategories lower-cases and trims names, dropping empties and duplicates.
// Order of first appearance is kept.
func NormalizeCategories(names []string) []string {
	normalized := lo.Map(names, func(name string, _ int) string {
		return strings.ToLower(strings.TrimSpace(name))
	})
	return lo.Uniq(lo.Compact(normalized))
}
