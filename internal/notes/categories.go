package notes

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CategorizeNote replaces the category set of a note in one transaction.
// Names are normalized first and unknown categories are created.
// It reports false when the note does not exist.
func (s *Store) CategorizeNote(ctx context.Context, id int64, names []string) (bool, error) {
	names = NormalizeCategories(names)

	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM notes WHERE id = ?`), id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM note_categories WHERE note_id = ?`), id); err != nil {
			return err
		}

		for _, name := range names {
			if _, err := tx.ExecContext(ctx, s.q(`
				INSERT INTO categories (name) VALUES (?)
				ON CONFLICT (name) DO NOTHING
			`), name); err != nil {
				return err
			}

			var categoryID int64
			if err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM categories WHERE name = ?`), name).
				Scan(&categoryID); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, s.q(`
				INSERT INTO note_categories (note_id, category_id) VALUES (?, ?)
			`), id, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, &StoreError{Op: "categorize note", Err: err}
	}
	return found, nil
}

// GetNotesByCategory returns the conversation's notes tagged with category, newest first.
func (s *Store) GetNotesByCategory(ctx context.Context, conversationID, category string) []Note {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return []Note{}
	}

	out, err := s.queryNotes(ctx, `
		SELECT n.id, n.conversation_id, n.content, n.created_at
		FROM notes n
		JOIN note_categories nc ON nc.note_id = n.id
		JOIN categories c ON c.id = nc.category_id
		WHERE n.conversation_id = ? AND c.name = ?
		ORDER BY n.id DESC
	`, conversationID, category)
	if err != nil {
		s.log.Warn("get notes by category failed",
			zap.String("conversation", conversationID),
			zap.String("category", category),
			zap.Error(err),
		)
		return []Note{}
	}
	s.attachCategories(ctx, out)
	return out
}

// GetAllCategories lists categories with the number of notes in each.
// An empty conversationID lists every category, including orphaned ones.
func (s *Store) GetAllCategories(ctx context.Context, conversationID string) []Category {
	query := `
		SELECT c.name, COUNT(nc.note_id)
		FROM categories c
		LEFT JOIN note_categories nc ON nc.category_id = c.id
		GROUP BY c.name
		ORDER BY c.name
	`
	var args []any
	if conversationID != "" {
		query = `
			SELECT c.name, COUNT(*)
			FROM categories c
			JOIN note_categories nc ON nc.category_id = c.id
			JOIN notes n ON n.id = nc.note_id
			WHERE n.conversation_id = ?
			GROUP BY c.name
			ORDER BY c.name
		`
		args = append(args, conversationID)
	}

	rows, err := s.conn().QueryContext(ctx, s.q(query), args...)
	if err != nil {
		s.log.Warn("get categories failed", zap.Error(err))
		return []Category{}
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.NoteCount); err != nil {
			s.log.Warn("scan category failed", zap.Error(err))
			return []Category{}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("get categories failed", zap.Error(err))
		return []Category{}
	}
	return out
}

// attachCategories fills Categories on each note. Failures leave them empty.
func (s *Store) attachCategories(ctx context.Context, list []Note) {
	if len(list) == 0 {
		return
	}

	index := make(map[int64]int, len(list))
	args := make([]any, 0, len(list))
	for i, n := range list {
		index[n.ID] = i
		args = append(args, n.ID)
	}

	rows, err := s.conn().QueryContext(ctx, s.q(`
		SELECT nc.note_id, c.name
		FROM note_categories nc
		JOIN categories c ON c.id = nc.category_id
		WHERE nc.note_id IN (`+placeholders(len(args))+`)
		ORDER BY c.name
	`), args...)
	if err != nil {
		s.log.Warn("load note categories failed", zap.Error(err))
		return
	}
	defer rows.Close()

	byNote := map[int64][]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			s.log.Warn("scan note category failed", zap.Error(err))
			return
		}
		byNote[id] = append(byNote[id], name)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("load note categories failed", zap.Error(err))
		return
	}

	for _, id := range lo.Keys(byNote) {
		list[index[id]].Categories = byNote[id]
	}
}
