package notes

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"
)

const noteColumns = `id, conversation_id, content, created_at`

// AddNote stores trimmed content and returns the new id. The write is retried
// up to MaxWriteAttempts times; the last failure comes back as *StoreError.
func (s *Store) AddNote(ctx context.Context, conversationID, content string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxWriteAttempts; attempt++ {
		id, err := s.insertNote(ctx, conversationID, content)
		if err == nil {
			s.log.Debug("note added",
				zap.Int64("id", id),
				zap.String("conversation", conversationID),
				zap.Int("attempt", attempt),
			)
			return id, nil
		}
		lastErr = err
		s.log.Warn("add note failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.cfg.MaxWriteAttempts),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return 0, &StoreError{Op: "add note", Err: lastErr}
}

func (s *Store) insertNote(ctx context.Context, conversationID, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, s.q(`
			INSERT INTO notes (conversation_id, content, created_at)
			VALUES (?, ?, ?)
			RETURNING id
		`), conversationID, content, time.Now().UTC()).Scan(&id)
	})
	return id, err
}

// GetRecentNotes returns up to limit notes, newest first, with their categories.
// Storage errors are logged and yield an empty result.
func (s *Store) GetRecentNotes(ctx context.Context, conversationID string, limit int) []Note {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out, err := s.queryNotes(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		s.log.Warn("get recent notes failed", zap.String("conversation", conversationID), zap.Error(err))
		return []Note{}
	}
	s.attachCategories(ctx, out)
	return out
}

// GetAllNotes returns every note of the conversation, newest first, with their categories.
func (s *Store) GetAllNotes(ctx context.Context, conversationID string) []Note {
	out, err := s.queryNotes(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE conversation_id = ?
		ORDER BY id DESC
	`, conversationID)
	if err != nil {
		s.log.Warn("get all notes failed", zap.String("conversation", conversationID), zap.Error(err))
		return []Note{}
	}
	s.attachCategories(ctx, out)
	return out
}

// DeleteNote reports whether a note was removed. A missing id is not an error.
func (s *Store) DeleteNote(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM note_categories WHERE note_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM notes WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, &StoreError{Op: "delete note", Err: err}
	}
	return deleted, nil
}

// UpdateNote replaces the content of a note. It reports false when the id does not exist.
func (s *Store) UpdateNote(ctx context.Context, id int64, newContent string) (bool, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return false, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	var updated bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE notes SET content = ? WHERE id = ?`), newContent, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n > 0
		return nil
	})
	if err != nil {
		return false, &StoreError{Op: "update note", Err: err}
	}
	return updated, nil
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := s.conn().QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		var n Note
		var created dbTime
		if err := rows.Scan(&n.ID, &n.ConversationID, &n.Content, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = created.Time
		out = append(out, n)
	}
	return out, rows.Err()
}
