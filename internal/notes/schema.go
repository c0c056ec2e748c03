package notes

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id              BIGSERIAL PRIMARY KEY,
		conversation_id TEXT        NOT NULL,
		content         TEXT        NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_conversation ON notes (conversation_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS note_categories (
		note_id     BIGINT NOT NULL REFERENCES notes (id) ON DELETE CASCADE,
		category_id BIGINT NOT NULL REFERENCES categories (id),
		PRIMARY KEY (note_id, category_id)
	)`,
}

// AUTOINCREMENT keeps sqlite from handing out the id of a deleted row again.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT      NOT NULL,
		content         TEXT      NOT NULL,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_conversation ON notes (conversation_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS note_categories (
		note_id     INTEGER NOT NULL REFERENCES notes (id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES categories (id),
		PRIMARY KEY (note_id, category_id)
	)`,
}

func migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := postgresSchema
	if d == DialectSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind turns `?` placeholders into `$n` for postgres.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// dbTime scans timestamps from drivers that return either time.Time or text.
type dbTime struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(v, 0).UTC()
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
	return nil
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
