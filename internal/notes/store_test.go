package notes

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DialectSQLite, DSN: ":memory:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func contents(list []Note) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Content)
	}
	return out
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "open", storeErr.Op)
}

func TestAddNote_TrimsAndListsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddNote(ctx, "c1", "   buy milk \n")
	require.NoError(t, err)
	assert.Positive(t, id)

	all := s.GetAllNotes(ctx, "c1")
	assert.Equal(t, []string{"buy milk"}, contents(all))
	assert.Equal(t, id, all[0].ID)
	assert.Equal(t, "c1", all[0].ConversationID)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestAddNote_RejectsBlankContent(t *testing.T) {
	s := newTestStore(t)

	for _, content := range []string{"", "   ", "\t\n"} {
		_, err := s.AddNote(context.Background(), "c1", content)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "content %q", content)
	}
	assert.Empty(t, s.GetAllNotes(context.Background(), "c1"))
}

func TestGetRecentNotes_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := s.AddNote(ctx, "c1", c)
		require.NoError(t, err)
	}
	_, err := s.AddNote(ctx, "other", "foreign")
	require.NoError(t, err)

	assert.Equal(t, []string{"three", "two", "one"}, contents(s.GetRecentNotes(ctx, "c1", 0)))
	assert.Equal(t, []string{"three", "two"}, contents(s.GetRecentNotes(ctx, "c1", 2)))
	assert.Empty(t, s.GetRecentNotes(ctx, "nobody", 10))
}

func TestGetRecentNotes_DefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < DefaultRecentLimit+3; i++ {
		_, err := s.AddNote(ctx, "c1", "note")
		require.NoError(t, err)
	}
	assert.Len(t, s.GetRecentNotes(ctx, "c1", 0), DefaultRecentLimit)
	assert.Len(t, s.GetAllNotes(ctx, "c1"), DefaultRecentLimit+3)
}

func TestDeleteNote_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddNote(ctx, "c1", "coffee beans")
	require.NoError(t, err)
	_, err = s.CategorizeNote(ctx, id, []string{"shopping"})
	require.NoError(t, err)

	deleted, err := s.DeleteNote(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteNote(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Empty(t, s.GetAllNotes(ctx, "c1"))
}

func TestDeleteNote_IDsAreNotReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddNote(ctx, "c1", "a")
	require.NoError(t, err)
	_, err = s.DeleteNote(ctx, first)
	require.NoError(t, err)

	second, err := s.AddNote(ctx, "c1", "b")
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestUpdateNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddNote(ctx, "c1", "coffee")
	require.NoError(t, err)

	updated, err := s.UpdateNote(ctx, id, "  tea  ")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, []string{"tea"}, contents(s.GetAllNotes(ctx, "c1")))

	updated, err = s.UpdateNote(ctx, id+100, "tea")
	require.NoError(t, err)
	assert.False(t, updated)

	_, err = s.UpdateNote(ctx, id, "   ")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"tea"}, contents(s.GetAllNotes(ctx, "c1")))
}

func TestCategorizeNote_NormalizesNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddNote(ctx, "c1", "finish report")
	require.NoError(t, err)

	ok, err := s.CategorizeNote(ctx, id, []string{"Work", "work "})
	require.NoError(t, err)
	assert.True(t, ok)

	recent := s.GetRecentNotes(ctx, "c1", 10)
	require.Len(t, recent, 1)
	assert.Equal(t, []string{"work"}, recent[0].Categories)
	assert.Equal(t, []Category{{Name: "work", NoteCount: 1}}, s.GetAllCategories(ctx, ""))
}

func TestCategorizeNote_ReplacesSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddNote(ctx, "c1", "buy milk")
	require.NoError(t, err)

	_, err = s.CategorizeNote(ctx, id, []string{"shopping", "home"})
	require.NoError(t, err)
	_, err = s.CategorizeNote(ctx, id, []string{"groceries"})
	require.NoError(t, err)

	recent := s.GetRecentNotes(ctx, "c1", 10)
	require.Len(t, recent, 1)
	assert.Equal(t, []string{"groceries"}, recent[0].Categories)

	// orphaned categories stay around with zero notes
	assert.Equal(t, []Category{
		{Name: "groceries", NoteCount: 1},
		{Name: "home", NoteCount: 0},
		{Name: "shopping", NoteCount: 0},
	}, s.GetAllCategories(ctx, ""))
	assert.Equal(t, []Category{{Name: "groceries", NoteCount: 1}}, s.GetAllCategories(ctx, "c1"))
}

func TestCategorizeNote_MissingNote(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.CategorizeNote(context.Background(), 42, []string{"work"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.GetAllCategories(context.Background(), ""))
}

func TestGetNotesByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	milk, err := s.AddNote(ctx, "c1", "buy milk")
	require.NoError(t, err)
	report, err := s.AddNote(ctx, "c1", "write report")
	require.NoError(t, err)
	bread, err := s.AddNote(ctx, "c1", "buy bread")
	require.NoError(t, err)

	_, err = s.CategorizeNote(ctx, milk, []string{"shopping"})
	require.NoError(t, err)
	_, err = s.CategorizeNote(ctx, report, []string{"work"})
	require.NoError(t, err)
	_, err = s.CategorizeNote(ctx, bread, []string{"shopping", "food"})
	require.NoError(t, err)

	got := s.GetNotesByCategory(ctx, "c1", " Shopping ")
	assert.Equal(t, []string{"buy bread", "buy milk"}, contents(got))
	assert.Equal(t, []string{"food", "shopping"}, got[0].Categories)

	assert.Empty(t, s.GetNotesByCategory(ctx, "c2", "shopping"))
	assert.Empty(t, s.GetNotesByCategory(ctx, "c1", ""))
}

func TestGetAllNotes_LoadsCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report, err := s.AddNote(ctx, "c1", "finish report")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, "c1", "buy milk")
	require.NoError(t, err)

	ok, err := s.CategorizeNote(ctx, report, []string{"Work", "urgent"})
	require.NoError(t, err)
	require.True(t, ok)

	all := s.GetAllNotes(ctx, "c1")
	require.Len(t, all, 2)
	assert.Equal(t, "buy milk", all[0].Content)
	assert.Empty(t, all[0].Categories)
	assert.Equal(t, report, all[1].ID)
	assert.Equal(t, []string{"urgent", "work"}, all[1].Categories)
}

func TestAddNote_RetriesTransientFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	failures := 2
	calls := 0
	s.hooks.beginTx = func(ctx context.Context, db DB) (*sql.Tx, error) {
		calls++
		if calls <= failures {
			return nil, errors.New("connection reset by peer")
		}
		return db.BeginTx(ctx, nil)
	}

	id, err := s.AddNote(ctx, "c1", "buy milk")
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"buy milk"}, contents(s.GetRecentNotes(ctx, "c1", 10)))
}

func TestAddNote_SurfacesErrorAfterLastAttempt(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	cause := errors.New("disk I/O error")
	s.hooks.beginTx = func(context.Context, DB) (*sql.Tx, error) {
		calls++
		return nil, cause
	}

	_, err := s.AddNote(context.Background(), "c1", "buy milk")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)

	s.hooks.beginTx = nil
	assert.Empty(t, s.GetAllNotes(context.Background(), "c1"))
}

func TestReadsDegradeToEmptyOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddNote(ctx, "c1", "buy milk")
	require.NoError(t, err)
	require.NoError(t, s.conn().Close())

	assert.False(t, s.VerifyConnection(ctx))
	assert.NotNil(t, s.GetRecentNotes(ctx, "c1", 10))
	assert.Empty(t, s.GetRecentNotes(ctx, "c1", 10))
	assert.Empty(t, s.GetAllNotes(ctx, "c1"))
	assert.Empty(t, s.GetNotesByCategory(ctx, "c1", "work"))
	assert.Empty(t, s.GetAllCategories(ctx, ""))

	_, err = s.DeleteNote(ctx, 1)
	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestReconnect_RestoresClosedConnection(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "notes.db")
	s, err := Open(context.Background(), Config{Driver: DialectSQLite, DSN: dsn}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	_, err = s.AddNote(ctx, "c1", "persisted")
	require.NoError(t, err)

	require.NoError(t, s.conn().Close())
	require.False(t, s.VerifyConnection(ctx))

	require.NoError(t, s.Reconnect(ctx))
	assert.True(t, s.VerifyConnection(ctx))
	assert.Equal(t, []string{"persisted"}, contents(s.GetAllNotes(ctx, "c1")))
}

func TestReconnect_Failure(t *testing.T) {
	s := newTestStore(t)
	s.open = func(context.Context) (DB, error) {
		return nil, errors.New("connection refused")
	}

	err := s.Reconnect(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "reconnect", storeErr.Op)
	assert.True(t, s.VerifyConnection(context.Background()))
}

func TestNormalizeCategories(t *testing.T) {
	assert.Equal(t, []string{"work", "home"}, NormalizeCategories([]string{" Work", "", "HOME", "work ", "  "}))
	assert.Empty(t, NormalizeCategories(nil))
}

func TestRebind(t *testing.T) {
	q := `SELECT id FROM notes WHERE conversation_id = ? AND id IN (?,?)`
	assert.Equal(t, `SELECT id FROM notes WHERE conversation_id = $1 AND id IN ($2,$3)`, rebind(DialectPostgres, q))
	assert.Equal(t, q, rebind(DialectSQLite, q))
}

func TestDBTimeScan(t *testing.T) {
	var ts dbTime
	require.NoError(t, ts.Scan("2024-05-01 10:11:12"))
	assert.Equal(t, 2024, ts.Year())

	require.NoError(t, ts.Scan([]byte("2024-05-01T10:11:12.5Z")))
	assert.Equal(t, 500_000_000, ts.Nanosecond())

	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(3.14))
}
