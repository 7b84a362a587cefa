package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/store"
	"ragchat-backend/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestSQLiteStore_RejectsCorruptRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{})
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE conversations SET messages = ? WHERE id = ?`,
		`[{"role":"assistant","content":"x","timestamp":"t","contexts":{"title":"not a list"}}]`, conv.ID.String())
	require.NoError(t, err)

	_, err = s.GetConversation(ctx, conv.ID, "")
	assert.ErrorIs(t, err, store.ErrCorruptRecord)
	assert.NotErrorIs(t, err, models.ErrMalformedContext)
	assert.NotErrorIs(t, err, models.ErrValidation)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{Title: "persisted"})
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, conv.ID, "", models.NewUserMessage("hello", "t")))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetConversation(ctx, conv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}
