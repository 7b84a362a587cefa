// Package storetest holds behavior checks shared by every store.Store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the store.Store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("AppendPreservesOrderAndPresence", func(t *testing.T) { testAppend(t, newStore(t)) })
	t.Run("ReplaceMessage", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("ListPagesAreStable", func(t *testing.T) { testListPaging(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("RejectsInvalidTurns", func(t *testing.T) { testRejectsInvalid(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
}

func citation(title string, chunk int) models.Context {
	return models.NewContext(models.WithTitle(title), models.WithURL("https://example.com/"+title), models.WithChunkID(chunk))
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	initial := []models.ChatMessageData{models.NewUserMessage("What is the capital of France?", "2024-01-01T00:00:00Z")}

	created, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "alice", Title: "geo", Messages: initial})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "geo", created.Title)
	assert.Equal(t, initial, created.Messages)

	got, err := s.GetConversation(ctx, created.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, initial, got.Messages)

	empty, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "alice"})
	require.NoError(t, err)
	got, err = s.GetConversation(ctx, empty.ID, "alice")
	require.NoError(t, err)
	assert.NotNil(t, got.Messages)
	assert.Empty(t, got.Messages)

	_, err = s.GetConversation(ctx, uuid.New(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAppend(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{})
	require.NoError(t, err)

	want := []models.ChatMessageData{
		models.NewUserMessage("What is the capital of France?", "2024-01-01T00:00:00Z"),
		models.NewAssistantMessage("Paris.", "2024-01-01T00:00:01Z").WithContexts([]models.Context{
			citation("C", 3), citation("A", 1), citation("B", 2),
		}),
		models.NewUserMessage("Anything on Atlantis?", "2024-01-01T00:00:02Z"),
		models.NewAssistantMessage("Nothing found.", "2024-01-01T00:00:03Z").WithContexts([]models.Context{}),
		models.NewAssistantMessage("General answer.", "2024-01-01T00:00:04Z"),
	}
	for _, m := range want {
		require.NoError(t, s.AppendMessage(ctx, conv.ID, "", m))
	}

	got, err := s.GetConversation(ctx, conv.ID, "")
	require.NoError(t, err)
	require.Len(t, got.Messages, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got.Messages[i]), "message %d: want %+v, got %+v", i, want[i], got.Messages[i])
	}
	assert.True(t, got.Messages[3].HasContexts(), "empty citation list must stay present")
	assert.False(t, got.Messages[4].HasContexts(), "absent citation list must stay absent")

	err = s.AppendMessage(ctx, uuid.New(), "", want[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testReplace(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := models.NewUserMessage("q", "t0")
	draft := models.NewAssistantMessage("draft", "t1")
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "bob", Messages: []models.ChatMessageData{first, draft}})
	require.NoError(t, err)

	final := models.NewAssistantMessage("final", "t2").WithContexts([]models.Context{citation("doc", 0)})
	require.NoError(t, s.ReplaceMessage(ctx, conv.ID, "bob", 1, final))

	got, err := s.GetConversation(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.True(t, first.Equal(got.Messages[0]))
	assert.True(t, final.Equal(got.Messages[1]))

	assert.ErrorIs(t, s.ReplaceMessage(ctx, conv.ID, "bob", 2, final), store.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.ReplaceMessage(ctx, conv.ID, "bob", -1, final), store.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.ReplaceMessage(ctx, uuid.New(), "bob", 0, final), store.ErrNotFound)
	assert.ErrorIs(t, s.ReplaceMessage(ctx, conv.ID, "mallory", 0, final), store.ErrNotFound)
}

func testOwnerScoping(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "alice"})
	require.NoError(t, err)

	_, err = s.GetConversation(ctx, conv.ID, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.AppendMessage(ctx, conv.ID, "bob", models.NewUserMessage("hi", "t")), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID, "bob"), store.ErrNotFound)

	list, err := s.ListConversations(ctx, "bob", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		conv, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "carol", Title: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
		ids = append(ids, conv.ID)
	}

	list, err := s.ListConversations(ctx, "carol", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID, "newest first")
	assert.Equal(t, ids[0], list[2].ID)

	page, err := s.ListConversations(ctx, "carol", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func testListPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "erin", Title: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
	}

	full, err := s.ListConversations(ctx, "erin", 100, 0)
	require.NoError(t, err)
	require.Len(t, full, 7)

	seen := make(map[uuid.UUID]bool)
	var paged []uuid.UUID
	for offset := 0; offset < len(full); offset += 2 {
		page, err := s.ListConversations(ctx, "erin", 2, offset)
		require.NoError(t, err)
		for _, c := range page {
			assert.False(t, seen[c.ID], "conversation %s repeated across pages", c.ID)
			seen[c.ID] = true
			paged = append(paged, c.ID)
		}
	}
	require.Len(t, paged, len(full))
	for i, c := range full {
		assert.Equal(t, c.ID, paged[i])
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{Owner: "dave"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID, "dave"))
	_, err = s.GetConversation(ctx, conv.ID, "dave")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID, "dave"), store.ErrNotFound)
}

func testRejectsInvalid(t *testing.T, s store.Store) {
	ctx := context.Background()
	bad := models.NewChatMessage("system", "You are helpful.", "t")

	_, err := s.CreateConversation(ctx, store.CreateConversationParams{Messages: []models.ChatMessageData{bad}})
	assert.ErrorIs(t, err, models.ErrValidation)

	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.AppendMessage(ctx, conv.ID, "", bad), models.ErrValidation)
	assert.ErrorIs(t, s.AppendMessage(ctx, conv.ID, "", models.NewUserMessage("hi", "")), models.ErrValidation)

	got, err := s.GetConversation(ctx, conv.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func testConcurrentAppends(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, store.CreateConversationParams{})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendMessage(ctx, conv.ID, "", models.NewUserMessage(fmt.Sprintf("m%d", i), "t"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetConversation(ctx, conv.ID, "")
	require.NoError(t, err)
	assert.Len(t, got.Messages, n, "no append may be lost")
}
