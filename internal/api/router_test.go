package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ragchat-backend/internal/auth"
	"ragchat-backend/internal/config"
	"ragchat-backend/internal/handlers"
	"ragchat-backend/internal/models"
	"ragchat-backend/internal/services"
	"ragchat-backend/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResponder struct {
	answer services.Answer
	err    error
}

func (s stubResponder) Respond(context.Context, string, []models.ChatMessageData) (services.Answer, error) {
	return s.answer, s.err
}

func newTestRouter(t *testing.T, cfg *config.Config, responder services.Responder) http.Handler {
	t.Helper()
	return newTestRouterAt(t, filepath.Join(t.TempDir(), "api.db"), cfg, responder)
}

func newTestRouterAt(t *testing.T, dbPath string, cfg *config.Config, responder services.Responder) http.Handler {
	t.Helper()
	s, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := services.NewChatService(s, responder)
	return NewRouter(RouterDependencies{
		ConversationHandler: handlers.NewConversationHandlers(svc),
		Config:              cfg,
	})
}

func openConfig() *config.Config {
	return &config.Config{AllowedOrigins: []string{"*"}}
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createConversation(t *testing.T, h http.Handler, header http.Header) models.ConversationResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/conversations", `{"title":"test"}`, header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.ConversationResponse](t, rec)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, openConfig(), nil)
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConversationLifecycle(t *testing.T) {
	h := newTestRouter(t, openConfig(), nil)

	rec := do(t, h, http.MethodPost, "/v1/conversations", `{"initial_message":"What is the capital of France?"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[models.ConversationResponse](t, rec)
	require.Len(t, conv.Messages, 1)
	base := "/v1/conversations/" + conv.ID.String()

	rec = do(t, h, http.MethodPost, base+"/messages",
		`{"role":"assistant","content":"Paris.","timestamp":"2024-01-01T00:00:01Z","contexts":[{"title":"France","url":"https://en.wikipedia.org/wiki/France","chunk_id":3}]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/messages", `{"role":"assistant","content":"","timestamp":"2024-01-01T00:00:02Z","contexts":[]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contexts":[{"title":"France","url":"https://en.wikipedia.org/wiki/France","chunk_id":3}]`)
	assert.Contains(t, rec.Body.String(), `"content":"","timestamp":"2024-01-01T00:00:02Z","contexts":[]`)
	got := decode[models.ConversationResponse](t, rec)
	require.Len(t, got.Messages, 3)
	assert.False(t, got.Messages[0].HasContexts())

	rec = do(t, h, http.MethodPut, base+"/messages/2", `{"role":"assistant","content":"Paris, France.","timestamp":"2024-01-01T00:00:03Z"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[models.ConversationResponse](t, rec)
	assert.Equal(t, "Paris, France.", got.Messages[2].Content)
	assert.False(t, got.Messages[2].HasContexts())

	rec = do(t, h, http.MethodPut, base+"/messages/7", `{"role":"assistant","content":"x","timestamp":"t"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPut, base+"/messages/-1", `{"role":"assistant","content":"x","timestamp":"t"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/conversations?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.ListConversationsResponse](t, rec).Conversations, 1)
	rec = do(t, h, http.MethodGet, "/v1/conversations?limit=ten", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMessage_BoundaryValidation(t *testing.T) {
	h := newTestRouter(t, openConfig(), nil)
	base := "/v1/conversations/" + createConversation(t, h, nil).ID.String()

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
		wantIndex *int
	}{
		{name: "unknown role", body: `{"role":"system","content":"You are helpful.","timestamp":"t"}`, wantCode: http.StatusBadRequest, wantField: "role"},
		{name: "missing timestamp", body: `{"role":"user","content":"hi"}`, wantCode: http.StatusBadRequest, wantField: "timestamp"},
		{name: "not an object", body: `["user","hi"]`, wantCode: http.StatusBadRequest},
		{name: "contexts not a list", body: `{"role":"assistant","content":"x","timestamp":"t","contexts":{"title":"x"}}`, wantCode: http.StatusUnprocessableEntity, wantField: "contexts"},
		{name: "chunk id wrong type", body: `{"role":"assistant","content":"x","timestamp":"t","contexts":[{},{"chunk_id":"three"}]}`, wantCode: http.StatusUnprocessableEntity, wantField: "chunk_id", wantIndex: intPtr(1)},
		{name: "entry not an object", body: `{"role":"assistant","content":"x","timestamp":"t","contexts":["France"]}`, wantCode: http.StatusUnprocessableEntity, wantField: "contexts", wantIndex: intPtr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, base+"/messages", tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			resp := decode[models.ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.wantField, resp.Field)
			assert.Equal(t, tt.wantIndex, resp.Index)
		})
	}

	rec := do(t, h, http.MethodGet, base, "", nil)
	assert.Empty(t, decode[models.ConversationResponse](t, rec).Messages, "rejected turns are not stored")
}

func TestAsk(t *testing.T) {
	citations := []models.Context{models.NewContext(models.WithTitle("학사안내"), models.WithChunkID(0))}

	t.Run("records both turns", func(t *testing.T) {
		h := newTestRouter(t, openConfig(), stubResponder{answer: services.Answer{Reply: "포털에서 신청하세요.", Contexts: citations, UsedRAG: true}})
		base := "/v1/conversations/" + createConversation(t, h, nil).ID.String()

		rec := do(t, h, http.MethodPost, base+"/ask", `{"question":"수강신청 방법?"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decode[models.AskResponse](t, rec)
		assert.True(t, resp.UsedRAG)
		assert.Equal(t, "수강신청 방법?", resp.Question.Content)
		assert.Equal(t, citations, resp.Answer.ContextList())

		rec = do(t, h, http.MethodGet, base, "", nil)
		assert.Len(t, decode[models.ConversationResponse](t, rec).Messages, 2)
	})

	t.Run("without retrieval the answer has no contexts key", func(t *testing.T) {
		h := newTestRouter(t, openConfig(), stubResponder{answer: services.Answer{Reply: "안녕하세요"}})
		base := "/v1/conversations/" + createConversation(t, h, nil).ID.String()

		rec := do(t, h, http.MethodPost, base+"/ask", `{"message":"안녕"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), `"contexts"`)
	})

	tests := []struct {
		name      string
		responder services.Responder
		body      string
		wantCode  int
	}{
		{name: "no responder", responder: nil, body: `{"message":"hi"}`, wantCode: http.StatusServiceUnavailable},
		{name: "upstream failure", responder: stubResponder{err: errors.New("timeout")}, body: `{"message":"hi"}`, wantCode: http.StatusBadGateway},
		{name: "upstream malformed citation", responder: stubResponder{err: &models.MalformedContextError{Index: 0, Err: errors.New("bad")}}, body: `{"message":"hi"}`, wantCode: http.StatusBadGateway},
		{name: "empty question", responder: stubResponder{}, body: `{"message":"  "}`, wantCode: http.StatusBadRequest},
		{name: "bad json", responder: stubResponder{}, body: `{"message":`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, openConfig(), tt.responder)
			base := "/v1/conversations/" + createConversation(t, h, nil).ID.String()
			rec := do(t, h, http.MethodPost, base+"/ask", tt.body, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestNotFoundAndBadIDs(t *testing.T) {
	h := newTestRouter(t, openConfig(), nil)

	rec := do(t, h, http.MethodGet, "/v1/conversations/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/conversations/00000000-0000-0000-0000-000000000001/messages", `{"role":"user","content":"hi","timestamp":"t"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}, JWTSecret: "secret"}
	h := newTestRouter(t, cfg, nil)

	rec := do(t, h, http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/conversations", "", http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := auth.NewAccessToken("alice", "secret", -time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/v1/conversations", "", http.Header{"Authorization": {"Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	aliceToken, err := auth.NewAccessToken("alice", "secret", time.Hour)
	require.NoError(t, err)
	bobToken, err := auth.NewAccessToken("bob", "secret", time.Hour)
	require.NoError(t, err)
	alice := http.Header{"Authorization": {"Bearer " + aliceToken}}
	bob := http.Header{"Authorization": {"Bearer " + bobToken}}

	conv := createConversation(t, h, alice)

	rec = do(t, h, http.MethodGet, "/v1/conversations/"+conv.ID.String(), "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/v1/conversations/"+conv.ID.String(), "", bob)
	assert.Equal(t, http.StatusNotFound, rec.Code, "conversations are scoped to the token subject")

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	h := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/conversations", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorruptStoredConversation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "api.db")
	h := newTestRouterAt(t, dbPath, openConfig(), nil)
	conv := createConversation(t, h, nil)
	base := "/v1/conversations/" + conv.ID.String()

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE conversations SET messages = ? WHERE id = ?`,
		`[{"role":"system","content":"You are helpful.","timestamp":"t"}]`, conv.ID.String())
	require.NoError(t, err)

	for _, tc := range []struct {
		name, method, path, body string
	}{
		{"get", http.MethodGet, base, ""},
		{"list", http.MethodGet, "/v1/conversations", ""},
		{"append valid turn", http.MethodPost, base + "/messages", `{"role":"user","content":"hi","timestamp":"t"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body, nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), `"field"`)
			assert.NotContains(t, rec.Body.String(), "role")
		})
	}
}

func TestAddMessage_BodyTooLarge(t *testing.T) {
	h := newTestRouter(t, openConfig(), nil)
	base := "/v1/conversations/" + createConversation(t, h, nil).ID.String()

	big := `{"role":"user","content":"` + strings.Repeat("a", 1<<20) + `","timestamp":"t"}`
	rec := do(t, h, http.MethodPost, base+"/messages", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, RequestTimeout(&config.Config{}))
	assert.Equal(t, 120*time.Second+requestTimeoutHeadroom, RequestTimeout(&config.Config{RAGTimeout: 120 * time.Second}))
	assert.Greater(t, RequestTimeout(&config.Config{RAGTimeout: 90 * time.Second}), 90*time.Second)
}

func intPtr(i int) *int { return &i }
