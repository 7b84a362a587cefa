package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/services"
	"ragchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationService defines the interface expected from the chat service.
type ConversationService interface {
	StartConversation(ctx context.Context, owner string, title, initialQuestion *string) (*models.ConversationResponse, error)
	GetConversation(ctx context.Context, owner string, id uuid.UUID) (*models.ConversationResponse, error)
	ListConversations(ctx context.Context, owner string, limit, offset int) (*models.ListConversationsResponse, error)
	AddMessage(ctx context.Context, owner string, id uuid.UUID, msg models.ChatMessageData) (*models.ConversationResponse, error)
	ReplaceMessage(ctx context.Context, owner string, id uuid.UUID, index int, msg models.ChatMessageData) (*models.ConversationResponse, error)
	Ask(ctx context.Context, owner string, id uuid.UUID, question string) (*models.AskResponse, error)
	DeleteConversation(ctx context.Context, owner string, id uuid.UUID) error
}

var _ ConversationService = (*services.ChatService)(nil)

// ConversationHandlers handles HTTP requests related to conversations.
type ConversationHandlers struct {
	service ConversationService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(service ConversationService) *ConversationHandlers {
	return &ConversationHandlers{
		service: service,
	}
}

// HandleCreateConversation handles POST /v1/conversations
func (h *ConversationHandlers) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	var req models.CreateConversationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.service.StartConversation(r.Context(), owner, req.Title, req.InitialMessage)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleCreateConversation for owner %q: %v", owner, err)
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleListConversations handles GET /v1/conversations
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid limit parameter")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid offset parameter")
		return
	}

	resp, err := h.service.ListConversations(r.Context(), owner, limit, offset)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleListConversations for owner %q: %v", owner, err)
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleGetConversation handles GET /v1/conversations/{conversationID}
func (h *ConversationHandlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	id, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetConversation(r.Context(), owner, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleDeleteConversation handles DELETE /v1/conversations/{conversationID}
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	id, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteConversation(r.Context(), owner, id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAddMessage handles POST /v1/conversations/{conversationID}/messages
// The body is a single turn, checked against the message contract before it is stored.
func (h *ConversationHandlers) HandleAddMessage(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	id, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	msg, ok := readMessage(w, r)
	if !ok {
		return
	}

	resp, err := h.service.AddMessage(r.Context(), owner, id, msg)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleReplaceMessage handles PUT /v1/conversations/{conversationID}/messages/{index}
func (h *ConversationHandlers) HandleReplaceMessage(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	id, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid message index")
		return
	}

	msg, ok := readMessage(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ReplaceMessage(r.Context(), owner, id, index, msg)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleAsk handles POST /v1/conversations/{conversationID}/ask
func (h *ConversationHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	id, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.service.Ask(r.Context(), owner, id, req.Text())
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleAsk for conversation %s: %v", id, err)
		respondServiceError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// readMessage reads and boundary-validates a single turn from the request body.
// On failure the error response has already been written.
func readMessage(w http.ResponseWriter, r *http.Request) (models.ChatMessageData, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		} else {
			httputil.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		}
		return models.ChatMessageData{}, false
	}

	msg, err := models.ParseChatMessage(body)
	if err != nil {
		if !httputil.RespondInvalidMessage(w, err) {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		}
		return models.ChatMessageData{}, false
	}
	return msg, true
}
