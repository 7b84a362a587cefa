package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"ragchat-backend/internal/auth"
	"ragchat-backend/internal/services"
	"ragchat-backend/internal/store"
	"ragchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// ownerFromRequest returns the authenticated owner, or "" when auth is disabled.
func ownerFromRequest(r *http.Request) string {
	owner, _ := auth.GetOwnerFromContext(r.Context())
	return owner
}

// conversationIDFromRequest parses the {conversationID} URL parameter, writing a 400 on failure.
func conversationIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// respondServiceError maps service and store errors to HTTP statuses.
// A responder failure is reported as 502 even when it wraps a malformed upstream turn.
// A corrupt stored row is a server fault and never blames the request.
func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrCorruptRecord) {
		log.Printf("ERROR [ConversationHandler] Corrupt stored conversation: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Stored conversation is corrupt")
		return
	}
	if !errors.Is(err, services.ErrResponderFailed) && httputil.RespondInvalidMessage(w, err) {
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, store.ErrIndexOutOfRange):
		httputil.RespondError(w, http.StatusNotFound, "Message index out of range")
	case errors.Is(err, services.ErrEmptyQuestion):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoResponder):
		httputil.RespondError(w, http.StatusServiceUnavailable, "Answering is not configured")
	case errors.Is(err, services.ErrResponderFailed):
		httputil.RespondError(w, http.StatusBadGateway, "Upstream answer service failed")
	default:
		log.Printf("ERROR [ConversationHandler] Unhandled service error: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
