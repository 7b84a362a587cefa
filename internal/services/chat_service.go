package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrEmptyQuestion is returned by Ask when the question has no text.
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrNoResponder is returned by Ask when no answer backend is configured.
	ErrNoResponder = errors.New("no responder configured")
	// ErrResponderFailed wraps any failure reported by the answer backend.
	ErrResponderFailed = errors.New("responder failed")
)

const (
	defaultTitle    = "New conversation"
	maxDerivedTitle = 60
)

// Answer is what a Responder produces for one question.
type Answer struct {
	Reply    string
	Contexts []models.Context // Meaningful only when UsedRAG is set
	UsedRAG  bool
}

// Responder produces an assistant reply for a question given the conversation so far.
type Responder interface {
	Respond(ctx context.Context, question string, history []models.ChatMessageData) (Answer, error)
}

// ChatService handles conversation business logic.
type ChatService struct {
	store     store.Store
	responder Responder
	now       func() time.Time
}

// NewChatService creates a new ChatService. responder may be nil, in which case Ask fails with ErrNoResponder.
func NewChatService(store store.Store, responder Responder) *ChatService {
	return &ChatService{
		store:     store,
		responder: responder,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to stamp new turns.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

func (s *ChatService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// mapConversationToResponse converts a stored conversation to an API response DTO.
func mapConversationToResponse(conv *models.Conversation) *models.ConversationResponse {
	messages := conv.Messages
	if messages == nil {
		messages = []models.ChatMessageData{}
	}
	return &models.ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

// StartConversation creates a conversation, optionally seeded with a first user turn.
func (s *ChatService) StartConversation(ctx context.Context, owner string, title, initialQuestion *string) (*models.ConversationResponse, error) {
	var messages []models.ChatMessageData
	question := ""
	if initialQuestion != nil {
		question = strings.TrimSpace(*initialQuestion)
	}
	if question != "" {
		messages = append(messages, models.NewUserMessage(question, s.timestamp()))
	}

	params := store.CreateConversationParams{
		ID:       uuid.New(),
		Owner:    owner,
		Title:    conversationTitle(title, question),
		Messages: messages,
	}

	conv, err := s.store.CreateConversation(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation in store: %w", err)
	}

	log.Printf("[ChatService] Started conversation %s for owner %q", conv.ID, owner)
	return mapConversationToResponse(conv), nil
}

// GetConversation retrieves a specific conversation by its ID.
func (s *ChatService) GetConversation(ctx context.Context, owner string, id uuid.UUID) (*models.ConversationResponse, error) {
	conv, err := s.store.GetConversation(ctx, id, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err // Propagate not found error
		}
		return nil, fmt.Errorf("failed to get conversation from store: %w", err)
	}
	return mapConversationToResponse(conv), nil
}

// ListConversations retrieves the owner's conversations, newest first.
func (s *ChatService) ListConversations(ctx context.Context, owner string, limit, offset int) (*models.ListConversationsResponse, error) {
	// Set reasonable defaults for limit and offset
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	convs, err := s.store.ListConversations(ctx, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations from store: %w", err)
	}

	resp := make([]models.ConversationResponse, 0, len(convs))
	for i := range convs {
		resp = append(resp, *mapConversationToResponse(&convs[i]))
	}
	return &models.ListConversationsResponse{Conversations: resp}, nil
}

// AddMessage appends an already-formed turn of either role.
func (s *ChatService) AddMessage(ctx context.Context, owner string, id uuid.UUID, msg models.ChatMessageData) (*models.ConversationResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.AppendMessage(ctx, id, owner, msg); err != nil {
		return nil, fmt.Errorf("failed to add message to conversation: %w", err)
	}
	return s.GetConversation(ctx, owner, id)
}

// ReplaceMessage swaps the turn at index for msg.
func (s *ChatService) ReplaceMessage(ctx context.Context, owner string, id uuid.UUID, index int, msg models.ChatMessageData) (*models.ConversationResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceMessage(ctx, id, owner, index, msg); err != nil {
		return nil, fmt.Errorf("failed to replace message %d: %w", index, err)
	}
	return s.GetConversation(ctx, owner, id)
}

// Ask records question as a user turn, asks the responder, and records its reply as an assistant turn.
// The reply carries contexts only when the responder used retrieval; a retrieval that found
// nothing yields a present but empty list.
func (s *ChatService) Ask(ctx context.Context, owner string, id uuid.UUID, question string) (*models.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.responder == nil {
		return nil, ErrNoResponder
	}

	conv, err := s.store.GetConversation(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	userMessage := models.NewUserMessage(question, s.timestamp())
	if err := s.store.AppendMessage(ctx, id, owner, userMessage); err != nil {
		return nil, fmt.Errorf("failed to add user message to conversation: %w", err)
	}

	answer, err := s.responder.Respond(ctx, question, conv.Messages)
	if err != nil {
		log.Printf("ERROR [ChatService] Ask: Responder failed for conversation %s: %v", id, err)
		return nil, fmt.Errorf("%w: %w", ErrResponderFailed, err)
	}

	assistantMessage := models.NewAssistantMessage(answer.Reply, s.timestamp())
	if answer.UsedRAG {
		assistantMessage = assistantMessage.WithContexts(answer.Contexts)
	}
	if err := s.store.AppendMessage(ctx, id, owner, assistantMessage); err != nil {
		return nil, fmt.Errorf("failed to add assistant message to conversation: %w", err)
	}

	log.Printf("[ChatService] Answered in conversation %s (used_rag=%t, contexts=%d)", id, answer.UsedRAG, len(assistantMessage.ContextList()))
	return &models.AskResponse{
		ConversationID: id,
		Question:       userMessage,
		Answer:         assistantMessage,
		UsedRAG:        answer.UsedRAG,
	}, nil
}

// DeleteConversation removes a conversation and its turns.
func (s *ChatService) DeleteConversation(ctx context.Context, owner string, id uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, id, owner); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func conversationTitle(title *string, question string) string {
	if title != nil && strings.TrimSpace(*title) != "" {
		return strings.TrimSpace(*title)
	}
	if question == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(question) <= maxDerivedTitle {
		return question
	}
	runes := []rune(question)
	return string(runes[:maxDerivedTitle]) + "…"
}
