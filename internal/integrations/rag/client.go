// Package rag talks to the upstream retrieval-augmented answer endpoint.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"ragchat-backend/internal/models"
	"ragchat-backend/internal/services"
)

// Compile-time check to ensure Client implements services.Responder
var _ services.Responder = (*Client)(nil)

const maxResponseBytes = 4 << 20

// ErrEmptyReply is returned when the endpoint answers without any reply text.
var ErrEmptyReply = errors.New("upstream returned an empty reply")

// Client posts questions to the answer endpoint.
type Client struct {
	url        string
	topK       int
	httpClient *http.Client
}

// NewClient creates a client for the endpoint at url. topK is forwarded as the retrieval depth.
func NewClient(url string, topK int, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		topK: topK,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Message string `json:"message"`
	K       int    `json:"k,omitempty"`
}

// chatResponse is the endpoint's answer. Category answers carry no used_rag key.
type chatResponse struct {
	Type     string          `json:"type"`
	Reply    *string         `json:"reply"`
	Contexts json.RawMessage `json:"contexts"`
	UsedRAG  bool            `json:"used_rag"`
	Category string          `json:"category,omitempty"`
}

// Respond asks the endpoint about question. The endpoint keeps no conversation state, so history is only logged.
func (c *Client) Respond(ctx context.Context, question string, history []models.ChatMessageData) (services.Answer, error) {
	payload, err := json.Marshal(chatRequest{Message: question, K: c.topK})
	if err != nil {
		return services.Answer{}, fmt.Errorf("failed to marshal rag request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return services.Answer{}, fmt.Errorf("failed to create rag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Answer{}, fmt.Errorf("rag request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return services.Answer{}, fmt.Errorf("failed reading rag response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Answer{}, fmt.Errorf("rag non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return services.Answer{}, fmt.Errorf("failed to parse rag response: %s", truncate(string(body), 400))
	}
	if parsed.Reply == nil || *parsed.Reply == "" {
		return services.Answer{}, ErrEmptyReply
	}

	answer := services.Answer{Reply: *parsed.Reply, UsedRAG: parsed.UsedRAG}
	if parsed.UsedRAG {
		contexts, err := models.ParseContexts(parsed.Contexts)
		if err != nil {
			return services.Answer{}, fmt.Errorf("rag response contexts: %w", err)
		}
		answer.Contexts = contexts
	}

	log.Printf("[RAGClient] type=%s category=%q used_rag=%t contexts=%d history=%d took=%s",
		parsed.Type, parsed.Category, answer.UsedRAG, len(answer.Contexts), len(history), time.Since(start).Round(time.Millisecond))
	return answer, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
