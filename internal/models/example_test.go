package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// These examples mirror the reference turns exchanged between the chat UI and the backend.

func ExampleNewUserMessage() {
	m := NewUserMessage("What is the capital of France?", "2024-01-01T00:00:00Z")

	data, _ := json.Marshal(m)
	fmt.Println(string(data))
	// Output: {"role":"user","content":"What is the capital of France?","timestamp":"2024-01-01T00:00:00Z"}
}

func ExampleChatMessageData_WithContexts() {
	m := NewAssistantMessage("Paris.", "2024-01-01T00:00:01Z").WithContexts([]Context{
		NewContext(WithTitle("France"), WithURL("https://en.wikipedia.org/wiki/France"), WithChunkID(3)),
	})

	data, _ := json.Marshal(m)
	fmt.Println(string(data))
	// Output: {"role":"assistant","content":"Paris.","timestamp":"2024-01-01T00:00:01Z","contexts":[{"title":"France","url":"https://en.wikipedia.org/wiki/France","chunk_id":3}]}
}

func ExampleParseChatMessage() {
	_, err := ParseChatMessage([]byte(`{"role":"system","content":"...","timestamp":"..."}`))

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		fmt.Println(vErr.Field)
	}
	fmt.Println(errors.Is(err, ErrValidation))
	// Output:
	// role
	// true
}
