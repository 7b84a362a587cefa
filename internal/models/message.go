package models

// Role identifies who produced a turn. Only RoleUser and RoleAssistant exist.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Context is one retrieved source fragment cited by an assistant reply.
// Every field is optional; a nil pointer means the field is absent.
type Context struct {
	Title   *string `json:"title,omitempty"`    // Human-readable label of the source document
	URL     *string `json:"url,omitempty"`      // Locator for the source, if retrievable externally
	MetaID  *string `json:"meta_id,omitempty"`  // Key of the source record in the store that produced it
	ChunkID *int    `json:"chunk_id,omitempty"` // Ordinal of the fragment within its source document
}

// ContextOption sets one field of a Context under construction.
type ContextOption func(*Context)

func WithTitle(title string) ContextOption {
	return func(c *Context) { c.Title = &title }
}

func WithURL(url string) ContextOption {
	return func(c *Context) { c.URL = &url }
}

func WithMetaID(metaID string) ContextOption {
	return func(c *Context) { c.MetaID = &metaID }
}

func WithChunkID(chunkID int) ContextOption {
	return func(c *Context) { c.ChunkID = &chunkID }
}

// NewContext builds a citation from any subset of its fields, including none.
func NewContext(opts ...ContextOption) Context {
	var c Context
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// IsEmpty reports whether every field is absent.
func (c Context) IsEmpty() bool {
	return c.Title == nil && c.URL == nil && c.MetaID == nil && c.ChunkID == nil
}

// Equal compares two citations field by field, treating absent and present as different.
func (c Context) Equal(other Context) bool {
	return equalPtr(c.Title, other.Title) &&
		equalPtr(c.URL, other.URL) &&
		equalPtr(c.MetaID, other.MetaID) &&
		equalPtr(c.ChunkID, other.ChunkID)
}

// clone returns a copy that shares no pointers with c.
func (c Context) clone() Context {
	return Context{
		Title:   clonePtr(c.Title),
		URL:     clonePtr(c.URL),
		MetaID:  clonePtr(c.MetaID),
		ChunkID: clonePtr(c.ChunkID),
	}
}

// ChatMessageData is a single turn in a conversation.
// This structure is what gets stored in the JSON messages array of a conversation.
//
// Contexts has three states: nil (no retrieval attempted or relevant),
// pointer to an empty slice (retrieval ran and found nothing) and
// pointer to a non-empty slice (citations in display order).
type ChatMessageData struct {
	Role      Role       `json:"role"`               // "user" or "assistant"
	Content   string     `json:"content"`            // The message body
	Timestamp string     `json:"timestamp"`          // Opaque; producers and consumers agree on the format
	Contexts  *[]Context `json:"contexts,omitempty"` // Optional citations backing an assistant reply
}

// NewChatMessage builds a turn without citations.
func NewChatMessage(role Role, content, timestamp string) ChatMessageData {
	return ChatMessageData{
		Role:      role,
		Content:   content,
		Timestamp: timestamp,
	}
}

// NewUserMessage builds a user turn.
func NewUserMessage(content, timestamp string) ChatMessageData {
	return NewChatMessage(RoleUser, content, timestamp)
}

// NewAssistantMessage builds an assistant turn with no citation list.
// Use WithContexts to attach one.
func NewAssistantMessage(content, timestamp string) ChatMessageData {
	return NewChatMessage(RoleAssistant, content, timestamp)
}

// WithContexts returns a copy of m carrying a deep copy of contexts.
// A nil slice yields a present-but-empty list, never an absent one.
func (m ChatMessageData) WithContexts(contexts []Context) ChatMessageData {
	list := make([]Context, len(contexts))
	for i, c := range contexts {
		list[i] = c.clone()
	}
	m.Contexts = &list
	return m
}

// WithoutContexts returns a copy of m with the citation list absent.
func (m ChatMessageData) WithoutContexts() ChatMessageData {
	m.Contexts = nil
	return m
}

// HasContexts reports whether the citation list is present, even if empty.
func (m ChatMessageData) HasContexts() bool {
	return m.Contexts != nil
}

// ContextList returns a copy of the citations, or nil when the list is absent.
func (m ChatMessageData) ContextList() []Context {
	if m.Contexts == nil {
		return nil
	}
	list := make([]Context, len(*m.Contexts))
	for i, c := range *m.Contexts {
		list[i] = c.clone()
	}
	return list
}

// Clone returns a copy of m that shares no citation storage with it.
func (m ChatMessageData) Clone() ChatMessageData {
	if m.Contexts == nil {
		return m
	}
	return m.WithContexts(*m.Contexts)
}

// Equal compares two turns structurally, including the presence of the citation list.
func (m ChatMessageData) Equal(other ChatMessageData) bool {
	if m.Role != other.Role || m.Content != other.Content || m.Timestamp != other.Timestamp {
		return false
	}
	if (m.Contexts == nil) != (other.Contexts == nil) {
		return false
	}
	if m.Contexts == nil {
		return true
	}
	a, b := *m.Contexts, *other.Contexts
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
