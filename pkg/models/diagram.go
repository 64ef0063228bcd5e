package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Chat
// ============================================================================

// ChatRole is the sender role of a diagram chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// IsValidChatRole checks if the given role is valid.
func IsValidChatRole(r ChatRole) bool {
	return r == ChatRoleUser || r == ChatRoleAssistant || r == ChatRoleSystem
}

// ChatMessage is one turn of the diagram's AI conversation.
// Ts is epoch milliseconds.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	Ts      int64    `json:"ts"`
}

// NewChatMessage builds a message stamped with the current time.
func NewChatMessage(role ChatRole, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content, Ts: time.Now().UnixMilli()}
}

// ChatHistoryLimit bounds a diagram's stored chat history. Older messages
// are discarded on write, most recent kept.
const ChatHistoryLimit = 100

// TrimChat returns the most recent ChatHistoryLimit messages.
func TrimChat(chat []ChatMessage) []ChatMessage {
	if len(chat) <= ChatHistoryLimit {
		return chat
	}
	return chat[len(chat)-ChatHistoryLimit:]
}

// ============================================================================
// Diagram
// ============================================================================

// DiagramTypePattern constrains the diagram type slug.
var DiagramTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// MaxDiagramTypeLen is the maximum length of the type slug.
const MaxDiagramTypeLen = 32

// IsValidDiagramType reports whether t is an acceptable type slug.
func IsValidDiagramType(t string) bool {
	return len(t) <= MaxDiagramTypeLen && DiagramTypePattern.MatchString(t)
}

// Diagram is the aggregate root. Exactly one of UserID or OwnerAnonID is
// set. Version is the optimistic-concurrency counter: every successful
// write increments it, and a write conditioned on a stale version is
// rejected without touching stored state.
type Diagram struct {
	ID          uuid.UUID     `json:"id"`
	PublicID    string        `json:"publicId"`
	Title       string        `json:"title"`
	Type        string        `json:"type"`
	Prompt      string        `json:"prompt,omitempty"`
	Model       string        `json:"model,omitempty"`
	Nodes       []Node        `json:"nodes"`
	Edges       []Edge        `json:"edges"`
	Chat        []ChatMessage `json:"chat"`
	Version     int64         `json:"version"`
	UserID      *string       `json:"userId,omitempty"`
	OwnerAnonID *string       `json:"ownerAnonId,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Graph returns the diagram's node/edge pair as a Graph value.
func (d *Diagram) Graph() *Graph {
	return &Graph{Nodes: d.Nodes, Edges: d.Edges}
}

// Owner identifies who a request acts as: an authenticated user or an
// anonymous guest. Exactly one side is set.
type Owner struct {
	UserID string
	AnonID string
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool { return o.UserID != "" }

// Valid reports whether exactly one identity side is present.
func (o Owner) Valid() bool {
	return (o.UserID != "") != (o.AnonID != "")
}

// DiagramPatch is the field set applied by a version-conditioned update.
// Nil members are left untouched.
type DiagramPatch struct {
	Title  *string
	Type   *string
	Prompt *string
	Model  *string
	Nodes  []Node
	Edges  []Edge
	Chat   []ChatMessage
}
