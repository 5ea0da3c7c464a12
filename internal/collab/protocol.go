// Package collab implements the collaboration channel: the envelope protocol,
// the presence, chat and document stores, and the server hub that fans
// session events out to connected sockets.
package collab

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"quantum-dashboard/internal/model"
)

type MessageType string

// Server to client.
const (
	TypeConnectionEstablished MessageType = "connection_established"
	TypeSessionJoined         MessageType = "session_joined"
	TypeUserJoined            MessageType = "user_joined"
	TypeUserLeft              MessageType = "user_left"
	TypeChatMessageReceived   MessageType = "chat_message_received"
	TypeCodeEditApplied       MessageType = "code_edit_applied"
	TypeCursorUpdated         MessageType = "cursor_updated"
	TypeTypingUpdated         MessageType = "typing_updated"
	TypeEditRejected          MessageType = "edit_rejected"
	TypePong                  MessageType = "pong"
	TypeError                 MessageType = "error"
)

// Client to server.
const (
	TypeChatMessage  MessageType = "chat_message"
	TypeCodeEdit     MessageType = "code_edit"
	TypeCursorUpdate MessageType = "cursor_update"
	TypeTyping       MessageType = "typing"
	TypePing         MessageType = "ping"
)

// Error frame codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnsupportedType = "unsupported_type"
	ErrCodeMessageTooLong  = "message_too_long"
	ErrCodeEditRejected    = "edit_rejected"
)

const ChatTypeText = "text"

type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Participant struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Cursor       *Cursor    `json:"cursor,omitempty"`
	IsTyping     bool       `json:"isTyping,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

type ChatMessage struct {
	ID          string          `json:"id"`
	ChannelID   string          `json:"channelId"`
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName"`
	Content     string          `json:"content"`
	Type        string          `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

type DocumentState struct {
	Content string `json:"content"`
	Version int    `json:"version"`
}

// Edit is a single operation made against BaseVersion of the document.
// In code_edit_applied frames Op is already rebased onto the current document
// and BaseVersion is the version it was applied to.
type Edit struct {
	Op          Operation `json:"op"`
	BaseVersion int       `json:"baseVersion"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the one JSON frame shape exchanged over the socket. Type selects
// which of the optional fields are meaningful.
type Envelope struct {
	Type         MessageType    `json:"type"`
	SessionID    string         `json:"sessionId,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	ConnectionID string         `json:"connectionId,omitempty"`
	Participants []Participant  `json:"participants,omitempty"`
	User         *Participant   `json:"user,omitempty"`
	Message      *ChatMessage   `json:"message,omitempty"`
	Messages     []ChatMessage  `json:"messages,omitempty"`
	Document     *DocumentState `json:"document,omitempty"`
	Edit         *Edit          `json:"edit,omitempty"`
	Cursor       *Cursor        `json:"cursor,omitempty"`
	IsTyping     *bool          `json:"isTyping,omitempty"`
	Content      string         `json:"content,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Error        *ErrorPayload  `json:"error,omitempty"`
}

func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}

func Encode(env Envelope) ([]byte, error) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return json.Marshal(env)
}

func ChatFromModel(m model.ChatMessage) ChatMessage {
	return ChatMessage{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		UserID:      m.UserID,
		UserName:    m.UserName,
		Content:     m.Content,
		Type:        m.Type,
		Timestamp:   m.SentAt,
		Attachments: json.RawMessage(m.Attachments),
	}
}

func (c ChatMessage) Model() model.ChatMessage {
	return model.ChatMessage{
		ID:          c.ID,
		ChannelID:   c.ChannelID,
		UserID:      c.UserID,
		UserName:    c.UserName,
		Content:     c.Content,
		Type:        c.Type,
		Attachments: datatypes.JSON(c.Attachments),
		SentAt:      c.Timestamp,
	}
}
