package collab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/realtime"
)

var (
	ErrSessionNotFound = errors.New("collaboration session not found")
	ErrHubClosed       = errors.New("collaboration hub closed")
)

// SessionStore loads and snapshots the persistent side of a session.
type SessionStore interface {
	GetSessionByCode(ctx context.Context, code string) (*model.Session, error)
	RecentMessages(ctx context.Context, code string, limit int) ([]model.ChatMessage, error)
	SaveDocument(ctx context.Context, code, content string, version int) error
}

// ChatSink receives every accepted chat message for persistence.
type ChatSink interface {
	RecordChatMessage(ctx context.Context, msg model.ChatMessage) error
}

type HubConfig struct {
	ChatHistoryLimit int
	EditHistoryLimit int
	MaxMessageRunes  int
}

// Client identifies the user behind a socket.
type Client struct {
	UserID    string
	UserName  string
	ProjectID string
}

// Member is one socket joined to a room.
type Member struct {
	room   *Room
	m      *member
	client Client
}

func (m *Member) Room() *Room {
	return m.room
}

type Hub struct {
	store  SessionStore
	sink   ChatSink
	cfg    HubConfig
	logger *slog.Logger
	now    func() time.Time

	// mu guards the maps only; store calls run without it.
	mu     sync.Mutex
	rooms  map[string]*Room
	conns  map[string]*realtime.Connection
	closed bool
	// saving holds the rooms dropped with an unsaved document until the
	// write lands, so a rejoin does not load the stale copy.
	saving map[string]chan struct{}
	// evictions counts dropped rooms; a load that raced one is retried.
	evictions uint64
}

func NewHub(store SessionStore, sink ChatSink, cfg HubConfig, logger *slog.Logger) *Hub {
	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 200
	}
	if cfg.EditHistoryLimit <= 0 {
		cfg.EditHistoryLimit = 500
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = 4000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:  store,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With("component", "collab_hub"),
		now:    func() time.Time { return time.Now().UTC() },
		rooms:  make(map[string]*Room),
		conns:  make(map[string]*realtime.Connection),
		saving: make(map[string]chan struct{}),
	}
}

// Serve runs an upgraded socket until it disconnects.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, sessionCode string, client Client) error {
	conn := realtime.NewConnection(client.UserID, ws)
	conn.Start()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.CloseGoingAway, "server shutting down")
		return ErrHubClosed
	}
	h.conns[conn.ID] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn.ID)
		h.mu.Unlock()
		conn.Close(websocket.CloseNormalClosure, "")
	}()

	m, err := h.Join(ctx, sessionCode, conn.ID, conn, client)
	if err != nil {
		return err
	}
	defer h.Leave(context.WithoutCancel(ctx), m)

	err = conn.ReadLoop(func(payload []byte) {
		h.Handle(ctx, m, payload)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		h.logger.Info("socket closed", "error", err, "session", sessionCode, "user_id", client.UserID)
	}
	return nil
}

// Join adds a socket to the session's room, loading the room on first use.
func (h *Hub) Join(ctx context.Context, code, connID string, conn Sender, client Client) (*Member, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrHubClosed
		}
		if room, ok := h.rooms[code]; ok {
			return h.joinLocked(room, connID, conn, client), nil
		}
		pending, saving := h.saving[code]
		gen := h.evictions
		h.mu.Unlock()

		if saving {
			select {
			case <-pending:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		loaded, err := h.loadRoom(ctx, code)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrHubClosed
		}
		if room, ok := h.rooms[code]; ok {
			return h.joinLocked(room, connID, conn, client), nil
		}
		if h.evictions != gen {
			h.mu.Unlock()
			continue
		}
		h.rooms[code] = loaded
		return h.joinLocked(loaded, connID, conn, client), nil
	}
}

// joinLocked registers the socket in room. It is called with h.mu held and
// releases it once the member is in place, so a concurrent Leave cannot drop
// the room in between.
func (h *Hub) joinLocked(room *Room, connID string, conn Sender, client Client) *Member {
	m := &member{connID: connID, participant: client.UserID, conn: conn}
	now := h.now()
	participant := Participant{ID: client.UserID, Name: client.UserName, LastActivity: &now}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.members[connID] = m
	h.mu.Unlock()

	isNew := room.presence.Join(participant)

	room.sendLocked(m, Envelope{
		Type:         TypeConnectionEstablished,
		SessionID:    room.code,
		UserID:       client.UserID,
		ConnectionID: connID,
	})
	doc := room.doc.State()
	room.sendLocked(m, Envelope{
		Type:         TypeSessionJoined,
		SessionID:    room.code,
		UserID:       client.UserID,
		Participants: room.presence.List(),
		Document:     &doc,
		Messages:     room.chat.List(),
	})
	if isNew {
		room.broadcastLocked(Envelope{
			Type:      TypeUserJoined,
			SessionID: room.code,
			UserID:    client.UserID,
			User:      &participant,
		}, client.UserID)
	}

	h.logger.Debug("member joined", "session", room.code, "user_id", client.UserID, "conn_id", connID, "new", isNew)
	return &Member{room: room, m: m, client: client}
}

// Leave removes the socket. The room is dropped once its last socket left and
// its document is saved after the hub lock is released.
func (h *Hub) Leave(ctx context.Context, mem *Member) {
	room := mem.room

	h.mu.Lock()
	room.mu.Lock()
	if _, ok := room.members[mem.m.connID]; !ok {
		room.mu.Unlock()
		h.mu.Unlock()
		return
	}
	delete(room.members, mem.m.connID)
	if room.presence.Leave(mem.client.UserID) {
		room.broadcastLocked(Envelope{
			Type:      TypeUserLeft,
			SessionID: room.code,
			UserID:    mem.client.UserID,
		}, "")
	}
	empty := len(room.members) == 0
	doc, dirty := room.doc.State(), room.dirty
	if empty {
		room.dirty = false
	}
	room.mu.Unlock()

	if !empty || h.rooms[room.code] != room {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, room.code)
	h.evictions++
	if !dirty {
		h.mu.Unlock()
		return
	}
	done := make(chan struct{})
	h.saving[room.code] = done
	h.mu.Unlock()

	h.saveDocument(ctx, room.code, doc)

	h.mu.Lock()
	if h.saving[room.code] == done {
		delete(h.saving, room.code)
	}
	h.mu.Unlock()
	close(done)
}

// Handle processes one inbound frame from a member.
func (h *Hub) Handle(ctx context.Context, mem *Member, payload []byte) {
	env, err := Decode(payload)
	if err != nil {
		h.replyError(mem, ErrCodeBadRequest, "malformed envelope")
		return
	}

	switch env.Type {
	case TypeChatMessage:
		h.handleChat(ctx, mem, env)
	case TypeCodeEdit:
		h.handleEdit(mem, env)
	case TypeCursorUpdate:
		h.handleCursor(mem, env)
	case TypeTyping:
		h.handleTyping(mem, env)
	case TypePing:
		room := mem.room
		room.mu.Lock()
		room.sendLocked(mem.m, Envelope{Type: TypePong})
		room.mu.Unlock()
	default:
		h.replyError(mem, ErrCodeUnsupportedType, fmt.Sprintf("unsupported message type %q", env.Type))
	}
}

func (h *Hub) handleChat(ctx context.Context, mem *Member, env Envelope) {
	content := strings.TrimSpace(env.Content)
	if content == "" {
		h.replyError(mem, ErrCodeBadRequest, "message content is empty")
		return
	}
	if utf8.RuneCountInString(content) > h.cfg.MaxMessageRunes {
		h.replyError(mem, ErrCodeMessageTooLong, fmt.Sprintf("message exceeds %d characters", h.cfg.MaxMessageRunes))
		return
	}

	room := mem.room
	msg := ChatMessage{
		ID:        uuid.NewString(),
		ChannelID: room.code,
		UserID:    mem.client.UserID,
		UserName:  mem.client.UserName,
		Content:   content,
		Type:      ChatTypeText,
		Timestamp: h.now(),
	}

	room.mu.Lock()
	room.chat.Append(msg)
	room.broadcastLocked(Envelope{
		Type:      TypeChatMessageReceived,
		SessionID: room.code,
		UserID:    msg.UserID,
		Message:   &msg,
	}, "")
	room.mu.Unlock()

	if h.sink == nil {
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := h.sink.RecordChatMessage(sinkCtx, msg.Model()); err != nil {
		h.logger.Warn("record chat message failed", "error", err, "session", room.code, "message_id", msg.ID)
	}
}

func (h *Hub) handleEdit(mem *Member, env Envelope) {
	if env.Edit == nil {
		h.replyError(mem, ErrCodeBadRequest, "edit is required")
		return
	}

	room := mem.room
	room.mu.Lock()
	defer room.mu.Unlock()

	op, version, err := room.doc.Apply(env.Edit.BaseVersion, env.Edit.Op)
	if err != nil {
		doc := room.doc.State()
		room.sendLocked(mem.m, Envelope{
			Type:      TypeEditRejected,
			SessionID: room.code,
			UserID:    mem.client.UserID,
			Edit:      env.Edit,
			Document:  &doc,
			Error:     &ErrorPayload{Code: ErrCodeEditRejected, Message: err.Error()},
		})
		return
	}
	room.dirty = true

	room.presence.Update(mem.client.UserID, func(*Participant) {})
	room.broadcastLocked(Envelope{
		Type:      TypeCodeEditApplied,
		SessionID: room.code,
		UserID:    mem.client.UserID,
		Edit:      &Edit{Op: op, BaseVersion: version - 1},
		Document:  &DocumentState{Version: version},
	}, "")
}

func (h *Hub) handleCursor(mem *Member, env Envelope) {
	if env.Cursor == nil || env.Cursor.Line < 0 || env.Cursor.Column < 0 {
		h.replyError(mem, ErrCodeBadRequest, "cursor is required")
		return
	}
	cursor := *env.Cursor

	room := mem.room
	room.mu.Lock()
	defer room.mu.Unlock()
	room.presence.Update(mem.client.UserID, func(p *Participant) { p.Cursor = &cursor })
	room.broadcastLocked(Envelope{
		Type:      TypeCursorUpdated,
		SessionID: room.code,
		UserID:    mem.client.UserID,
		Cursor:    &cursor,
	}, mem.client.UserID)
}

func (h *Hub) handleTyping(mem *Member, env Envelope) {
	if env.IsTyping == nil {
		h.replyError(mem, ErrCodeBadRequest, "isTyping is required")
		return
	}
	typing := *env.IsTyping

	room := mem.room
	room.mu.Lock()
	defer room.mu.Unlock()
	room.presence.Update(mem.client.UserID, func(p *Participant) { p.IsTyping = typing })
	room.broadcastLocked(Envelope{
		Type:      TypeTypingUpdated,
		SessionID: room.code,
		UserID:    mem.client.UserID,
		IsTyping:  &typing,
	}, mem.client.UserID)
}

func (h *Hub) replyError(mem *Member, code, message string) {
	room := mem.room
	room.mu.Lock()
	defer room.mu.Unlock()
	room.sendLocked(mem.m, Envelope{
		Type:  TypeError,
		Error: &ErrorPayload{Code: code, Message: message},
	})
}

func (h *Hub) loadRoom(ctx context.Context, code string) (*Room, error) {
	session, err := h.store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	chat := NewChatLog(h.cfg.ChatHistoryLimit)
	recent, err := h.store.RecentMessages(ctx, code, h.cfg.ChatHistoryLimit)
	if err != nil {
		h.logger.Warn("load recent messages failed", "error", err, "session", code)
	}
	for _, msg := range recent {
		chat.Append(ChatFromModel(msg))
	}

	doc := NewDocument(session.DocumentContent, session.DocumentVersion, h.cfg.EditHistoryLimit)
	return newRoom(code, doc, chat, h.logger.With("session", code)), nil
}

func (h *Hub) saveDocument(ctx context.Context, code string, doc DocumentState) {
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.store.SaveDocument(saveCtx, code, doc.Content, doc.Version); err != nil {
		h.logger.Error("save document failed", "error", err, "session", code, "version", doc.Version)
	}
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close disconnects every socket with 1001 and saves the documents of all
// live rooms. Later joins fail with ErrHubClosed.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	rooms := h.rooms
	conns := h.conns
	pending := make([]chan struct{}, 0, len(h.saving))
	for _, done := range h.saving {
		pending = append(pending, done)
	}
	h.rooms = make(map[string]*Room)
	h.conns = make(map[string]*realtime.Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutting down")
	}
	for code, room := range rooms {
		room.mu.Lock()
		doc, dirty := room.doc.State(), room.dirty
		room.dirty = false
		room.mu.Unlock()
		if dirty {
			h.saveDocument(ctx, code, doc)
		}
	}
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			h.logger.Warn("collaboration hub closed before pending saves finished", "error", ctx.Err())
			return
		}
	}
	h.logger.Info("collaboration hub closed", "rooms", len(rooms), "sockets", len(conns))
}
