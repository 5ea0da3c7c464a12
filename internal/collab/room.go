package collab

import (
	"log/slog"
	"sync"
)

// Sender is the write side of a socket.
type Sender interface {
	Send(payload []byte) error
}

type member struct {
	connID      string
	participant string
	conn        Sender
}

// Room is the live state of one collaboration session. Every mutation and the
// broadcast it causes happen under mu, so all members observe events in the
// same order.
type Room struct {
	code string

	mu       sync.Mutex
	members  map[string]*member
	presence *Presence
	chat     *ChatLog
	doc      *Document
	dirty    bool
	logger   *slog.Logger
}

func newRoom(code string, doc *Document, chat *ChatLog, logger *slog.Logger) *Room {
	return &Room{
		code:     code,
		members:  make(map[string]*member),
		presence: NewPresence(),
		chat:     chat,
		doc:      doc,
		logger:   logger,
	}
}

func (r *Room) Code() string {
	return r.code
}

// Participants returns a snapshot of the presence list.
func (r *Room) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence.List()
}

func (r *Room) Document() DocumentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.State()
}

func (r *Room) sendLocked(m *member, env Envelope) {
	payload, err := Encode(env)
	if err != nil {
		r.logger.Error("encode envelope failed", "error", err, "type", env.Type)
		return
	}
	if err := m.conn.Send(payload); err != nil {
		r.logger.Debug("send to member failed", "error", err, "conn_id", m.connID)
	}
}

// broadcastLocked sends env to every member except the sockets of the
// excluded participant.
func (r *Room) broadcastLocked(env Envelope, excludeParticipant string) {
	payload, err := Encode(env)
	if err != nil {
		r.logger.Error("encode envelope failed", "error", err, "type", env.Type)
		return
	}
	for _, m := range r.members {
		if excludeParticipant != "" && m.participant == excludeParticipant {
			continue
		}
		if err := m.conn.Send(payload); err != nil {
			r.logger.Debug("broadcast to member failed", "error", err, "conn_id", m.connID)
		}
	}
}
