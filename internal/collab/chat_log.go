package collab

// ChatLog is an append-only list of chat messages in arrival order. When a
// limit is set the oldest messages are dropped past it.
type ChatLog struct {
	messages []ChatMessage
	limit    int
}

func NewChatLog(limit int) *ChatLog {
	return &ChatLog{limit: limit}
}

func (l *ChatLog) Append(msg ChatMessage) {
	l.messages = append(l.messages, msg)
	if l.limit > 0 && len(l.messages) > l.limit {
		l.messages = append(l.messages[:0:0], l.messages[len(l.messages)-l.limit:]...)
	}
}

func (l *ChatLog) List() []ChatMessage {
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *ChatLog) Len() int {
	return len(l.messages)
}
