package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/model"
)

type memoryStore struct {
	saved []model.ChatMessage
	err   error
}

func (s *memoryStore) Create(message *model.ChatMessage) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, *message)
	return nil
}

type recordingHistory struct {
	deleted []string
}

func (h *recordingHistory) DeleteHistory(_ context.Context, channelID string) error {
	h.deleted = append(h.deleted, channelID)
	return nil
}

func TestChatPersistWorker_Handle(t *testing.T) {
	store := &memoryStore{}
	history := &recordingHistory{}
	w := NewChatPersistWorker(nil, store, history, "collab.chat.persist", nil)

	body, err := json.Marshal(model.ChatMessage{
		ID:        "0b6c1f36-3c5e-4f0d-9d43-0f5b9f1c2a11",
		ChannelID: "abc123",
		UserID:    "1",
		UserName:  "ada",
		Content:   "measure q[0]",
		Type:      "text",
		SentAt:    time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, w.Handle(context.Background(), body))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "measure q[0]", store.saved[0].Content)
	assert.Equal(t, []string{"abc123"}, history.deleted)
}

func TestChatPersistWorker_HandleRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		store *memoryStore
	}{
		{name: "invalid json", body: "{", store: &memoryStore{}},
		{name: "missing id", body: `{"channel_id":"abc"}`, store: &memoryStore{}},
		{name: "store error", body: `{"id":"m1","channel_id":"abc"}`, store: &memoryStore{err: errors.New("db down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewChatPersistWorker(nil, tt.store, nil, "q", nil)
			assert.Error(t, w.Handle(context.Background(), []byte(tt.body)))
			assert.Empty(t, tt.store.saved)
		})
	}
}
