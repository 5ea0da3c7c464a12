package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	nanoid "github.com/jaevor/go-nanoid"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrProjectNotFound = errors.New("project not found")
)

const (
	sessionCodeAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"
	sessionCodeLength   = 10
	chatHistoryWindow   = 200
)

type ChatPublisher interface {
	Publish(ctx context.Context, msg model.ChatMessage) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, channelID string) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, channelID string, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, channelID string) error
	Invalidate(ctx context.Context, channelID string) error
	IsDirty(ctx context.Context, channelID string) (bool, error)
}

// SessionService owns collaboration sessions and their chat history. It also
// backs the collaboration hub: room loading, document snapshots and chat
// persistence all go through it.
type SessionService struct {
	sessions  *repository.SessionRepository
	projects  *repository.ProjectRepository
	messages  *repository.ChatMessageRepository
	publisher ChatPublisher
	history   HistoryCache
	newCode   func() string
	logger    *slog.Logger
}

type CreateSessionInput struct {
	Name      string
	ProjectID uint
}

func NewSessionService(
	sessions *repository.SessionRepository,
	projects *repository.ProjectRepository,
	messages *repository.ChatMessageRepository,
	publisher ChatPublisher,
	history HistoryCache,
	logger *slog.Logger,
) (*SessionService, error) {
	newCode, err := nanoid.CustomASCII(sessionCodeAlphabet, sessionCodeLength)
	if err != nil {
		return nil, fmt.Errorf("init session code generator failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions:  sessions,
		projects:  projects,
		messages:  messages,
		publisher: publisher,
		history:   history,
		newCode:   newCode,
		logger:    logger.With("component", "session_service"),
	}, nil
}

func (s *SessionService) Create(actor Actor, input CreateSessionInput) (*model.Session, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.ValidateStruct(&input,
		validation.Field(&input.Name, validation.Required, validation.Length(1, 128)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.ProjectID != 0 {
		project, err := s.projects.GetByIDAndOwnerID(input.ProjectID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, ErrProjectNotFound
		}
	}

	session := &model.Session{
		Code:      s.newCode(),
		Name:      input.Name,
		ProjectID: input.ProjectID,
		OwnerID:   actor.UserID,
		Status:    model.SessionActive,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) List(actor Actor, projectID uint) ([]model.Session, error) {
	return s.sessions.List(actor.UserID, projectID)
}

func (s *SessionService) Get(actor Actor, id uint) (*model.Session, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if session == nil || (!actor.IsAdmin() && session.OwnerID != actor.UserID) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) GetByCode(code string) (*model.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) Delete(ctx context.Context, actor Actor, id uint) error {
	session, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteByIDAndOwnerID(session.ID, session.OwnerID); err != nil {
		return err
	}
	if err := s.messages.DeleteByChannelID(session.Code); err != nil {
		return err
	}
	if s.history != nil {
		_ = s.history.DeleteHistory(ctx, session.Code)
	}
	return nil
}

// Messages returns the latest chat messages of a session in arrival order.
func (s *SessionService) Messages(ctx context.Context, actor Actor, id uint, limit int) ([]model.ChatMessage, error) {
	session, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	return s.RecentMessages(ctx, session.Code, limit)
}

// RecentMessages reads through the history cache. The cache is bypassed, and
// not refilled, while the channel is dirty.
func (s *SessionService) RecentMessages(ctx context.Context, code string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > chatHistoryWindow {
		limit = chatHistoryWindow
	}

	if s.history != nil {
		dirty, err := s.history.IsDirty(ctx, code)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.history.GetHistory(ctx, code); cacheErr == nil && hit {
				return lastMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.ListByChannelID(code, chatHistoryWindow)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		if dirty, dirtyErr := s.history.IsDirty(ctx, code); dirtyErr == nil && !dirty {
			_ = s.history.SetHistory(ctx, code, messages)
		}
	}
	return lastMessages(messages, limit), nil
}

func (s *SessionService) GetSessionByCode(_ context.Context, code string) (*model.Session, error) {
	return s.sessions.GetByCode(code)
}

func (s *SessionService) SaveDocument(_ context.Context, code, content string, version int) error {
	return s.sessions.SaveDocument(code, content, version)
}

// RecordChatMessage queues a hub chat message for persistence. Without a
// working broker the message is written directly.
func (s *SessionService) RecordChatMessage(ctx context.Context, msg model.ChatMessage) error {
	if s.history != nil {
		if err := s.history.Invalidate(ctx, msg.ChannelID); err != nil {
			s.logger.Warn("invalidate chat history failed", "error", err, "channel_id", msg.ChannelID)
		}
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, msg)
		if err == nil {
			return nil
		}
		s.logger.Warn("enqueue chat message failed, writing directly", "error", err, "message_id", msg.ID)
	}

	if err := s.messages.Create(&msg); err != nil {
		return err
	}
	if s.history != nil {
		_ = s.history.DeleteHistory(ctx, msg.ChannelID)
	}
	return nil
}

func lastMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
