package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/platform/rabbitmq"
)

type ChatMessageStore interface {
	Create(message *model.ChatMessage) error
}

// HistoryInvalidator drops the cached history of a channel once new rows landed.
type HistoryInvalidator interface {
	DeleteHistory(ctx context.Context, channelID string) error
}

// ChatPersistWorker drains the chat persist queue into the chat_messages table.
type ChatPersistWorker struct {
	conn      *amqp.Connection
	store     ChatMessageStore
	history   HistoryInvalidator
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewChatPersistWorker(
	conn *amqp.Connection,
	store ChatMessageStore,
	history HistoryInvalidator,
	queueName string,
	logger *slog.Logger,
) *ChatPersistWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatPersistWorker{
		conn:      conn,
		store:     store,
		history:   history,
		queueName: queueName,
		logger:    logger.With("component", "chat_persist_worker", "queue", queueName),
	}
}

func (w *ChatPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(32, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("delivery channel closed")
					return
				}
				if err := w.Handle(workerCtx, d.Body); err != nil {
					w.logger.Error("persist chat message failed", "error", err, "message_id", d.MessageId)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.logger.Info("chat persist worker started")
	return nil
}

// Handle persists one queued payload. Redelivered messages are idempotent
// because the store ignores known ids.
func (w *ChatPersistWorker) Handle(ctx context.Context, body []byte) error {
	var msg model.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode chat message failed: %w", err)
	}
	if msg.ID == "" || msg.ChannelID == "" {
		return fmt.Errorf("chat message missing id or channel")
	}
	if err := w.store.Create(&msg); err != nil {
		return err
	}
	if w.history != nil {
		if err := w.history.DeleteHistory(ctx, msg.ChannelID); err != nil {
			w.logger.Warn("drop cached history failed", "error", err, "channel_id", msg.ChannelID)
		}
	}
	return nil
}

func (w *ChatPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
