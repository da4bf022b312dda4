package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология событий.
const (
	// ExchangeEvents — единственный exchange ядра.
	ExchangeEvents = "don.events"

	// Очереди для внешних потребителей.
	QueueSendOutcomes = "events.sends"
	QueueWorkerEvents = "events.workers"

	// Routing keys.
	RoutingKeySend   = "send"
	RoutingKeyWorker = "worker"
)

// EventType — тип события.
type EventType string

// Типы событий.
const (
	EventSendOutcome   EventType = "send.outcome"
	EventWorkerStarted EventType = "worker.started"
	EventWorkerStopped EventType = "worker.stopped"
)

// Envelope — конверт события.
type Envelope struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// SendOutcomePayload — событие записанного исхода отправки.
type SendOutcomePayload struct {
	RunID     string `json:"run_id"`
	GroupID   string `json:"group_id"`
	TaskID    int64  `json:"task_id"`
	ChatRef   string `json:"chat_ref"`
	ProfileID string `json:"profile_id"`
	Kind      string `json:"kind"`
}

// WorkerPayload — событие жизненного цикла воркера.
type WorkerPayload struct {
	RunID     string `json:"run_id"`
	GroupID   string `json:"group_id"`
	ProfileID string `json:"profile_id"`
	ExitCode  int    `json:"exit_code,omitempty"`
}

// Publisher публикует события в AMQP.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// publish сериализует конверт и отправляет его в exchange.
func (p *Publisher) publish(ctx context.Context, routingKey string, eventType EventType, payload any) error {
	envelope := Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			ExchangeEvents,
			routingKey,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    envelope.ID,
				Timestamp:    envelope.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", eventType, err)
		}

		p.logger.Debug("published event", "type", eventType, "event_id", envelope.ID)
		return nil
	})
}

// PublishSendOutcome публикует событие записанного исхода отправки.
func (p *Publisher) PublishSendOutcome(ctx context.Context, payload SendOutcomePayload) error {
	return p.publish(ctx, RoutingKeySend, EventSendOutcome, payload)
}

// PublishWorkerStarted публикует событие запуска воркера.
func (p *Publisher) PublishWorkerStarted(ctx context.Context, payload WorkerPayload) error {
	return p.publish(ctx, RoutingKeyWorker, EventWorkerStarted, payload)
}

// PublishWorkerStopped публикует событие остановки воркера.
func (p *Publisher) PublishWorkerStopped(ctx context.Context, payload WorkerPayload) error {
	return p.publish(ctx, RoutingKeyWorker, EventWorkerStopped, payload)
}

// SetupTopology объявляет exchange, очереди и привязки.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(
			ExchangeEvents,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange: %w", err)
		}

		bindings := []struct {
			queue      string
			routingKey string
		}{
			{QueueSendOutcomes, RoutingKeySend},
			{QueueWorkerEvents, RoutingKeyWorker},
		}

		for _, b := range bindings {
			if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(b.queue, b.routingKey, ExchangeEvents, false, nil); err != nil {
				return fmt.Errorf("bind queue %s: %w", b.queue, err)
			}
		}
		return nil
	})
}

// Connect подключает публикацию событий по конфигурации.
// Недоступный брокер — не ошибка: возвращается (nil, nil) и система
// работает без событий.
func Connect(url string, logger *slog.Logger) (*Publisher, *Connection) {
	conn, err := NewConnection(url, logger)
	if err != nil {
		logger.Warn("event broker not available, running without events", "error", err)
		return nil, nil
	}

	if err := SetupTopology(conn); err != nil {
		logger.Warn("failed to setup event topology", "error", err)
	}

	return NewPublisher(conn, logger), conn
}
