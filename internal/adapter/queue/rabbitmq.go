package queue

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/config"
)

// RabbitMQQueue publishes every subject as a routing key on one durable
// topic exchange.
type RabbitMQQueue struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	url           string
	exchange      string
	reconnectWait time.Duration
	mu            sync.RWMutex
	log           *zap.Logger
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(cfg config.EventsConfig, log *zap.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "drivethru.events"
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	q := &RabbitMQQueue{
		conn:          conn,
		channel:       ch,
		url:           cfg.URL,
		exchange:      exchange,
		reconnectWait: wait,
		log:           log,
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("exchange", exchange))
	return q, nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.Publish(
		q.exchange, subject, false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	queue, err := q.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	err = q.channel.QueueBind(queue.Name, subject, q.exchange, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := q.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("routing_key", subject),
					zap.Error(err),
				)
			}
		}
	}()

	q.log.Info("Subscribed to RabbitMQ routing key", zap.String("routing_key", subject))
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// monitorConnection redials after a broker-side close. Subscriptions are
// not restored.
func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok || reason == nil {
			return
		}
		q.log.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Reason))

		for {
			time.Sleep(q.reconnectWait)
			conn, err := amqp.Dial(q.url)
			if err != nil {
				q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
				continue
			}
			ch, err := conn.Channel()
			if err != nil {
				conn.Close()
				continue
			}
			if err := ch.ExchangeDeclare(q.exchange, "topic", true, false, false, false, nil); err != nil {
				conn.Close()
				continue
			}

			q.mu.Lock()
			q.conn = conn
			q.channel = ch
			q.mu.Unlock()

			q.log.Info("Successfully reconnected to RabbitMQ")
			break
		}
	}
}
