package queue

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/pkg/config"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	ports.EventPublisher
	Subscribe(subject string, handler func(data []byte) error) error
}

// NewPublisher connects the configured event bus. An empty driver disables
// events and returns nil.
func NewPublisher(cfg config.EventsConfig, log *zap.Logger) (MessageQueue, error) {
	var (
		q   MessageQueue
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "":
		log.Info("Event bus disabled")
		return nil, nil
	case "nats":
		q, err = NewNATSQueue(cfg, log)
	case "rabbitmq", "amqp":
		q, err = NewRabbitMQQueue(cfg, log)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return WithPrefix(q, cfg.SubjectPrefix), nil
}

// WithPrefix namespaces every subject as "<prefix>.<subject>".
func WithPrefix(q MessageQueue, prefix string) MessageQueue {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return q
	}
	return &prefixed{MessageQueue: q, prefix: prefix + "."}
}

type prefixed struct {
	MessageQueue
	prefix string
}

func (p *prefixed) Publish(subject string, data []byte) error {
	return p.MessageQueue.Publish(p.prefix+subject, data)
}

func (p *prefixed) Subscribe(subject string, handler func(data []byte) error) error {
	return p.MessageQueue.Subscribe(p.prefix+subject, handler)
}
