package ports

// EventPublisher fans session events out to the message bus.
type EventPublisher interface {
	Publish(subject string, data []byte) error
	Close() error
}
