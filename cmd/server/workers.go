package main

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/adapter/queue"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/service/voice"
)

// startEventWorkers reads voice events back off the bus and logs them in
// one place, so lane activity from every replica ends up in a single stream.
func startEventWorkers(mq queue.MessageQueue, logger *zap.Logger) {
	logger.Info("Starting background workers")

	for _, subject := range []string{voice.SubjectSession, voice.SubjectTurn, voice.SubjectInterruption} {
		subject := subject
		err := mq.Subscribe(subject, func(msg []byte) error {
			return handleVoiceEvent(subject, msg, logger)
		})
		if err != nil {
			logger.Error("Failed to subscribe", zap.String("subject", subject), zap.Error(err))
		}
	}
}

func handleVoiceEvent(subject string, msg []byte, logger *zap.Logger) error {
	var ev voice.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		logger.Warn("Dropping malformed voice event", zap.String("subject", subject), zap.Error(err))
		return err
	}

	telemetry.EventsConsumedTotal.WithLabelValues(ev.Type).Inc()
	logger.Info("Voice event",
		zap.String("subject", subject),
		zap.String("type", ev.Type),
		zap.String("connection_id", ev.ConnectionID),
		zap.Int64("branch_id", ev.BranchID),
		zap.Time("occurred_at", ev.OccurredAt),
	)
	return nil
}
