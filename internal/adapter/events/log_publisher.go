// Package events delivers marketplace events to their sinks.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

// LogPublisher writes one structured log line per event.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Stringer("key", event.Key()),
		zap.Stringer("account", event.Account),
		zap.Stringer("amount", event.Amount),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
