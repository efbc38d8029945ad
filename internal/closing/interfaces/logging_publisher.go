package interfaces

import (
	"context"
	"errors"
	"log"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
)

// LoggingPublisher logs shift closed events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishShiftClosed logs the event.
func (p *LoggingPublisher) PublishShiftClosed(ctx context.Context, event application.ShiftClosed) error {
	_ = ctx
	if p == nil {
		return errors.New("closing publisher: nil publisher")
	}
	p.logger.Printf("shift closed: shift=%s station=%s expected=%.2f collected=%.2f class=%s",
		event.ShiftID, event.StationID,
		event.GrandVariance.TotalExpected, event.GrandVariance.TotalCollected, event.GrandVariance.Class)
	return nil
}
