package application

import (
	"context"
	"time"

	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
)

// ShiftClosed is published once a closing payload has been accepted and the
// shift is immutable.
type ShiftClosed struct {
	ShiftID       string                   `json:"shiftId"`
	StationID     string                   `json:"stationId"`
	RecordedByID  string                   `json:"recordedById"`
	ClosedAt      time.Time                `json:"closedAt"`
	GrandVariance closing.VarianceResult   `json:"grandVariance"`
	Islands       []closing.VarianceResult `json:"islands"`
	Payload       closing.ClosingPayload   `json:"payload"`
}

// ClosingPublisher receives shift closed notifications. Publishing happens
// after the close commits; a publish failure does not roll the close back.
type ClosingPublisher interface {
	PublishShiftClosed(ctx context.Context, event ShiftClosed) error
}
