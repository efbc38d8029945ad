package closing

import (
	"fmt"
	"sort"
	"time"
)

// PayloadMeta carries per-category counts and the generation timestamp.
type PayloadMeta struct {
	PumpReadingCount int       `json:"pumpReadingCount"`
	TankReadingCount int       `json:"tankReadingCount"`
	CollectionCount  int       `json:"collectionCount"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// ClosingPayload is the unit submitted to close a shift. It is rebuilt from
// accumulated session state on every read and never mutated in place once
// validated.
type ClosingPayload struct {
	ShiftID      string                   `json:"shiftId"`
	RecordedByID string                   `json:"recordedById"`
	EndTime      time.Time                `json:"endTime"`
	PumpReadings []PumpClosingReading     `json:"pumpReadings"`
	TankReadings []TankClosingReading     `json:"tankReadings"`
	Collections  []IslandActualCollection `json:"collections"`
	Meta         PayloadMeta              `json:"meta"`
}

// BuildPayload assembles a closing payload from captured state. Readings and
// collections without a meaningful value are omitted, not sent as zero
// records. Output ordering is deterministic by id.
func BuildPayload(
	shiftID, recordedByID string,
	endTime time.Time,
	pumps map[string]*PumpClosingReading,
	tanks map[string]*TankClosingReading,
	collections map[string]*IslandActualCollection,
	now time.Time,
) ClosingPayload {
	payload := ClosingPayload{
		ShiftID:      shiftID,
		RecordedByID: recordedByID,
		EndTime:      endTime,
	}

	for _, reading := range pumps {
		if reading != nil && reading.HasValue() {
			payload.PumpReadings = append(payload.PumpReadings, *reading)
		}
	}
	sort.Slice(payload.PumpReadings, func(i, j int) bool {
		return payload.PumpReadings[i].PumpID < payload.PumpReadings[j].PumpID
	})

	for _, reading := range tanks {
		if reading != nil && reading.HasValue() {
			payload.TankReadings = append(payload.TankReadings, *reading)
		}
	}
	sort.Slice(payload.TankReadings, func(i, j int) bool {
		return payload.TankReadings[i].TankID < payload.TankReadings[j].TankID
	})

	for _, collection := range collections {
		if collection != nil && collection.HasValue() {
			payload.Collections = append(payload.Collections, *collection)
		}
	}
	sort.Slice(payload.Collections, func(i, j int) bool {
		return payload.Collections[i].IslandID < payload.Collections[j].IslandID
	})

	payload.Meta = PayloadMeta{
		PumpReadingCount: len(payload.PumpReadings),
		TankReadingCount: len(payload.TankReadings),
		CollectionCount:  len(payload.Collections),
		GeneratedAt:      now.UTC(),
	}
	return payload
}

// ValidationError points at one offending payload element.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of payload validation.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// ValidatePayload checks structural and business-rule invariants. It is the
// sole gate for the terminal close action; variance acknowledgement and debt
// completion are separate gates wired by the session.
func ValidatePayload(payload ClosingPayload) ValidationResult {
	var errs []ValidationError

	if payload.ShiftID == "" {
		errs = append(errs, ValidationError{Field: "shiftId", Message: "shift id is required"})
	}
	if payload.RecordedByID == "" {
		errs = append(errs, ValidationError{Field: "recordedById", Message: "recorder id is required"})
	}
	if payload.EndTime.IsZero() {
		errs = append(errs, ValidationError{Field: "endTime", Message: "end time is required"})
	}

	for _, reading := range payload.PumpReadings {
		if reading.ElectricMeter < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pumpReadings.%s.electricMeter", reading.PumpID),
				Message: "electric meter must not be negative",
			})
		}
		if reading.UnitPrice <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pumpReadings.%s.unitPrice", reading.PumpID),
				Message: "unit price must be positive",
			})
		}
	}

	for _, reading := range payload.TankReadings {
		if reading.DipValue < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tankReadings.%s.dipValue", reading.TankID),
				Message: "dip value must not be negative",
			})
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
