package closing

import (
	"math"
	"strconv"
	"strings"
)

// Reading field names accepted by the capture engine. They match the wire
// contract used by the closing API.
const (
	FieldElectricMeter = "electricMeter"
	FieldManualMeter   = "manualMeter"
	FieldCashMeter     = "cashMeter"

	FieldDipValue    = "dipValue"
	FieldVolume      = "volume"
	FieldTemperature = "temperature"
	FieldWaterLevel  = "waterLevel"
	FieldDensity     = "density"
)

// DipVolumeRatio is the linear dip-to-volume conversion factor: one dip unit
// corresponds to 10000 liters.
const DipVolumeRatio = 10000.0

// ParseMeterValue coerces raw operator input to a float. Malformed or empty
// input degrades to zero instead of rejecting the keystroke; validation of the
// resulting reading is deferred to the payload validator.
func ParseMeterValue(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// PumpClosingReading holds the closing meter values captured for one pump and
// the figures derived from them.
type PumpClosingReading struct {
	PumpID          string  `json:"pumpId"`
	ElectricMeter   float64 `json:"electricMeter"`
	ManualMeter     float64 `json:"manualMeter"`
	CashMeter       float64 `json:"cashMeter"`
	LitersDispensed float64 `json:"litersDispensed"`
	SalesValue      float64 `json:"salesValue"`
	UnitPrice       float64 `json:"unitPrice"`
	PriceStatus     string  `json:"priceStatus,omitempty"`
}

// ApplyField stores a parsed value under the named meter field. It reports
// whether the field affects the derived liters/sales figures, in which case
// the caller must follow up with Recompute.
func (r *PumpClosingReading) ApplyField(field string, value float64) (recompute bool, err error) {
	switch field {
	case FieldElectricMeter:
		r.ElectricMeter = value
		return true, nil
	case FieldManualMeter:
		r.ManualMeter = value
		return true, nil
	case FieldCashMeter:
		r.CashMeter = value
		return false, nil
	default:
		return false, ErrUnknownField
	}
}

// Recompute derives liters dispensed and sales value from the opening electric
// baseline and the resolved unit price. A negative meter delta (instrument wrap
// or entry error) clamps to zero.
func (r *PumpClosingReading) Recompute(openingElectric, unitPrice float64, priceStatus string) {
	liters := r.ElectricMeter - openingElectric
	if liters < 0 {
		liters = 0
	}
	r.LitersDispensed = liters
	r.UnitPrice = unitPrice
	r.PriceStatus = priceStatus
	r.SalesValue = liters * unitPrice
}

// HasValue reports whether the reading carries any meaningful closing entry.
func (r PumpClosingReading) HasValue() bool {
	return r.ElectricMeter > 0 || r.ManualMeter > 0 || r.CashMeter > 0
}

// TankClosingReading holds the closing dip measurements captured for one tank.
// DipValue and Volume are kept in lockstep through the linear conversion; the
// field edited last is authoritative.
type TankClosingReading struct {
	TankID      string  `json:"tankId"`
	DipValue    float64 `json:"dipValue"`
	Volume      float64 `json:"volume"`
	Temperature float64 `json:"temperature"`
	WaterLevel  float64 `json:"waterLevel"`
	Density     float64 `json:"density"`
}

// ApplyField stores a parsed value and runs the dip/volume synchronization:
// editing volume recomputes dip, editing dip recomputes volume. Other fields
// perform no cross-field recomputation.
func (r *TankClosingReading) ApplyField(field string, value float64) error {
	switch field {
	case FieldDipValue:
		r.DipValue = value
		r.Volume = value * DipVolumeRatio
	case FieldVolume:
		r.Volume = value
		r.DipValue = value / DipVolumeRatio
	case FieldTemperature:
		r.Temperature = value
	case FieldWaterLevel:
		r.WaterLevel = value
	case FieldDensity:
		r.Density = value
	default:
		return ErrUnknownField
	}
	return nil
}

// HasValue reports whether the reading carries any meaningful closing entry.
func (r TankClosingReading) HasValue() bool {
	return r.DipValue > 0 || r.Volume > 0
}
