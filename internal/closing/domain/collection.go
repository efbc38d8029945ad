package closing

import "math"

// PaymentMethod identifies how money was collected on an island.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodMobileMoney PaymentMethod = "mobileMoney"
	MethodVisa        PaymentMethod = "visa"
	MethodMastercard  PaymentMethod = "mastercard"
	MethodDebt        PaymentMethod = "debt"
	MethodOther       PaymentMethod = "other"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{
	MethodCash,
	MethodMobileMoney,
	MethodVisa,
	MethodMastercard,
	MethodDebt,
	MethodOther,
}

// KnownMethod reports whether the method is one of the accepted keys.
func KnownMethod(method PaymentMethod) bool {
	switch method {
	case MethodCash, MethodMobileMoney, MethodVisa, MethodMastercard, MethodDebt, MethodOther:
		return true
	default:
		return false
	}
}

// Round2 rounds a currency amount to 2 decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// PumpExpectedCollection is one pump's contribution to an island's expected
// collection, derived from the averaged meter deltas and the resolved price.
type PumpExpectedCollection struct {
	PumpID        string  `json:"pumpId"`
	ElectricDelta float64 `json:"electricDelta"`
	ManualDelta   float64 `json:"manualDelta"`
	AverageSales  float64 `json:"averageSales"`
	UnitPrice     float64 `json:"unitPrice"`
	PriceStatus   string  `json:"priceStatus,omitempty"`
	Expected      float64 `json:"expected"`
}

// ExpectedForPump derives a pump's expected contribution. Negative deltas clamp
// to zero so instrument wrap or entry error never produces negative expected
// revenue. The unit price must come from the pricing resolver, never from
// operator input.
func ExpectedForPump(pumpID string, openingElectric, closingElectric, openingManual, closingManual, unitPrice float64, priceStatus string) PumpExpectedCollection {
	electricDelta := closingElectric - openingElectric
	if electricDelta < 0 {
		electricDelta = 0
	}
	manualDelta := closingManual - openingManual
	if manualDelta < 0 {
		manualDelta = 0
	}
	average := (electricDelta + manualDelta) / 2
	return PumpExpectedCollection{
		PumpID:        pumpID,
		ElectricDelta: electricDelta,
		ManualDelta:   manualDelta,
		AverageSales:  average,
		UnitPrice:     unitPrice,
		PriceStatus:   priceStatus,
		Expected:      Round2(average * unitPrice),
	}
}

// IslandExpectedCollection aggregates the expected collection for one island.
type IslandExpectedCollection struct {
	IslandID      string                   `json:"islandId"`
	Pumps         []PumpExpectedCollection `json:"pumps"`
	TotalExpected float64                  `json:"totalExpected"`
}

// NewIslandExpectedCollection sums pump contributions for an island.
func NewIslandExpectedCollection(islandID string, pumps []PumpExpectedCollection) IslandExpectedCollection {
	var total float64
	for _, pump := range pumps {
		total += pump.Expected
	}
	return IslandExpectedCollection{
		IslandID:      islandID,
		Pumps:         pumps,
		TotalExpected: Round2(total),
	}
}

// IslandActualCollection records the amounts actually collected on one island
// by payment method.
type IslandActualCollection struct {
	IslandID string                    `json:"islandId"`
	Amounts  map[PaymentMethod]float64 `json:"amounts"`
}

// NewIslandActualCollection constructs an empty collection record.
func NewIslandActualCollection(islandID string) *IslandActualCollection {
	return &IslandActualCollection{IslandID: islandID, Amounts: make(map[PaymentMethod]float64)}
}

// Set stores an amount under a method key.
func (c *IslandActualCollection) Set(method PaymentMethod, amount float64) error {
	if !KnownMethod(method) {
		return ErrUnknownMethod
	}
	if c.Amounts == nil {
		c.Amounts = make(map[PaymentMethod]float64)
	}
	c.Amounts[method] = amount
	return nil
}

// TotalCollected sums all method amounts.
func (c *IslandActualCollection) TotalCollected() float64 {
	if c == nil {
		return 0
	}
	var total float64
	for _, amount := range c.Amounts {
		total += amount
	}
	return Round2(total)
}

// DebtAmount returns the amount collected as customer debt.
func (c *IslandActualCollection) DebtAmount() float64 {
	if c == nil {
		return 0
	}
	return c.Amounts[MethodDebt]
}

// HasValue reports whether any amount was recorded.
func (c *IslandActualCollection) HasValue() bool {
	return c.TotalCollected() != 0
}

// VarianceClass labels a reconciliation outcome.
type VarianceClass string

const (
	VarianceExact VarianceClass = "exact"
	VarianceOver  VarianceClass = "over"
	VarianceUnder VarianceClass = "under"
)

// VarianceTolerance is the band, in currency units, within which a collection
// variance counts as exact. It absorbs rounding noise from physical
// instruments and is a fixed business constant, not per-station configuration.
const VarianceTolerance = 4.0

// ClassifyVariance classifies a collected-minus-expected difference. Boundary
// values of exactly ±VarianceTolerance classify as exact.
func ClassifyVariance(variance float64) VarianceClass {
	switch {
	case math.Abs(variance) <= VarianceTolerance:
		return VarianceExact
	case variance > 0:
		return VarianceOver
	default:
		return VarianceUnder
	}
}

// VarianceResult is the derived reconciliation of expected versus collected
// money. It is never stored independently; it is recomputed from its inputs.
type VarianceResult struct {
	IslandID       string        `json:"islandId,omitempty"`
	TotalExpected  float64       `json:"totalExpected"`
	TotalCollected float64       `json:"totalCollected"`
	Variance       float64       `json:"variance"`
	Class          VarianceClass `json:"class"`
}

// Reconcile derives the variance result for an expected/collected pair.
func Reconcile(islandID string, expected, collected float64) VarianceResult {
	variance := Round2(collected - expected)
	return VarianceResult{
		IslandID:       islandID,
		TotalExpected:  Round2(expected),
		TotalCollected: Round2(collected),
		Variance:       variance,
		Class:          ClassifyVariance(variance),
	}
}
