package application

// Step tags one operator-facing step of the closing wizard.
type Step string

const (
	StepPreClosingValidation Step = "preClosingValidation"
	StepPumpReadings         Step = "pumpReadings"
	StepTankReadings         Step = "tankReadings"
	StepCollections          Step = "collections"
	StepDebtAllocation       Step = "debtAllocation"
	StepSummary              Step = "summary"
)

// BuildSteps produces the ordered step list for the current session state.
// The debt allocation step is present iff debt was collected and allocation
// has not yet been completed; once completed it never re-inserts, even if the
// collected debt figures change afterwards.
func BuildSteps(totalCollectedDebt float64, debtAllocationComplete bool) []Step {
	steps := []Step{
		StepPreClosingValidation,
		StepPumpReadings,
		StepTankReadings,
		StepCollections,
	}
	if totalCollectedDebt > 0 && !debtAllocationComplete {
		steps = append(steps, StepDebtAllocation)
	}
	return append(steps, StepSummary)
}

// indexOfStep locates a step tag in a list, or -1.
func indexOfStep(steps []Step, step Step) int {
	for i, candidate := range steps {
		if candidate == step {
			return i
		}
	}
	return -1
}
