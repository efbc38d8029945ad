package closing

import "testing"

func TestExpectedForPump_AveragedDeltas(t *testing.T) {
	// Opening electric 1000, closing 1050; opening manual 990, closing 1040;
	// unit price 150.
	expected := ExpectedForPump("pump-1", 1000, 1050, 990, 1040, 150, "ok")

	if expected.ElectricDelta != 50 {
		t.Fatalf("electric delta = %v, want 50", expected.ElectricDelta)
	}
	if expected.ManualDelta != 50 {
		t.Fatalf("manual delta = %v, want 50", expected.ManualDelta)
	}
	if expected.AverageSales != 50 {
		t.Fatalf("average sales = %v, want 50", expected.AverageSales)
	}
	if expected.Expected != 7500 {
		t.Fatalf("expected collection = %v, want 7500", expected.Expected)
	}
}

func TestExpectedForPump_NegativeDeltasClamp(t *testing.T) {
	expected := ExpectedForPump("pump-1", 1000, 900, 990, 980, 150, "ok")
	if expected.ElectricDelta != 0 || expected.ManualDelta != 0 {
		t.Fatalf("deltas = %v/%v, want 0/0", expected.ElectricDelta, expected.ManualDelta)
	}
	if expected.Expected != 0 {
		t.Fatalf("expected collection = %v, want 0", expected.Expected)
	}
}

func TestIslandExpectedCollection_SumsPumps(t *testing.T) {
	island := NewIslandExpectedCollection("island-1", []PumpExpectedCollection{
		{PumpID: "pump-1", Expected: 7500},
		{PumpID: "pump-2", Expected: 1200.5},
	})
	if island.TotalExpected != 8700.5 {
		t.Fatalf("total expected = %v, want 8700.5", island.TotalExpected)
	}
}

func TestClassifyVariance_Banding(t *testing.T) {
	cases := []struct {
		variance float64
		want     VarianceClass
	}{
		{0, VarianceExact},
		{3, VarianceExact},
		{-3, VarianceExact},
		{4, VarianceExact},
		{-4, VarianceExact},
		{4.01, VarianceOver},
		{20, VarianceOver},
		{-4.01, VarianceUnder},
		{-20, VarianceUnder},
	}
	for _, tc := range cases {
		if got := ClassifyVariance(tc.variance); got != tc.want {
			t.Fatalf("ClassifyVariance(%v) = %s, want %s", tc.variance, got, tc.want)
		}
	}
}

func TestReconcile_ScenarioBandC(t *testing.T) {
	// Expected 7500, collected 7503: within band.
	result := Reconcile("island-1", 7500, 7503)
	if result.Variance != 3 {
		t.Fatalf("variance = %v, want 3", result.Variance)
	}
	if result.Class != VarianceExact {
		t.Fatalf("class = %s, want exact", result.Class)
	}

	// Same island, collected 7520: over.
	result = Reconcile("island-1", 7500, 7520)
	if result.Variance != 20 {
		t.Fatalf("variance = %v, want 20", result.Variance)
	}
	if result.Class != VarianceOver {
		t.Fatalf("class = %s, want over", result.Class)
	}
}

func TestIslandActualCollection_Totals(t *testing.T) {
	collection := NewIslandActualCollection("island-1")
	if err := collection.Set(MethodCash, 5000); err != nil {
		t.Fatalf("set cash: %v", err)
	}
	if err := collection.Set(MethodMobileMoney, 1500); err != nil {
		t.Fatalf("set mobile money: %v", err)
	}
	if err := collection.Set(MethodDebt, 1000); err != nil {
		t.Fatalf("set debt: %v", err)
	}

	if got := collection.TotalCollected(); got != 7500 {
		t.Fatalf("total collected = %v, want 7500", got)
	}
	if got := collection.DebtAmount(); got != 1000 {
		t.Fatalf("debt amount = %v, want 1000", got)
	}
}

func TestIslandActualCollection_UnknownMethod(t *testing.T) {
	collection := NewIslandActualCollection("island-1")
	if err := collection.Set(PaymentMethod("cheque"), 100); err != ErrUnknownMethod {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}
