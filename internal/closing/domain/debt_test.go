package closing

import "testing"

func TestNormalizeVehiclePlate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"kda 123x", "KDA 123X"},
		{"  kda   123x  ", "KDA 123X"},
		{"KBZ-441", "KBZ-441"},
	}
	for _, tc := range cases {
		if got := NormalizeVehiclePlate(tc.raw); got != tc.want {
			t.Fatalf("NormalizeVehiclePlate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestAllocationValidate(t *testing.T) {
	base := DebtAllocation{
		DebtorID:     "debtor-1",
		DebtorName:   "Transport Co",
		VehiclePlate: "KDA 123X",
		Amount:       1200,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid allocation rejected: %v", err)
	}

	missing := base
	missing.DebtorID = ""
	missing.DebtorName = ""
	if err := missing.Validate(); err != ErrEmptyDebtor {
		t.Fatalf("expected ErrEmptyDebtor, got %v", err)
	}

	zero := base
	zero.Amount = 0
	if err := zero.Validate(); err != ErrNonPositiveAmount {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}

	badPlate := base
	badPlate.VehiclePlate = "!!"
	if err := badPlate.Validate(); err != ErrInvalidVehiclePlate {
		t.Fatalf("expected ErrInvalidVehiclePlate, got %v", err)
	}
}

func TestFullyAllocated_ExactZeroGate(t *testing.T) {
	// Collected debt 2000; allocations of 1200 and 800 net to zero.
	allocations := []DebtAllocation{
		{DebtorID: "debtor-1", VehiclePlate: "KDA 123X", Amount: 1200},
		{DebtorID: "debtor-2", VehiclePlate: "KBZ 441A", Amount: 800},
	}
	if got := RemainingDebt(2000, allocations); got != 0 {
		t.Fatalf("remaining debt = %v, want 0", got)
	}
	if !FullyAllocated(2000, allocations) {
		t.Fatalf("expected fully allocated")
	}

	// With only the 1200 allocation the gate stays closed.
	partial := allocations[:1]
	if got := RemainingDebt(2000, partial); got != 800 {
		t.Fatalf("remaining debt = %v, want 800", got)
	}
	if FullyAllocated(2000, partial) {
		t.Fatalf("expected not fully allocated")
	}

	// Near-zero is not zero: the debt gate has no tolerance band.
	if FullyAllocated(2000.01, allocations) {
		t.Fatalf("0.01 remainder must not count as fully allocated")
	}
}
