package rhdlerr_test

import (
	"errors"
	"testing"

	"github.com/jmchacon/rhdl/rhdlerr"
)

// TestErrorsSatisfyErrorInterface checks every taxonomy member formats a
// non-empty message; errors.As matching is checked separately in
// TestErrorsAsMatchesConcreteType.
func TestErrorsSatisfyErrorInterface(t *testing.T) {
	cases := []error{
		rhdlerr.UnknownNet{ID: 7},
		rhdlerr.PortDuplicate{Name: "a", Direction: "input"},
		rhdlerr.ArityMismatch{Kind: "and", Got: 1, Expected: 2},
		rhdlerr.DoubleProducer{Net: 3},
		rhdlerr.InvalidSchedule{Kind: "cycle", Detail: "net 3"},
		rhdlerr.CombinationalLoop{Nets: []int{1, 2, 3}},
		rhdlerr.IrMalformed{Field: "gates", Reason: "bad kind"},
		rhdlerr.UnknownPort{Name: "x"},
		rhdlerr.UnknownSignal{Name: "clk"},
		rhdlerr.PokeOutOfRange{Port: "a", Got: 256, Width: 8},
		rhdlerr.LoadOutOfBounds{Space: "ram", Offset: 10, Length: 4, Size: 8},
		rhdlerr.BackendUnavailable{Backend: "nonsense"},
		rhdlerr.IrIncompatible{Reason: "hash mismatch"},
		rhdlerr.ResetUnavailable{},
	}
	for _, err := range cases {
		if err.Error() == "" {
			t.Errorf("%T: empty Error() string", err)
		}
	}
}

func TestErrorsAsMatchesConcreteType(t *testing.T) {
	var err error = rhdlerr.UnknownPort{Name: "missing"}
	var target rhdlerr.UnknownPort
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed to match rhdlerr.UnknownPort")
	}
	if target.Name != "missing" {
		t.Fatalf("target.Name = %q, want %q", target.Name, "missing")
	}

	var wrongTarget rhdlerr.UnknownSignal
	if errors.As(err, &wrongTarget) {
		t.Fatal("errors.As incorrectly matched a different taxonomy member")
	}
}
