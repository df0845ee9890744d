package ir_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	deep "github.com/go-test/deep"

	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/rhdlerr"
)

// buildAnd builds the §8 scenario 1 two-input AND IR by hand through the
// Builder, the way package lower would after expanding a single AND
// primitive.
func buildAnd(t *testing.T) *ir.Module {
	t.Helper()
	b := ir.NewBuilder("and2")
	a := b.NewNet()
	bb := b.NewNet()
	y := b.NewNet()
	if err := b.AddInput("a", []int{a}); err != nil {
		t.Fatalf("AddInput(a): %v", err)
	}
	if err := b.AddInput("b", []int{bb}); err != nil {
		t.Fatalf("AddInput(b): %v", err)
	}
	if err := b.AddOutput("y", []int{y}); err != nil {
		t.Fatalf("AddOutput(y): %v", err)
	}
	if _, err := b.AddGate(ir.GateAnd, []int{a, bb}, y, nil); err != nil {
		t.Fatalf("AddGate: %v", err)
	}
	mod, err := b.Build(b.CombinationalGateIDs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return mod
}

func TestBuilderRejectsArityMismatch(t *testing.T) {
	b := ir.NewBuilder("bad")
	a := b.NewNet()
	y := b.NewNet()
	_, err := b.AddGate(ir.GateAnd, []int{a}, y, nil)
	got, ok := err.(rhdlerr.ArityMismatch)
	if !ok {
		t.Fatalf("expected ArityMismatch, got %s", spew.Sdump(err))
	}
	want := rhdlerr.ArityMismatch{Kind: "and", Got: 1, Expected: 2}
	if diff := deep.Equal(got, want); diff != nil {
		t.Fatalf("unexpected error shape: %v", diff)
	}
}

func TestBuilderRejectsDoubleProducer(t *testing.T) {
	b := ir.NewBuilder("bad")
	a, c, y := b.NewNet(), b.NewNet(), b.NewNet()
	if _, err := b.AddGate(ir.GateAnd, []int{a, c}, y, nil); err != nil {
		t.Fatalf("first AddGate: %v", err)
	}
	_, err := b.AddGate(ir.GateOr, []int{a, c}, y, nil)
	if _, ok := err.(rhdlerr.DoubleProducer); !ok {
		t.Fatalf("expected DoubleProducer, got %v", err)
	}
}

func TestBuilderRejectsEmptyPort(t *testing.T) {
	b := ir.NewBuilder("bad")
	if err := b.AddInput("a", nil); err == nil {
		t.Fatal("expected error for empty port")
	}
}

func TestBuilderRejectsUnknownNet(t *testing.T) {
	b := ir.NewBuilder("bad")
	if _, err := b.AddGate(ir.GateNot, []int{42}, 0, nil); err == nil {
		t.Fatal("expected UnknownNet error")
	} else if _, ok := err.(rhdlerr.UnknownNet); !ok {
		t.Fatalf("expected UnknownNet, got %T: %v", err, err)
	}
}

func TestScheduleSoundness(t *testing.T) {
	// b1 -> not -> b2 -> not -> b3, scheduled out of order must fail.
	b := ir.NewBuilder("chain")
	n := b.NewNets(3)
	if _, err := b.AddGate(ir.GateNot, []int{n[0]}, n[1], nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddGate(ir.GateNot, []int{n[1]}, n[2], nil); err != nil {
		t.Fatal(err)
	}
	if err := b.AddInput("in", []int{n[0]}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddOutput("out", []int{n[2]}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build([]int{1, 0}); err == nil {
		t.Fatal("expected InvalidSchedule for out-of-order schedule")
	}
	if _, err := b.Build([]int{0, 1}); err != nil {
		t.Fatalf("expected correct order to build cleanly: %v", err)
	}
}

func TestRoundTripJSON(t *testing.T) {
	mod := buildAnd(t)
	data, err := mod.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := ir.FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if diff := deep.Equal(mod, got); diff != nil {
		t.Errorf("round-trip mismatch: %v\noriginal: %s\ngot: %s", diff, spew.Sdump(mod), spew.Sdump(got))
	}
}

func TestUnknownGateTypeRejected(t *testing.T) {
	raw := `{"name":"x","net_count":1,"gates":[{"type":"nope","inputs":[],"output":0,"value":null}],"dffs":[],"inputs":{},"outputs":{},"schedule":[0]}`
	if _, err := ir.FromJSON([]byte(raw)); err == nil {
		t.Fatal("expected rejection of unknown gate type")
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	mod := buildAnd(t)
	data, err := mod.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	// Splice in an unrecognized top-level field; decoding must still succeed.
	patched := append(data[:len(data)-1:len(data)-1], []byte(`,"future_field":{"anything":true}}`)...)
	if _, err := ir.FromJSON(patched); err != nil {
		t.Fatalf("expected unknown field to be ignored, got: %v", err)
	}
}
