package simcompile_test

import (
	"testing"

	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/simcompile"
)

func buildAnd(t *testing.T) *ir.Module {
	t.Helper()
	b := ir.NewBuilder("and2")
	a, bb, y := b.NewNet(), b.NewNet(), b.NewNet()
	if err := b.AddInput("a", []int{a}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddInput("b", []int{bb}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddOutput("y", []int{y}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddGate(ir.GateAnd, []int{a, bb}, y, nil); err != nil {
		t.Fatal(err)
	}
	mod, err := b.Build(b.CombinationalGateIDs())
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

// buildEnabledDFF wires an 8-bit d/q register sharing one en and one rst,
// wide enough for §8 scenario 2's 0xAA/0x55 values.
func buildEnabledDFF(t *testing.T) *ir.Module {
	t.Helper()
	b := ir.NewBuilder("edff")
	d, q := b.NewNets(8), b.NewNets(8)
	en, rst := b.NewNet(), b.NewNet()
	if err := b.AddInput("d", d); err != nil {
		t.Fatal(err)
	}
	if err := b.AddInput("en", []int{en}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddInput("rst", []int{rst}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddOutput("q", q); err != nil {
		t.Fatal(err)
	}
	for i := range d {
		if _, err := b.AddDFF(d[i], q[i], &rst, &en, false); err != nil {
			t.Fatal(err)
		}
	}
	mod, err := b.Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestCompileMatchesTruthTable(t *testing.T) {
	mod := buildAnd(t)
	e, err := simcompile.New(mod, 1)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct{ a, b, want uint64 }{
		{0, 0, 0}, {0, 1, 0}, {1, 0, 0}, {1, 1, 1},
	}
	for _, c := range cases {
		if err := e.Poke("a", c.a); err != nil {
			t.Fatal(err)
		}
		if err := e.Poke("b", c.b); err != nil {
			t.Fatal(err)
		}
		e.Evaluate()
		got, err := e.Peek("y")
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("AND(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompileEnableGatedDFF(t *testing.T) {
	mod := buildEnabledDFF(t)
	e, err := simcompile.New(mod, 1)
	if err != nil {
		t.Fatal(err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(e.Poke("d", 0xAA))
	must(e.Poke("en", 1))
	must(e.Poke("rst", 0))
	e.Evaluate()
	e.Tick()
	if got, _ := e.Peek("q"); got != 0xAA {
		t.Fatalf("q = %#x, want 0xaa", got)
	}

	must(e.Poke("d", 0x55))
	must(e.Poke("en", 0))
	e.Evaluate()
	e.Tick()
	if got, _ := e.Peek("q"); got != 0xAA {
		t.Fatalf("q after en=0 = %#x, want held 0xaa", got)
	}

	must(e.Poke("rst", 1))
	e.Evaluate()
	e.Tick()
	if got, _ := e.Peek("q"); got != 0 {
		t.Fatalf("q after rst=1 = %#x, want 0", got)
	}
}

func TestCompileStateSnapshotRoundTrip(t *testing.T) {
	mod := buildEnabledDFF(t)
	e, err := simcompile.New(mod, 1)
	if err != nil {
		t.Fatal(err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(e.Poke("d", 1))
	must(e.Poke("en", 1))
	must(e.Poke("rst", 0))
	e.Evaluate()
	e.Tick()

	snap := e.StateSnapshot()
	restored, err := simcompile.New(mod, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.StateRestore(snap); err != nil {
		t.Fatalf("StateRestore: %v", err)
	}
	got, err := restored.Peek("q")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Fatalf("restored q = %d, want 1", got)
	}
}

// TestProgramSharedAcrossInstances verifies a single Compile()d Program can
// back multiple independent Engines (the cache-hit path package backend's
// dispatch façade relies on), and that their states do not alias.
func TestProgramSharedAcrossInstances(t *testing.T) {
	mod := buildAnd(t)
	prog := simcompile.Compile(mod)
	if prog.Size() <= 0 {
		t.Fatalf("Size() = %d, want > 0", prog.Size())
	}

	e1, err := simcompile.NewFromProgram(mod, prog, 1)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := simcompile.NewFromProgram(mod, prog, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := e1.Poke("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := e1.Poke("b", 1); err != nil {
		t.Fatal(err)
	}
	e1.Evaluate()

	if err := e2.Poke("a", 0); err != nil {
		t.Fatal(err)
	}
	if err := e2.Poke("b", 0); err != nil {
		t.Fatal(err)
	}
	e2.Evaluate()

	got1, _ := e1.Peek("y")
	got2, _ := e2.Peek("y")
	if got1 != 1 {
		t.Errorf("e1 y = %d, want 1", got1)
	}
	if got2 != 0 {
		t.Errorf("e2 y = %d, want 0", got2)
	}
}
