package conformance

import (
	"github.com/jmchacon/rhdl/component"
	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/lower"
)

// buildAnd returns the §8 scenario 1 two-input AND IR.
func buildAnd() *ir.Module {
	b := ir.NewBuilder("and2")
	a, bb, y := b.NewNet(), b.NewNet(), b.NewNet()
	must(b.AddInput("a", []int{a}))
	must(b.AddInput("b", []int{bb}))
	must(b.AddOutput("y", []int{y}))
	mustGate(b.AddGate(ir.GateAnd, []int{a, bb}, y, nil))
	return mustModule(b.Build(b.CombinationalGateIDs()))
}

// buildEnabledDFF returns the §8 scenario 2 enable-gated, sync-reset DFF IR.
func buildEnabledDFF() *ir.Module {
	b := ir.NewBuilder("edff")
	d, q, en, rst := b.NewNet(), b.NewNet(), b.NewNet(), b.NewNet()
	must(b.AddInput("d", []int{d}))
	must(b.AddInput("en", []int{en}))
	must(b.AddInput("rst", []int{rst}))
	must(b.AddOutput("q", []int{q}))
	mustGate(b.AddDFF(d, q, &rst, &en, false))
	return mustModule(b.Build(nil))
}

// buildAdder8 returns an 8-bit ripple-carry adder built through the
// component/lower pipeline (§8 scenario 4), exercising structural lowering
// as well as the backends.
func buildAdder8() *ir.Module {
	top := component.Composite(
		[]component.Instance{
			{
				Name:       "add",
				Descriptor: component.Adder(8),
				Inputs: map[string]component.Source{
					"a":   {FromParentInput: "a"},
					"b":   {FromParentInput: "b"},
					"cin": {FromParentInput: "cin"},
				},
			},
		},
		map[string]int{"a": 8, "b": 8, "cin": 1},
		map[string]int{"sum": 8, "cout": 1},
		map[string]component.Source{
			"sum":  {FromInstance: "add", FromPort: "sum"},
			"cout": {FromInstance: "add", FromPort: "cout"},
		},
	)
	mod, err := lower.Lower("adder8", top, lower.Options{})
	if err != nil {
		panic(err)
	}
	return mod
}

// buildRAM returns a bare RAM IR (addr/din/we inputs, dout output).
func buildRAM(addrWidth, dataWidth int) *ir.Module {
	b := ir.NewBuilder("ram")
	addr := b.NewNets(addrWidth)
	din := b.NewNets(dataWidth)
	we := b.NewNet()
	must(b.AddInput("addr", addr))
	must(b.AddInput("din", din))
	must(b.AddInput("we", []int{we}))
	dout := b.NewNets(dataWidth)
	mustGate(b.AddRAM(1<<uint(addrWidth), addr, din, dout, we))
	must(b.AddOutput("dout", dout))
	return mustModule(b.Build(nil))
}

// buildCrossCoupledSwap returns two externally-loadable, cross-coupled DFFs
// that swap their q values on every tick once loaded (§8 "flop swap").
func buildCrossCoupledSwap() *ir.Module {
	b := ir.NewBuilder("swap2")
	da, db := b.NewNet(), b.NewNet()
	qa, qb := b.NewNet(), b.NewNet()
	load := b.NewNet()
	must(b.AddInput("da", []int{da}))
	must(b.AddInput("db", []int{db}))
	must(b.AddInput("load", []int{load}))
	must(b.AddOutput("qa", []int{qa}))
	must(b.AddOutput("qb", []int{qb}))

	notLoad := b.NewNet()
	mustGate(b.AddGate(ir.GateNot, []int{load}, notLoad, nil))

	daLoaded, daHeld, daMux := b.NewNet(), b.NewNet(), b.NewNet()
	mustGate(b.AddGate(ir.GateAnd, []int{da, load}, daLoaded, nil))
	mustGate(b.AddGate(ir.GateAnd, []int{qb, notLoad}, daHeld, nil))
	mustGate(b.AddGate(ir.GateOr, []int{daLoaded, daHeld}, daMux, nil))

	dbLoaded, dbHeld, dbMux := b.NewNet(), b.NewNet(), b.NewNet()
	mustGate(b.AddGate(ir.GateAnd, []int{db, load}, dbLoaded, nil))
	mustGate(b.AddGate(ir.GateAnd, []int{qa, notLoad}, dbHeld, nil))
	mustGate(b.AddGate(ir.GateOr, []int{dbLoaded, dbHeld}, dbMux, nil))

	mustGate(b.AddDFF(daMux, qa, nil, nil, false))
	mustGate(b.AddDFF(dbMux, qb, nil, nil, false))
	return mustModule(b.Build(b.CombinationalGateIDs()))
}

// buildCounterRunner returns a free-running 8-bit counter (q <- q+1 every
// tick) exposed as a runner IR with no memory spaces or bus, just a
// "pc_debug" output port — the minimal fixture for exercising the runner's
// batched RunCycles conservation property (§8 "Runner conservation").
func buildCounterRunner() *ir.Module {
	b := ir.NewBuilder("counter")
	q := b.NewNets(8)
	zero := b.NewNet()
	mustGate(b.AddGate(ir.GateConst, nil, zero, intPtr(0)))

	carry := zero
	for i := 0; i < 8; i++ {
		bitConst := b.NewNet()
		v := 0
		if i == 0 {
			v = 1
		}
		mustGate(b.AddGate(ir.GateConst, nil, bitConst, intPtr(v)))

		axb := b.NewNet()
		mustGate(b.AddGate(ir.GateXor, []int{q[i], bitConst}, axb, nil))
		sum := b.NewNet()
		mustGate(b.AddGate(ir.GateXor, []int{axb, carry}, sum, nil))

		aANDb := b.NewNet()
		mustGate(b.AddGate(ir.GateAnd, []int{q[i], bitConst}, aANDb, nil))
		axbANDc := b.NewNet()
		mustGate(b.AddGate(ir.GateAnd, []int{axb, carry}, axbANDc, nil))
		nextCarry := b.NewNet()
		mustGate(b.AddGate(ir.GateOr, []int{aANDb, axbANDc}, nextCarry, nil))

		mustGate(b.AddDFF(sum, q[i], nil, nil, false))
		carry = nextCarry
	}

	must(b.AddOutput("pc_debug", q))
	b.SetRunner(&ir.RunnerDescriptor{
		Kind: "counter",
		IO:   ir.IO{PCDebug: "pc_debug"},
	})
	return mustModule(b.Build(b.CombinationalGateIDs()))
}

func intPtr(v int) *int { return &v }

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustGate(id int, err error) int {
	if err != nil {
		panic(err)
	}
	return id
}

func mustModule(mod *ir.Module, err error) *ir.Module {
	if err != nil {
		panic(err)
	}
	return mod
}
