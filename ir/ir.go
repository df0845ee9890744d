// Package ir defines the typed in-memory graph of nets, gates, flip-flops,
// named port bundles, and an evaluation schedule that is the backend ABI for
// the rest of the framework. An ir.Module is built once by lowering (see
// package lower) and is immutable afterward: the simulator packages only
// ever read it.
package ir

import "github.com/jmchacon/rhdl/rhdlerr"

// GateKind is the dense discriminant for a combinational gate. Kept as a
// small integer enum (rather than per-kind types with virtual dispatch) so
// the simulator's hot loop can switch on it directly.
type GateKind int

const (
	GateUnimplemented GateKind = iota // start of valid enumeration
	GateAnd
	GateOr
	GateXor
	GateNot
	GateMux
	GateBuf
	GateConst
	gateMax // end of valid enumeration
)

// String implements fmt.Stringer, and also doubles as the canonical JSON ABI
// spelling for the gate's "type" field.
func (k GateKind) String() string {
	switch k {
	case GateAnd:
		return "and"
	case GateOr:
		return "or"
	case GateXor:
		return "xor"
	case GateNot:
		return "not"
	case GateMux:
		return "mux"
	case GateBuf:
		return "buf"
	case GateConst:
		return "const"
	default:
		return "unknown"
	}
}

// ParseGateKind is the inverse of GateKind.String, used when decoding the
// JSON ABI. It returns false for any spelling not in the fixed set; callers
// MUST reject the decode in that case rather than guess.
func ParseGateKind(s string) (GateKind, bool) {
	switch s {
	case "and":
		return GateAnd, true
	case "or":
		return GateOr, true
	case "xor":
		return GateXor, true
	case "not":
		return GateNot, true
	case "mux":
		return GateMux, true
	case "buf":
		return GateBuf, true
	case "const":
		return GateConst, true
	default:
		return GateUnimplemented, false
	}
}

// Arity returns the expected input count for a gate kind, or -1 for kinds
// (none currently) with variable arity. AND/OR/XOR are binary: n-ary
// reduction to binary trees happens during lowering (package lower), not
// here — by the time a gate reaches the IR it is already in final form.
func (k GateKind) Arity() int {
	switch k {
	case GateNot, GateBuf:
		return 1
	case GateMux:
		return 3
	case GateConst:
		return 0
	case GateAnd, GateOr, GateXor:
		return 2
	default:
		return -1
	}
}

// Gate is a single combinational operation. Value is only meaningful (and
// only present) for GateConst.
type Gate struct {
	Kind    GateKind
	Inputs  []int
	Output  int
	Value   *int // 0 or 1, non-nil only for GateConst
}

// DFF is a single D-type flip-flop. Rst and En are optional (nil means the
// signal is absent, not that it is tied to a constant).
type DFF struct {
	D          int
	Q          int
	Rst        *int
	En         *int
	AsyncReset bool
}

// RAMNode is the opaque behavioral memory primitive described in the
// lowering design ("RAM is modeled as a behavioral memory primitive, not
// expanded to gates"). The simulator owns the backing storage and special-
// cases evaluate/tick for each RAMNode rather than treating it as a gate or
// DFF. This is distinct from the runner layer's host-visible memory
// spaces: a RAMNode is internal design state (e.g. an on-chip register
// file) with a size fixed at lowering time, never touched by a host.
type RAMNode struct {
	Size int // addressable word count, i.e. 2^len(Addr)
	Addr []int
	Din  []int
	Dout []int
	We   int
}

// MemorySpaceKind enumerates the runner-visible memory space flavors.
type MemorySpaceKind string

const (
	MemoryRAM     MemorySpaceKind = "ram"
	MemoryROM     MemorySpaceKind = "rom"
	MemoryBootROM MemorySpaceKind = "boot_rom"
)

// MemorySpace names one host-visible memory region and its size in bytes.
type MemorySpace struct {
	Name string
	Size int
	Kind MemorySpaceKind
}

// IO names the optional runner I/O hook signals. Each field is a port name
// (resolved against the module's input/output ports); an empty string means
// the hook is absent for this IR.
type IO struct {
	KeyIn           string
	KeyReady        string
	KeyClear        string
	TextDirtyRegion string
	Speaker         string
	PCDebug         string
	Halt            string
	// Reset names the input port Runner.Reset asserts for one cycle before
	// releasing, per §4.4. Empty means the IR declares no machine-checkable
	// reset net; see DESIGN.md's Open Question decisions for Runner.Reset's
	// fallback behavior in that case.
	Reset string
}

// Bus names the four signals the runner drives/samples to model an external
// combinational memory response (see Runner.RunCycles step 4).
type Bus struct {
	Addr    string
	DataIn  string
	DataOut string
	We      string
	Re      string
}

// RunnerDescriptor is present only on IRs intended for embedded host
// execution (package runner). It names the signals the runner layer binds
// to; the core never interprets these names itself outside that binding.
type RunnerDescriptor struct {
	Kind         string
	MemorySpaces []MemorySpace
	IO           IO
	Bus          Bus
	SubCycles    int
	ResetCycles  int // cycles Runner.Reset runs after releasing reset (1 when unset); see DESIGN.md Open Question
}

// Module is the complete, immutable gate-level IR. Treat every field as
// read-only once returned by lower.Lower or FromJSON.
type Module struct {
	Name     string
	NetCount int
	Gates    []Gate
	DFFs     []DFF
	RAMs     []RAMNode
	Inputs   map[string][]int
	Outputs  map[string][]int
	Schedule []int
	Runner   *RunnerDescriptor
}

// netBound reports whether id is a valid net id for this module.
func (m *Module) netBound(id int) bool {
	return id >= 0 && id < m.NetCount
}

func checkNetList(m *Module, ids []int) error {
	for _, id := range ids {
		if !m.netBound(id) {
			return rhdlerr.UnknownNet{ID: id}
		}
	}
	return nil
}

// Validate re-checks the invariants listed in the design's data model
// section against a fully-built module. lower.Lower and FromJSON both call
// this before handing a Module to a caller; it is exported so tests and
// conformance tooling can re-validate after manual construction.
func (m *Module) Validate() error {
	if m.NetCount < 0 {
		return rhdlerr.IrMalformed{Field: "net_count", Reason: "negative"}
	}
	producer := make(map[int]bool, m.NetCount)
	for _, g := range m.Gates {
		if !m.netBound(g.Output) {
			return rhdlerr.UnknownNet{ID: g.Output}
		}
		for _, in := range g.Inputs {
			if !m.netBound(in) {
				return rhdlerr.UnknownNet{ID: in}
			}
		}
		if arity := g.Kind.Arity(); arity >= 0 && len(g.Inputs) != arity {
			return rhdlerr.ArityMismatch{Kind: g.Kind.String(), Got: len(g.Inputs), Expected: arity}
		}
		if producer[g.Output] {
			return rhdlerr.DoubleProducer{Net: g.Output}
		}
		producer[g.Output] = true
	}
	for _, d := range m.DFFs {
		for _, id := range []int{d.D, d.Q} {
			if !m.netBound(id) {
				return rhdlerr.UnknownNet{ID: id}
			}
		}
		if d.Rst != nil && !m.netBound(*d.Rst) {
			return rhdlerr.UnknownNet{ID: *d.Rst}
		}
		if d.En != nil && !m.netBound(*d.En) {
			return rhdlerr.UnknownNet{ID: *d.En}
		}
		if producer[d.Q] {
			return rhdlerr.DoubleProducer{Net: d.Q}
		}
		producer[d.Q] = true
	}
	for _, r := range m.RAMs {
		all := append(append(append([]int(nil), r.Addr...), r.Din...), r.Dout...)
		all = append(all, r.We)
		if err := checkNetList(m, all); err != nil {
			return err
		}
		for _, id := range r.Dout {
			if producer[id] {
				return rhdlerr.DoubleProducer{Net: id}
			}
			producer[id] = true
		}
	}
	for name, nets := range m.Inputs {
		if len(nets) == 0 {
			return rhdlerr.IrMalformed{Field: "inputs." + name, Reason: "empty port"}
		}
		for _, id := range nets {
			if !m.netBound(id) {
				return rhdlerr.UnknownNet{ID: id}
			}
		}
	}
	for name, nets := range m.Outputs {
		if len(nets) == 0 {
			return rhdlerr.IrMalformed{Field: "outputs." + name, Reason: "empty port"}
		}
		for _, id := range nets {
			if !m.netBound(id) {
				return rhdlerr.UnknownNet{ID: id}
			}
		}
	}
	return validateSchedule(m.Gates, m.Schedule)
}

// Assemble builds and validates a Module from its raw parts. It is the
// shared finalization path used both by Builder.Build and by package
// lower's post-dead-net-elision reassembly (which needs to drop gates
// Builder already accepted, something Builder itself does not support
// undoing).
func Assemble(name string, netCount int, gates []Gate, dffs []DFF, rams []RAMNode, inputs, outputs map[string][]int, schedule []int, runner *RunnerDescriptor) (*Module, error) {
	if err := validateSchedule(gates, schedule); err != nil {
		return nil, err
	}
	m := &Module{
		Name:     name,
		NetCount: netCount,
		Gates:    append([]Gate(nil), gates...),
		DFFs:     append([]DFF(nil), dffs...),
		RAMs:     append([]RAMNode(nil), rams...),
		Inputs:   inputs,
		Outputs:  outputs,
		Schedule: append([]int(nil), schedule...),
		Runner:   runner,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validateSchedule checks that ids is exactly a permutation of the
// combinational gate indices and that every gate appears after the gates
// producing its inputs (Kahn-order soundness, §8 "Schedule soundness").
func validateSchedule(gates []Gate, ids []int) error {
	if len(ids) != len(gates) {
		if len(ids) < len(gates) {
			return rhdlerr.InvalidSchedule{Kind: "missing", Detail: "schedule shorter than gate count"}
		}
		return rhdlerr.InvalidSchedule{Kind: "duplicate", Detail: "schedule longer than gate count"}
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(gates) {
			return rhdlerr.InvalidSchedule{Kind: "missing", Detail: "schedule references unknown gate id"}
		}
		if seen[id] {
			return rhdlerr.InvalidSchedule{Kind: "duplicate", Detail: "gate id repeated in schedule"}
		}
		seen[id] = true
	}
	producedBy := make(map[int]int, len(gates)) // net -> gate id
	for i, g := range gates {
		producedBy[g.Output] = i
	}
	ready := make(map[int]bool, len(gates))
	for _, gid := range ids {
		g := gates[gid]
		for _, in := range g.Inputs {
			if srcGate, ok := producedBy[in]; ok && !ready[srcGate] {
				return rhdlerr.InvalidSchedule{Kind: "cycle", Detail: "gate scheduled before a producer of its input"}
			}
		}
		ready[gid] = true
	}
	return nil
}
