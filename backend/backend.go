// Package backend is the dispatch façade in front of the three simulation
// strategies (package sim's interpreter, package simjit's threaded-closure
// engine, and package simcompile's specialized-per-IR engine). Callers pick
// a backend.Kind (or "auto") and get back a uniform Engine; everything
// downstream (package runner, package conformance) programs against Engine
// alone.
package backend

import (
	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/rhdlerr"
	"github.com/jmchacon/rhdl/sim"
	"github.com/jmchacon/rhdl/simjit"
)

// Kind names one of the three observationally-equivalent execution
// strategies.
type Kind string

const (
	KindInterpret Kind = "interpret"
	KindJIT       Kind = "jit"
	KindCompile   Kind = "compile"
	KindAuto      Kind = "auto" // pick the fastest backend available, falling back per Options.AllowFallback
)

// Engine is the behavioral contract every backend satisfies: poke/peek
// named ports, advance combinational settling or a clock edge, reset to
// power-on state, and snapshot/restore for save-states or conformance
// cross-checks. It also exposes which of the three strategies it is and
// whether its IR declares a runner, so callers can discover optional
// capabilities without threading the constructor's Options back through
// the rest of the program (§4.5's BackendKind/RunnerKind/Features).
type Engine interface {
	Poke(port string, value uint64) error
	PokeLanes(port string, values []uint64) error
	Peek(port string) (uint64, error)
	PeekLanes(port string) ([]uint64, error)
	Evaluate()
	Tick()
	Reset()
	StateSnapshot() []byte
	StateRestore([]byte) error
	Lanes() int
	Module() *ir.Module

	// BackendKind reports which of interpret/jit/compile actually backs
	// this Engine (never "auto": New already resolved that at construction).
	BackendKind() Kind
	// RunnerKind reports the module's RunnerDescriptor.Kind, or "" if the
	// module declares no runner descriptor.
	RunnerKind() string
	// Features reports this Engine's capability set (same values as the
	// package-level Features(BackendKind())).
	Features() []string
}

// Options configures New.
type Options struct {
	Backend       Kind
	Lanes         int
	AllowFallback bool // if the requested backend cannot serve this IR, fall back to interpret rather than error
}

// New constructs an Engine for mod per opts. Kind defaults to
// KindInterpret when Backend is empty.
func New(mod *ir.Module, opts Options) (Engine, error) {
	lanes := opts.Lanes
	if lanes == 0 {
		lanes = 1
	}
	kind := opts.Backend
	if kind == "" {
		kind = KindInterpret
	}
	if kind == KindAuto {
		kind = KindCompile
	}

	build := func(k Kind) (rawEngine, error) {
		switch k {
		case KindInterpret:
			return sim.New(mod, lanes)
		case KindJIT:
			return simjit.New(mod, lanes)
		case KindCompile:
			return defaultCache.get(mod, lanes)
		default:
			return nil, rhdlerr.BackendUnavailable{Backend: string(k)}
		}
	}

	raw, err := build(kind)
	if err != nil {
		if opts.AllowFallback && kind != KindInterpret {
			raw, err = sim.New(mod, lanes)
			if err != nil {
				return nil, err
			}
			return &handle{rawEngine: raw, kind: KindInterpret}, nil
		}
		return nil, err
	}
	return &handle{rawEngine: raw, kind: kind}, nil
}

// rawEngine is the behavioral surface each concrete backend package
// (sim.Simulator, simjit.Engine, simcompile's engine) implements on its own,
// without knowing its own Kind — that would require each backend package to
// import package backend just to name itself, which would cycle back.
// handle tags a rawEngine with the Kind New resolved it to and the module's
// runner-descriptor kind, completing the Engine contract.
type rawEngine interface {
	Poke(port string, value uint64) error
	PokeLanes(port string, values []uint64) error
	Peek(port string) (uint64, error)
	PeekLanes(port string) ([]uint64, error)
	Evaluate()
	Tick()
	Reset()
	StateSnapshot() []byte
	StateRestore([]byte) error
	Lanes() int
	Module() *ir.Module
}

type handle struct {
	rawEngine
	kind Kind
}

func (h *handle) BackendKind() Kind { return h.kind }

func (h *handle) RunnerKind() string {
	if r := h.Module().Runner; r != nil {
		return r.Kind
	}
	return ""
}

func (h *handle) Features() []string { return Features(h.kind) }

// Features reports the capability bits for a backend kind, for callers
// deciding whether a given IR/backend pairing is viable before constructing
// one (e.g. package conformance skipping RAM-bearing IRs against a backend
// that does not yet model them — none currently exist, but the hook mirrors
// the design's "Features()" accessor).
func Features(k Kind) []string {
	switch k {
	case KindInterpret:
		return []string{"and", "or", "xor", "not", "buf", "mux", "const", "dff", "ram"}
	case KindJIT, KindCompile:
		return []string{"and", "or", "xor", "not", "buf", "mux", "const", "dff", "ram"}
	default:
		return nil
	}
}

var defaultCache = newCompileCache(64 << 20) // default budget in Program.Size units (compiled gates), see cache.go

// CacheStats exposes the compile cache's current occupancy, for
// diagnostics: its entry count and, as bytes, the summed Program.Size
// (compiled gate count) of the cached Programs.
func CacheStats() (entries int, bytes int64) {
	return defaultCache.stats()
}
