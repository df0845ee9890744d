// Package simjit is the threaded-closure backend: at construction it
// compiles each scheduled gate into a closure bound to its concrete input
// and output net indices, so the hot Evaluate loop is a straight slice of
// calls with no per-gate kind dispatch. It is otherwise identical to
// package sim (same simcore.Core for nets/DFF/RAM/snapshot state), so the
// two are observationally equivalent while differing in execution
// strategy — the comparison package conformance exercises.
package simjit

import (
	"log"

	"github.com/jmchacon/rhdl/internal/simcore"
	"github.com/jmchacon/rhdl/ir"
)

type op func(nets []uint64, mask uint64)

// Engine is the threaded-closure backend.
type Engine struct {
	core *simcore.Core
	ops  []op
}

// Option configures an Engine at construction.
type Option func(*config)

type config struct {
	logger *log.Logger
}

// WithLogger installs a logger for non-fatal conditions.
func WithLogger(l *log.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// New constructs an Engine for mod, compiling its schedule into closures
// once up front.
func New(mod *ir.Module, lanes int, opts ...Option) (*Engine, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	core, err := simcore.New(mod, lanes, cfg.logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{core: core}
	e.compile(mod)
	return e, nil
}

// compile threads each scheduled gate into a closure. Splitting compilation
// out of Evaluate is the entire point of this backend: Evaluate itself does
// no switch on gate kind, just a call through e.ops.
func (e *Engine) compile(mod *ir.Module) {
	e.ops = make([]op, len(mod.Schedule))
	for i, gid := range mod.Schedule {
		g := mod.Gates[gid]
		out := g.Output
		switch g.Kind {
		case ir.GateAnd:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			e.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] & nets[in1]) & mask }
		case ir.GateOr:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			e.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] | nets[in1]) & mask }
		case ir.GateXor:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			e.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] ^ nets[in1]) & mask }
		case ir.GateNot:
			in0 := g.Inputs[0]
			e.ops[i] = func(nets []uint64, mask uint64) { nets[out] = ^nets[in0] & mask }
		case ir.GateBuf:
			in0 := g.Inputs[0]
			e.ops[i] = func(nets []uint64, mask uint64) { nets[out] = nets[in0] & mask }
		case ir.GateMux:
			in0, in1, in2 := g.Inputs[0], g.Inputs[1], g.Inputs[2]
			e.ops[i] = func(nets []uint64, mask uint64) {
				a, b, sel := nets[in0], nets[in1], nets[in2]
				nets[out] = ((a & ^sel) | (b & sel)) & mask
			}
		case ir.GateConst:
			var v uint64
			if g.Value != nil && *g.Value != 0 {
				v = 1
			}
			e.ops[i] = func(nets []uint64, mask uint64) {
				if v != 0 {
					nets[out] = mask
				} else {
					nets[out] = 0
				}
			}
		default:
			e.ops[i] = func(nets []uint64, mask uint64) {}
		}
	}
}

// Module returns the IR this engine executes.
func (e *Engine) Module() *ir.Module { return e.core.Mod }

// Lanes returns the lane count this engine was constructed with.
func (e *Engine) Lanes() int { return e.core.Lanes }

// Poke writes a lane-broadcast scalar value into an input port's nets.
func (e *Engine) Poke(port string, value uint64) error { return e.core.Poke(port, value) }

// PokeLanes writes a per-lane value into an input port's nets.
func (e *Engine) PokeLanes(port string, values []uint64) error {
	return e.core.PokeLanes(port, values)
}

// Peek reads a port's lane-0 value.
func (e *Engine) Peek(port string) (uint64, error) { return e.core.Peek(port) }

// PeekLanes reads every lane's value for a port.
func (e *Engine) PeekLanes(port string) ([]uint64, error) { return e.core.PeekLanes(port) }

// Reset clears all nets and registers to 0.
func (e *Engine) Reset() { e.core.Reset() }

// StateSnapshot serializes the engine's full state.
func (e *Engine) StateSnapshot() []byte { return e.core.StateSnapshot() }

// StateRestore restores a previously captured snapshot.
func (e *Engine) StateRestore(data []byte) error { return e.core.StateRestore(data) }

// Evaluate runs the compiled closures in schedule order, then drives RAM
// dout and asynchronous-reset DFF q.
func (e *Engine) Evaluate() {
	nets := e.core.Nets
	mask := e.core.LaneMask
	for _, fn := range e.ops {
		fn(nets, mask)
	}
	e.core.EvaluateRAMs()
	e.core.ApplyAsyncResets()
}

// Tick performs the atomic DFF update and RAM write commit.
func (e *Engine) Tick() { e.core.Tick() }
