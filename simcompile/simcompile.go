// Package simcompile is the ahead-of-time backend: it compiles a Program
// once per distinct IR (the compiled closures reference only net indices,
// not any particular instance's state, so one Program is reusable across
// every Instance built from the same IR regardless of lane count) and
// caches it by content hash. Package backend's dispatch façade owns the
// actual cache (content-addressed, LRU-bounded); this package only exposes
// the compile step and the per-instance Engine.
package simcompile

import (
	"log"

	"github.com/jmchacon/rhdl/internal/simcore"
	"github.com/jmchacon/rhdl/ir"
)

type op func(nets []uint64, mask uint64)

// Program is the compiled, instance-independent dispatch plan for one IR.
// It has no mutable state and is safe to share across many Instances.
type Program struct {
	ops []op
}

// Compile builds a Program for mod's schedule.
func Compile(mod *ir.Module) *Program {
	p := &Program{ops: make([]op, len(mod.Schedule))}
	for i, gid := range mod.Schedule {
		g := mod.Gates[gid]
		out := g.Output
		switch g.Kind {
		case ir.GateAnd:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			p.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] & nets[in1]) & mask }
		case ir.GateOr:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			p.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] | nets[in1]) & mask }
		case ir.GateXor:
			in0, in1 := g.Inputs[0], g.Inputs[1]
			p.ops[i] = func(nets []uint64, mask uint64) { nets[out] = (nets[in0] ^ nets[in1]) & mask }
		case ir.GateNot:
			in0 := g.Inputs[0]
			p.ops[i] = func(nets []uint64, mask uint64) { nets[out] = ^nets[in0] & mask }
		case ir.GateBuf:
			in0 := g.Inputs[0]
			p.ops[i] = func(nets []uint64, mask uint64) { nets[out] = nets[in0] & mask }
		case ir.GateMux:
			in0, in1, in2 := g.Inputs[0], g.Inputs[1], g.Inputs[2]
			p.ops[i] = func(nets []uint64, mask uint64) {
				a, b, sel := nets[in0], nets[in1], nets[in2]
				nets[out] = ((a & ^sel) | (b & sel)) & mask
			}
		case ir.GateConst:
			var v uint64
			if g.Value != nil && *g.Value != 0 {
				v = 1
			}
			p.ops[i] = func(nets []uint64, mask uint64) {
				if v != 0 {
					nets[out] = mask
				} else {
					nets[out] = 0
				}
			}
		default:
			p.ops[i] = func(nets []uint64, mask uint64) {}
		}
	}
	return p
}

// Size is a rough cost estimate (one entry per compiled gate) used by
// package backend's memory-budgeted cache.
func (p *Program) Size() int64 { return int64(len(p.ops)) }

// Engine is one simulation instance bound to a (possibly shared) Program.
type Engine struct {
	core    *simcore.Core
	program *Program
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

// New compiles a fresh Program for mod and binds a new Engine to it. Use
// NewFromProgram to reuse an already-compiled Program (the cache-hit path).
func New(mod *ir.Module, lanes int, opts ...Option) (*Engine, error) {
	return NewFromProgram(mod, Compile(mod), lanes, opts...)
}

// NewFromProgram binds a new Engine to an already-compiled Program, the
// cache-hit path package backend's dispatch façade uses.
func NewFromProgram(mod *ir.Module, program *Program, lanes int, opts ...Option) (*Engine, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	core, err := simcore.New(mod, lanes, cfg.logger)
	if err != nil {
		return nil, err
	}
	return &Engine{core: core, program: program}, nil
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

// Evaluate runs the compiled program, then drives RAM dout and
// asynchronous-reset DFF q.
func (e *Engine) Evaluate() {
	nets := e.core.Nets
	mask := e.core.LaneMask
	for _, fn := range e.program.ops {
		fn(nets, mask)
	}
	e.core.EvaluateRAMs()
	e.core.ApplyAsyncResets()
}

// Tick performs the atomic DFF update and RAM write commit.
func (e *Engine) Tick() { e.core.Tick() }
