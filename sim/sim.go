// Package sim is the interpreter backend: a straight switch-dispatch loop
// over the module's schedule. It is the reference implementation the other
// two backends (package simjit, package simcompile) are checked against for
// observational equivalence.
package sim

import (
	"log"

	"github.com/jmchacon/rhdl/internal/simcore"
	"github.com/jmchacon/rhdl/ir"
)

// Simulator is the interpreter backend.
type Simulator struct {
	core *simcore.Core
}

// Option configures a Simulator at construction.
type Option func(*simulatorConfig)

type simulatorConfig struct {
	logger *log.Logger
}

// WithLogger installs a logger for non-fatal conditions (PokeOutOfRange).
// The default discards these.
func WithLogger(l *log.Logger) Option {
	return func(cfg *simulatorConfig) { cfg.logger = l }
}

// New constructs a Simulator for mod with the given lane count (1..64).
func New(mod *ir.Module, lanes int, opts ...Option) (*Simulator, error) {
	var cfg simulatorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	core, err := simcore.New(mod, lanes, cfg.logger)
	if err != nil {
		return nil, err
	}
	return &Simulator{core: core}, nil
}

// Module returns the IR this simulator executes.
func (s *Simulator) Module() *ir.Module { return s.core.Mod }

// Lanes returns the lane count this simulator was constructed with.
func (s *Simulator) Lanes() int { return s.core.Lanes }

// Poke writes a lane-broadcast scalar value into an input port's nets.
func (s *Simulator) Poke(port string, value uint64) error { return s.core.Poke(port, value) }

// PokeLanes writes a per-lane value into an input port's nets.
func (s *Simulator) PokeLanes(port string, values []uint64) error {
	return s.core.PokeLanes(port, values)
}

// Peek reads a port's lane-0 value.
func (s *Simulator) Peek(port string) (uint64, error) { return s.core.Peek(port) }

// PeekLanes reads every lane's value for a port.
func (s *Simulator) PeekLanes(port string) ([]uint64, error) { return s.core.PeekLanes(port) }

// Reset clears all nets and registers to 0.
func (s *Simulator) Reset() { s.core.Reset() }

// StateSnapshot serializes the simulator's full state.
func (s *Simulator) StateSnapshot() []byte { return s.core.StateSnapshot() }

// StateRestore restores a previously captured snapshot.
func (s *Simulator) StateRestore(data []byte) error { return s.core.StateRestore(data) }

// Evaluate executes the schedule once via a gate-kind switch, then drives
// RAM dout and forces asynchronous-reset DFF q low where rst is asserted.
func (s *Simulator) Evaluate() {
	mod := s.core.Mod
	nets := s.core.Nets
	mask := s.core.LaneMask
	for _, gid := range mod.Schedule {
		g := mod.Gates[gid]
		var out uint64
		switch g.Kind {
		case ir.GateAnd:
			out = nets[g.Inputs[0]] & nets[g.Inputs[1]]
		case ir.GateOr:
			out = nets[g.Inputs[0]] | nets[g.Inputs[1]]
		case ir.GateXor:
			out = nets[g.Inputs[0]] ^ nets[g.Inputs[1]]
		case ir.GateNot:
			out = ^nets[g.Inputs[0]]
		case ir.GateBuf:
			out = nets[g.Inputs[0]]
		case ir.GateMux:
			a, b, sel := nets[g.Inputs[0]], nets[g.Inputs[1]], nets[g.Inputs[2]]
			out = (a & ^sel) | (b & sel)
		case ir.GateConst:
			if g.Value != nil && *g.Value != 0 {
				out = mask
			} else {
				out = 0
			}
		}
		nets[g.Output] = out & mask
	}
	s.core.EvaluateRAMs()
	s.core.ApplyAsyncResets()
}

// Tick performs the atomic DFF update and RAM write commit.
func (s *Simulator) Tick() { s.core.Tick() }
