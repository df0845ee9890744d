// Package simcore holds the net/register/internal-RAM state machinery and
// binary snapshot codec shared by all three execution backends (package
// sim, package simjit, package simcompile). Each backend embeds a *Core and
// supplies only its own gate-dispatch strategy for the combinational part of
// Evaluate; everything else (lane packing, poke/peek, DFF tick atomicity,
// RAM read/write, snapshot/restore) is identical across backends by
// construction, which is what makes them observationally equivalent.
package simcore

import (
	"log"

	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/rhdlerr"
)

// MaxLanes is the width of the word used to pack lanes.
const MaxLanes = 64

// Core is the lane-packed net/register/RAM state for one simulation
// instance of one ir.Module.
type Core struct {
	Mod      *ir.Module
	Lanes    int
	LaneMask uint64

	Nets []uint64

	dffNext []uint64

	rams []ramState

	logger *log.Logger
}

type ramState struct {
	node  ir.RAMNode
	words [][]uint64 // words[lane][addr]
}

// New allocates a Core for mod with the given lane count and resets it to
// power-on state. Backends call this from their own New and then attach
// their gate-dispatch strategy.
func New(mod *ir.Module, lanes int, logger *log.Logger) (*Core, error) {
	if lanes < 1 || lanes > MaxLanes {
		return nil, rhdlerr.IrMalformed{Field: "lanes", Reason: "must be between 1 and 64"}
	}
	c := &Core{
		Mod:     mod,
		Lanes:   lanes,
		Nets:    make([]uint64, mod.NetCount),
		dffNext: make([]uint64, len(mod.DFFs)),
		logger:  logger,
	}
	if lanes == MaxLanes {
		c.LaneMask = ^uint64(0)
	} else {
		c.LaneMask = (uint64(1) << uint(lanes)) - 1
	}
	c.rams = make([]ramState, len(mod.RAMs))
	for i, node := range mod.RAMs {
		words := make([][]uint64, lanes)
		for l := range words {
			words[l] = make([]uint64, node.Size)
		}
		c.rams[i] = ramState{node: node, words: words}
	}
	return c, nil
}

func (c *Core) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Poke writes a lane-broadcast scalar value into an input port's nets.
func (c *Core) Poke(port string, value uint64) error {
	return c.PokeLanes(port, broadcast(value, c.Lanes))
}

// PokeLanes writes a per-lane value into an input port's nets.
func (c *Core) PokeLanes(port string, values []uint64) error {
	nets, ok := c.Mod.Inputs[port]
	if !ok {
		return rhdlerr.UnknownPort{Name: port}
	}
	if len(values) != c.Lanes {
		return rhdlerr.IrMalformed{Field: "poke.values", Reason: "length must equal lane count"}
	}
	width := len(nets)
	for bit, net := range nets {
		var word uint64
		for lane, v := range values {
			if (v>>uint(bit))&1 != 0 {
				word |= 1 << uint(lane)
			}
		}
		c.Nets[net] = word & c.LaneMask
	}
	if width < MaxLanes {
		for _, v := range values {
			if v>>uint(width) != 0 {
				c.logf("rhdl: %v", rhdlerr.PokeOutOfRange{Port: port, Got: v, Width: width})
				break
			}
		}
	}
	return nil
}

// Peek assembles a port's lane-0 value.
func (c *Core) Peek(port string) (uint64, error) {
	values, err := c.PeekLanes(port)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// PeekLanes assembles every lane's value for a port.
func (c *Core) PeekLanes(port string) ([]uint64, error) {
	nets, ok := c.Mod.Outputs[port]
	if !ok {
		nets, ok = c.Mod.Inputs[port]
		if !ok {
			return nil, rhdlerr.UnknownPort{Name: port}
		}
	}
	values := make([]uint64, c.Lanes)
	for bit, net := range nets {
		word := c.Nets[net]
		for lane := 0; lane < c.Lanes; lane++ {
			if (word>>uint(lane))&1 != 0 {
				values[lane] |= 1 << uint(bit)
			}
		}
	}
	return values, nil
}

func broadcast(value uint64, lanes int) []uint64 {
	out := make([]uint64, lanes)
	for i := range out {
		out[i] = value
	}
	return out
}

// EvaluateRAMs drives every RAM node's dout from its per-lane memory
// contents, addressed combinationally. Call after the combinational gate
// pass (RAM dout may feed further gates only in designs that route it back
// in, which the schedule already accounts for as an external input).
func (c *Core) EvaluateRAMs() {
	for ri := range c.rams {
		c.evaluateRAM(ri)
	}
}

func (c *Core) evaluateRAM(idx int) {
	r := &c.rams[idx]
	for lane := 0; lane < c.Lanes; lane++ {
		addr := c.laneAddr(r.node.Addr, lane)
		val := r.words[lane][addr]
		for bit, net := range r.node.Dout {
			cur := c.Nets[net]
			if (val>>uint(bit))&1 != 0 {
				cur |= 1 << uint(lane)
			} else {
				cur &^= 1 << uint(lane)
			}
			c.Nets[net] = cur
		}
	}
}

func (c *Core) laneAddr(addrNets []int, lane int) int {
	addr := 0
	for bit, net := range addrNets {
		if (c.Nets[net]>>uint(lane))&1 != 0 {
			addr |= 1 << uint(bit)
		}
	}
	return addr
}

func (c *Core) laneValue(dataNets []int, lane int) uint64 {
	var v uint64
	for bit, net := range dataNets {
		if (c.Nets[net]>>uint(lane))&1 != 0 {
			v |= 1 << uint(bit)
		}
	}
	return v
}

// ApplyAsyncResets forces q to 0, lane-wise, for every asynchronous-reset
// DFF whose rst is currently asserted. Call at the end of Evaluate, after
// the combinational pass, so async reset is visible without a Tick.
func (c *Core) ApplyAsyncResets() {
	for _, d := range c.Mod.DFFs {
		if d.Rst != nil && d.AsyncReset {
			rst := c.Nets[*d.Rst]
			c.Nets[d.Q] = c.Nets[d.Q] &^ rst
		}
	}
}

// Tick performs the atomic DFF update (sample every d/rst/en, compute every
// next q, then write back) followed by RAM write commit.
func (c *Core) Tick() {
	for i, d := range c.Mod.DFFs {
		dVal := c.Nets[d.D]
		qVal := c.Nets[d.Q]
		var next uint64
		switch {
		case d.Rst != nil && d.En != nil:
			rst, en := c.Nets[*d.Rst], c.Nets[*d.En]
			next = ((dVal & en) | (qVal &^ en)) &^ rst
		case d.Rst != nil:
			rst := c.Nets[*d.Rst]
			next = dVal &^ rst
		case d.En != nil:
			en := c.Nets[*d.En]
			next = (dVal & en) | (qVal &^ en)
		default:
			next = dVal
		}
		c.dffNext[i] = next & c.LaneMask
	}
	for i, d := range c.Mod.DFFs {
		c.Nets[d.Q] = c.dffNext[i]
	}

	for ri := range c.rams {
		c.commitRAM(ri)
	}
}

func (c *Core) commitRAM(idx int) {
	r := &c.rams[idx]
	for lane := 0; lane < c.Lanes; lane++ {
		if (c.Nets[r.node.We]>>uint(lane))&1 == 0 {
			continue
		}
		addr := c.laneAddr(r.node.Addr, lane)
		r.words[lane][addr] = c.laneValue(r.node.Din, lane)
	}
}

// Reset clears all nets and registers to 0. Internal RAM contents are left
// untouched, matching the host-visible memory spaces' externally-loaded
// convention.
func (c *Core) Reset() {
	for i := range c.Nets {
		c.Nets[i] = 0
	}
	for i := range c.dffNext {
		c.dffNext[i] = 0
	}
}
