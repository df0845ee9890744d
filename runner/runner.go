// Package runner is the host-facing layer wrapped around a backend.Engine:
// it owns the host-visible memory spaces (RAM/ROM/boot_rom) an embedded
// design declares in its ir.RunnerDescriptor, services the combinational
// memory bus each cycle, and folds a whole batch of clock edges into one
// RunCycles call the way a host application wants to drive it. Grounded on
// the host/memory/PowerOn split in memory/memory.go and the reset-vector
// load sequence in cpu/cpu.go's Reset, generalized from the 6502-specific
// RESET_VECTOR constant to any ir.RunnerDescriptor.
package runner

import (
	"bytes"
	"encoding/binary"

	"github.com/jmchacon/rhdl/backend"
	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/rhdlerr"
)

// Telemetry is what RunCycles reports back after servicing a batch of
// cycles: the host-visible side effects a caller needs without having to
// peek every port itself.
type Telemetry struct {
	CyclesRun       int
	TextDirtyRegion bool
	SpeakerToggles  int
	KeyCleared      bool
	Halted          bool
	PCDebug         uint64
}

// Runner wraps a backend.Engine for a module that declares an
// ir.RunnerDescriptor, owning host-visible memory and the batched
// clock/bus/I-O hot path.
type Runner struct {
	eng  backend.Engine
	mod  *ir.Module
	desc *ir.RunnerDescriptor
	mem  map[string][]byte

	prevSpeaker uint64
	keyHeld     bool
}

// New wraps eng in a Runner. eng's module must declare a RunnerDescriptor.
func New(eng backend.Engine) (*Runner, error) {
	mod := eng.Module()
	if mod.Runner == nil {
		return nil, rhdlerr.IrIncompatible{Reason: "module declares no runner descriptor"}
	}
	desc := mod.Runner
	mem := make(map[string][]byte, len(desc.MemorySpaces))
	for _, sp := range desc.MemorySpaces {
		mem[sp.Name] = make([]byte, sp.Size)
	}
	return &Runner{eng: eng, mod: mod, desc: desc, mem: mem}, nil
}

// Engine returns the backend.Engine this Runner wraps.
func (r *Runner) Engine() backend.Engine { return r.eng }

func (r *Runner) space(name string) ([]byte, error) {
	m, ok := r.mem[name]
	if !ok {
		return nil, rhdlerr.UnknownSignal{Name: name}
	}
	return m, nil
}

// LoadMemory writes data into a named memory space starting at offset.
func (r *Runner) LoadMemory(space string, offset int, data []byte) error {
	m, err := r.space(space)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(m) {
		return rhdlerr.LoadOutOfBounds{Space: space, Offset: offset, Length: len(data), Size: len(m)}
	}
	copy(m[offset:], data)
	return nil
}

// ReadMemory reads length bytes from a named memory space starting at
// offset.
func (r *Runner) ReadMemory(space string, offset, length int) ([]byte, error) {
	m, err := r.space(space)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > len(m) {
		return nil, rhdlerr.LoadOutOfBounds{Space: space, Offset: offset, Length: length, Size: len(m)}
	}
	out := make([]byte, length)
	copy(out, m[offset:offset+length])
	return out, nil
}

// resetVectorSpace picks the space the reset vector is programmed into:
// the declared boot_rom if present, else the first rom, else the first
// declared space at all — mirroring the single fixed RESET_VECTOR location
// convention, generalized since the IR may name its spaces however it
// likes.
func (r *Runner) resetVectorSpace() (string, error) {
	var rom, any string
	for _, sp := range r.desc.MemorySpaces {
		if any == "" {
			any = sp.Name
		}
		switch sp.Kind {
		case ir.MemoryBootROM:
			return sp.Name, nil
		case ir.MemoryROM:
			if rom == "" {
				rom = sp.Name
			}
		}
	}
	if rom != "" {
		return rom, nil
	}
	if any == "" {
		return "", rhdlerr.IrIncompatible{Reason: "runner declares no memory spaces"}
	}
	return any, nil
}

// SetResetVector programs the reset vector into the last two bytes of the
// reset memory space, little-endian, matching the 6502-style
// "low byte then high byte at a fixed location near the top of the address
// space" convention this design generalizes (see DESIGN.md).
func (r *Runner) SetResetVector(addr uint16) error {
	name, err := r.resetVectorSpace()
	if err != nil {
		return err
	}
	m := r.mem[name]
	if len(m) < 2 {
		return rhdlerr.LoadOutOfBounds{Space: name, Offset: len(m) - 2, Length: 2, Size: len(m)}
	}
	binary.LittleEndian.PutUint16(m[len(m)-2:], addr)
	return nil
}

// Reset asserts the IR's declared reset signal for one cycle, releases it,
// then runs ResetCycles more cycles before returning, per §4.4: "assert the
// reset input signal for one cycle, then release and run the minimum cycles
// the runner descriptor declares for reset completion."
//
// When the IR declares no reset signal (IO.Reset == ""), there is no net to
// assert: Reset instead wipes the simulator to power-on state directly
// (eng.Reset, the §4.3 simulator-level operation) before running the same
// post-reset cycles. This is a deliberate substitute, not an oversight — see
// DESIGN.md's Open Question decisions for why a full state wipe is an
// acceptable stand-in only in that no-reset-net case.
func (r *Runner) Reset() error {
	resetSignal := r.desc.IO.Reset
	if resetSignal == "" {
		r.eng.Reset()
	} else {
		if err := r.eng.Poke(resetSignal, 1); err != nil {
			return err
		}
		r.eng.Evaluate()
		r.serviceBus()
		r.eng.Tick()
		if err := r.eng.Poke(resetSignal, 0); err != nil {
			return err
		}
	}
	r.prevSpeaker = 0
	r.keyHeld = false

	cycles := r.desc.ResetCycles
	if cycles <= 0 {
		cycles = 1
	}
	for i := 0; i < cycles; i++ {
		r.eng.Evaluate()
		r.serviceBus()
		r.eng.Tick()
	}
	return nil
}

// serviceBus implements the combinational memory-bus protocol: on re, drive
// data_in from the addressed byte of whichever memory space claims the
// address; on we, commit data_out into memory (writable spaces only —
// guest writes into rom/boot_rom are dropped). This models a single
// flat external memory map shared across every declared space in
// declaration order, each owning a contiguous window of the address range.
func (r *Runner) serviceBus() {
	bus := r.desc.Bus
	if bus.Addr == "" {
		return
	}
	addr, err := r.eng.Peek(bus.Addr)
	if err != nil {
		return
	}
	offset := int(addr)
	sp, base, ok := r.spaceForAddress(offset)
	if !ok {
		return
	}
	local := offset - base
	m := r.mem[sp.Name]

	if bus.We != "" && sp.Kind == ir.MemoryRAM {
		if we, _ := r.eng.Peek(bus.We); we != 0 && bus.DataOut != "" {
			if v, err := r.eng.Peek(bus.DataOut); err == nil && local < len(m) {
				m[local] = byte(v)
			}
		}
	}
	if bus.Re != "" && bus.DataIn != "" {
		if re, _ := r.eng.Peek(bus.Re); re != 0 {
			var v uint64
			if local < len(m) {
				v = uint64(m[local])
			}
			_ = r.eng.Poke(bus.DataIn, v)
		}
	}
}

// spaceForAddress lays the declared memory spaces end to end in
// declaration order and finds which one claims offset.
func (r *Runner) spaceForAddress(offset int) (sp ir.MemorySpace, base int, ok bool) {
	cur := 0
	for _, s := range r.desc.MemorySpaces {
		if offset >= cur && offset < cur+s.Size {
			return s, cur, true
		}
		cur += s.Size
	}
	return ir.MemorySpace{}, 0, false
}

// RunCycles folds n host clock periods, bus servicing, and key/I-O latching
// into one call, the batched hot path a host application drives instead of
// single-stepping Evaluate/Tick/Peek/Poke itself. Each host clock period is
// as many evaluate/tick pairs as the runner descriptor's SubCycles declares
// (1 when unset), matching a design whose guest clock is itself divided down
// from the host's.
func (r *Runner) RunCycles(n int, keyCode uint64, keyReady bool) Telemetry {
	var tel Telemetry
	io := r.desc.IO

	if io.KeyIn != "" {
		_ = r.eng.Poke(io.KeyIn, keyCode)
	}
	if io.KeyReady != "" {
		v := uint64(0)
		if keyReady {
			v = 1
		}
		_ = r.eng.Poke(io.KeyReady, v)
	}

	subCycles := r.desc.SubCycles
	if subCycles <= 0 {
		subCycles = 1
	}

loop:
	for i := 0; i < n; i++ {
		for s := 0; s < subCycles; s++ {
			r.eng.Evaluate()
			r.serviceBus()
			r.eng.Tick()

			if io.TextDirtyRegion != "" {
				if v, err := r.eng.Peek(io.TextDirtyRegion); err == nil && v != 0 {
					tel.TextDirtyRegion = true
				}
			}
			if io.Speaker != "" {
				if v, err := r.eng.Peek(io.Speaker); err == nil {
					if v != 0 && r.prevSpeaker == 0 {
						tel.SpeakerToggles++
					}
					r.prevSpeaker = v
				}
			}
			if io.KeyClear != "" {
				if v, err := r.eng.Peek(io.KeyClear); err == nil && v != 0 {
					tel.KeyCleared = true
					if io.KeyReady != "" {
						_ = r.eng.Poke(io.KeyReady, 0)
					}
				}
			}
			if io.Halt != "" {
				if v, err := r.eng.Peek(io.Halt); err == nil && v != 0 {
					tel.Halted = true
					tel.CyclesRun++
					break loop
				}
			}
		}
		tel.CyclesRun++
	}

	if io.PCDebug != "" {
		if v, err := r.eng.Peek(io.PCDebug); err == nil {
			tel.PCDebug = v
		}
	}
	return tel
}

// StateSnapshot extends the engine's own snapshot with the host-visible
// memory spaces, length-prefixed in declaration order, per the binary
// layout's "for each memory space, a length-prefixed byte array" section.
func (r *Runner) StateSnapshot() []byte {
	var buf bytes.Buffer
	buf.Write(r.eng.StateSnapshot())
	for _, sp := range r.desc.MemorySpaces {
		data := r.mem[sp.Name]
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	return buf.Bytes()
}

// StateRestore is the inverse of StateSnapshot. The engine's own snapshot
// length is constant for a given module and lane count (every section is
// either fixed-size or net/dff/ram-count-determined), so the current
// engine's snapshot length tells us where the core prefix ends and the
// memory-space blobs begin.
func (r *Runner) StateRestore(data []byte) error {
	corePrefixLen := len(r.eng.StateSnapshot())
	if len(data) < corePrefixLen {
		return rhdlerr.IrMalformed{Field: "runner.snapshot", Reason: "truncated core state"}
	}
	if err := r.eng.StateRestore(data[:corePrefixLen]); err != nil {
		return err
	}
	rest := data[corePrefixLen:]
	for _, sp := range r.desc.MemorySpaces {
		if len(rest) < 4 {
			return rhdlerr.IrMalformed{Field: "runner.snapshot.memory", Reason: "truncated length prefix"}
		}
		length := int(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
		if len(rest) < length {
			return rhdlerr.IrMalformed{Field: "runner.snapshot.memory", Reason: "truncated memory blob"}
		}
		buf := make([]byte, length)
		copy(buf, rest[:length])
		r.mem[sp.Name] = buf
		rest = rest[length:]
	}
	return nil
}
