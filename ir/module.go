package ir

import (
	"fmt"
	"strings"
)

// PortWidth returns the bit width of a named input or output port.
func (m *Module) PortWidth(name string) (int, bool) {
	if nets, ok := m.Inputs[name]; ok {
		return len(nets), true
	}
	if nets, ok := m.Outputs[name]; ok {
		return len(nets), true
	}
	return 0, false
}

// SignalNet resolves a runner descriptor's signal name (which may name
// either an input or an output port) to the single net id it denotes. Runner
// hook signals are always single-bit.
func (m *Module) SignalNet(name string) (int, bool) {
	if nets, ok := m.Outputs[name]; ok && len(nets) >= 1 {
		return nets[0], true
	}
	if nets, ok := m.Inputs[name]; ok && len(nets) >= 1 {
		return nets[0], true
	}
	return 0, false
}

// String renders a short, deterministic summary useful in test failure
// output alongside spew.Sdump of the full structure.
func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %q: %d nets, %d gates, %d dffs\n", m.Name, m.NetCount, len(m.Gates), len(m.DFFs))
	fmt.Fprintf(&b, "  inputs:  %v\n", sortedPortNames(m.Inputs))
	fmt.Fprintf(&b, "  outputs: %v\n", sortedPortNames(m.Outputs))
	return b.String()
}
