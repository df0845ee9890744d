// Package lower recursively flattens a component.Descriptor tree into a
// gate-level ir.Module: it resolves port bindings, expands multi-bit buses
// and primitives into per-bit gates, topologically schedules the resulting
// combinational gates, and optionally elides dead gates.
package lower

import (
	"fmt"

	"github.com/jmchacon/rhdl/component"
	"github.com/jmchacon/rhdl/ir"
)

// Options controls lowering behavior beyond the structural algorithm
// itself.
type Options struct {
	// PreserveAll disables dead-net elision. It MUST be set when the IR is
	// used for debugging with live-signal probes that reach into otherwise
	// dead logic.
	PreserveAll bool

	// Runner, if non-nil, is attached to the resulting module unchanged.
	Runner *ir.RunnerDescriptor
}

// ctx carries the shared ir.Builder through one Lower call's recursive
// descent.
type ctx struct {
	b    *ir.Builder
	opts Options
}

// Lower flattens root (which must be a KindComposite acting as the design's
// top level) into a complete ir.Module.
func Lower(name string, root *component.Descriptor, opts Options) (*ir.Module, error) {
	if root.Kind != component.KindComposite {
		return nil, fmt.Errorf("lower: root descriptor must be a composite, got kind %d", root.Kind)
	}
	b := ir.NewBuilder(name)
	c := &ctx{b: b, opts: opts}

	parentInputs := map[string][]int{}
	for portName, width := range root.InputPorts {
		nets := b.NewNets(width)
		parentInputs[portName] = nets
		if err := b.AddInput(portName, nets); err != nil {
			return nil, err
		}
	}

	childOutputs, err := c.lowerChildren(root.Children, parentInputs)
	if err != nil {
		return nil, err
	}

	for portName, width := range root.OutputPorts {
		src, ok := root.OutputBindings[portName]
		if !ok {
			return nil, fmt.Errorf("lower: output port %q has no binding", portName)
		}
		nets, err := c.resolveSource(src, width, parentInputs, childOutputs)
		if err != nil {
			return nil, err
		}
		if err := b.AddOutput(portName, nets); err != nil {
			return nil, err
		}
	}

	return c.finish(name, parentInputs, opts.Runner)
}

// lowerChildren expands each child instance in declaration order, returning
// a nested map instanceName -> portName -> nets for every child's output
// ports so later siblings (and the composite's own output bindings) can
// bind to them.
func (c *ctx) lowerChildren(children []component.Instance, parentInputs map[string][]int) (map[string]map[string][]int, error) {
	allOutputs := map[string]map[string][]int{}
	for _, inst := range children {
		if _, dup := allOutputs[inst.Name]; dup {
			return nil, fmt.Errorf("lower: duplicate instance name %q", inst.Name)
		}
		outs, err := c.lowerInstance(inst, parentInputs, allOutputs)
		if err != nil {
			return nil, fmt.Errorf("lower: instance %q: %w", inst.Name, err)
		}
		allOutputs[inst.Name] = outs
	}
	return allOutputs, nil
}

// resolveSource turns a component.Source into a concrete net list of the
// given width.
func (c *ctx) resolveSource(src component.Source, width int, parentInputs map[string][]int, outputs map[string]map[string][]int) ([]int, error) {
	switch {
	case src.Const != nil:
		nets := c.b.NewNets(width)
		for _, n := range nets {
			v := *src.Const
			if _, err := c.b.AddGate(ir.GateConst, nil, n, &v); err != nil {
				return nil, err
			}
		}
		return nets, nil
	case src.FromParentInput != "":
		nets, ok := parentInputs[src.FromParentInput]
		if !ok {
			return nil, fmt.Errorf("unknown parent input %q", src.FromParentInput)
		}
		if len(nets) != width {
			return nil, fmt.Errorf("parent input %q is %d bits, want %d", src.FromParentInput, len(nets), width)
		}
		return nets, nil
	case src.FromInstance != "":
		inst, ok := outputs[src.FromInstance]
		if !ok {
			return nil, fmt.Errorf("unknown or not-yet-declared instance %q", src.FromInstance)
		}
		nets, ok := inst[src.FromPort]
		if !ok {
			return nil, fmt.Errorf("instance %q has no output port %q", src.FromInstance, src.FromPort)
		}
		if len(nets) != width {
			return nil, fmt.Errorf("instance %q port %q is %d bits, want %d", src.FromInstance, src.FromPort, len(nets), width)
		}
		return nets, nil
	default:
		return nil, fmt.Errorf("empty source binding")
	}
}

// lowerInstance allocates nets for, and expands the gates/dffs/rams of, one
// component instance, returning its output ports' net lists.
func (c *ctx) lowerInstance(inst component.Instance, parentInputs map[string][]int, siblingOutputs map[string]map[string][]int) (map[string][]int, error) {
	d := inst.Descriptor
	if d.Kind == component.KindComposite {
		return c.lowerCompositeInstance(d, inst.Inputs, parentInputs, siblingOutputs)
	}
	return c.lowerPrimitive(d, inst.Inputs, parentInputs, siblingOutputs)
}

// lowerCompositeInstance recurses into a nested composite, binding each of
// its own InputPorts directly to the nets the parent's Source resolves to
// (reuse rather than allocate; only a Const source allocates new nets).
func (c *ctx) lowerCompositeInstance(d *component.Descriptor, bindings map[string]component.Source, parentInputs map[string][]int, siblingOutputs map[string]map[string][]int) (map[string][]int, error) {
	childInputs := map[string][]int{}
	for portName, width := range d.InputPorts {
		src, ok := bindings[portName]
		if !ok {
			return nil, fmt.Errorf("input port %q unbound", portName)
		}
		nets, err := c.resolveSource(src, width, parentInputs, siblingOutputs)
		if err != nil {
			return nil, err
		}
		childInputs[portName] = nets
	}
	grandchildOutputs, err := c.lowerChildren(d.Children, childInputs)
	if err != nil {
		return nil, err
	}
	outputs := map[string][]int{}
	for portName, width := range d.OutputPorts {
		src, ok := d.OutputBindings[portName]
		if !ok {
			return nil, fmt.Errorf("output port %q has no binding", portName)
		}
		nets, err := c.resolveSource(src, width, childInputs, grandchildOutputs)
		if err != nil {
			return nil, err
		}
		outputs[portName] = nets
	}
	return outputs, nil
}

// finish computes the schedule (optionally eliding dead gates first) and
// assembles the final Module.
func (c *ctx) finish(name string, parentInputs map[string][]int, runner *ir.RunnerDescriptor) (*ir.Module, error) {
	gates := c.b.Gates()
	dffs := c.b.DFFs()
	rams := c.b.RAMs()
	outputs := c.b.Outputs()

	live := computeLiveGates(gates, dffs, rams, outputs, c.opts.PreserveAll)
	keptGates := gates
	if !c.opts.PreserveAll {
		keptGates = nil
		for i, g := range gates {
			if live[i] {
				keptGates = append(keptGates, g)
			}
		}
	}

	schedule, err := kahnSchedule(keptGates)
	if err != nil {
		return nil, err
	}

	return ir.Assemble(name, c.b.NetCount(), keptGates, dffs, rams, c.b.Inputs(), outputs, schedule, runner)
}
