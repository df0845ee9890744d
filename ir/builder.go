package ir

import "github.com/jmchacon/rhdl/rhdlerr"

// Builder incrementally assembles a Module. It is the only supported way to
// construct a Module by hand (as opposed to via lower.Lower or FromJSON);
// package lower uses exactly this API internally.
type Builder struct {
	name     string
	netCount int
	gates    []Gate
	dffs     []DFF
	inputs   map[string][]int
	outputs  map[string][]int
	producer map[int]bool
	runner   *RunnerDescriptor
	rams     []RAMNode
}

// NewBuilder starts a new module with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		inputs:   map[string][]int{},
		outputs:  map[string][]int{},
		producer: map[int]bool{},
	}
}

// NewNet appends one net and returns its id.
func (b *Builder) NewNet() int {
	id := b.netCount
	b.netCount++
	return id
}

// NewNets appends n nets and returns their ids in order, the common case of
// allocating one bus's worth of nets at once.
func (b *Builder) NewNets(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = b.NewNet()
	}
	return ids
}

func (b *Builder) checkNets(ids []int) error {
	for _, id := range ids {
		if id < 0 || id >= b.netCount {
			return rhdlerr.UnknownNet{ID: id}
		}
	}
	return nil
}

// AddInput registers an input port bundle. Name uniqueness is per-direction;
// an empty net list is rejected.
func (b *Builder) AddInput(name string, nets []int) error {
	return b.addPort(b.inputs, "input", name, nets)
}

// AddOutput registers an output port bundle.
func (b *Builder) AddOutput(name string, nets []int) error {
	return b.addPort(b.outputs, "output", name, nets)
}

func (b *Builder) addPort(into map[string][]int, direction, name string, nets []int) error {
	if len(nets) == 0 {
		return rhdlerr.IrMalformed{Field: direction + "s." + name, Reason: "empty port"}
	}
	if err := b.checkNets(nets); err != nil {
		return err
	}
	if _, ok := into[name]; ok {
		return rhdlerr.PortDuplicate{Name: name, Direction: direction}
	}
	cp := make([]int, len(nets))
	copy(cp, nets)
	into[name] = cp
	return nil
}

// AddGate appends a gate, returning its id. It fails when arity mismatches
// the kind, when any net is out of range, or when output already has a
// producer.
func (b *Builder) AddGate(kind GateKind, inputs []int, output int, value *int) (int, error) {
	if arity := kind.Arity(); arity >= 0 && len(inputs) != arity {
		return -1, rhdlerr.ArityMismatch{Kind: kind.String(), Got: len(inputs), Expected: arity}
	}
	if err := b.checkNets(inputs); err != nil {
		return -1, err
	}
	if err := b.checkNets([]int{output}); err != nil {
		return -1, err
	}
	if b.producer[output] {
		return -1, rhdlerr.DoubleProducer{Net: output}
	}
	id := len(b.gates)
	b.gates = append(b.gates, Gate{Kind: kind, Inputs: append([]int(nil), inputs...), Output: output, Value: value})
	b.producer[output] = true
	return id, nil
}

// AddDFF appends a flip-flop, returning its id. Fails if q already has a
// producer.
func (b *Builder) AddDFF(d, q int, rst, en *int, asyncReset bool) (int, error) {
	ids := []int{d, q}
	if rst != nil {
		ids = append(ids, *rst)
	}
	if en != nil {
		ids = append(ids, *en)
	}
	if err := b.checkNets(ids); err != nil {
		return -1, err
	}
	if b.producer[q] {
		return -1, rhdlerr.DoubleProducer{Net: q}
	}
	id := len(b.dffs)
	b.dffs = append(b.dffs, DFF{D: d, Q: q, Rst: rst, En: en, AsyncReset: asyncReset})
	b.producer[q] = true
	return id, nil
}

// CombinationalGateIDs returns the ids of all gates added so far, in
// insertion order — the natural input to a topological sort.
func (b *Builder) CombinationalGateIDs() []int {
	ids := make([]int, len(b.gates))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Gates exposes the gates added so far, read-only, for callers computing a
// schedule (e.g. package lower's Kahn sort).
func (b *Builder) Gates() []Gate {
	return append([]Gate(nil), b.gates...)
}

// AddRAM appends an internal behavioral memory primitive. size must equal
// 2^len(addr). Fails if any dout net already has a producer.
func (b *Builder) AddRAM(size int, addr, din, dout []int, we int) (int, error) {
	all := append(append(append([]int(nil), addr...), din...), dout...)
	all = append(all, we)
	if err := b.checkNets(all); err != nil {
		return -1, err
	}
	for _, id := range dout {
		if b.producer[id] {
			return -1, rhdlerr.DoubleProducer{Net: id}
		}
	}
	id := len(b.rams)
	b.rams = append(b.rams, RAMNode{
		Size: size,
		Addr: append([]int(nil), addr...),
		Din:  append([]int(nil), din...),
		Dout: append([]int(nil), dout...),
		We:   we,
	})
	for _, out := range dout {
		b.producer[out] = true
	}
	return id, nil
}

// SetRunner attaches a runner descriptor to the module under construction.
func (b *Builder) SetRunner(rd *RunnerDescriptor) {
	b.runner = rd
}

// Build finalizes the module with the given schedule, validating the
// schedule is a sound permutation of the combinational gate ids before
// returning. Build may be called only once per Builder.
func (b *Builder) Build(schedule []int) (*Module, error) {
	return Assemble(b.name, b.netCount, b.gates, b.dffs, b.rams, b.inputs, b.outputs, schedule, b.runner)
}

// NetCount returns the number of nets allocated so far.
func (b *Builder) NetCount() int { return b.netCount }

// DFFs exposes the flip-flops added so far, read-only.
func (b *Builder) DFFs() []DFF { return append([]DFF(nil), b.dffs...) }

// RAMs exposes the RAM nodes added so far, read-only.
func (b *Builder) RAMs() []RAMNode { return append([]RAMNode(nil), b.rams...) }

// Inputs exposes the input ports registered so far, read-only.
func (b *Builder) Inputs() map[string][]int { return b.inputs }

// Outputs exposes the output ports registered so far, read-only.
func (b *Builder) Outputs() map[string][]int { return b.outputs }

// Runner returns the runner descriptor attached so far, if any.
func (b *Builder) Runner() *RunnerDescriptor { return b.runner }
