package lower

import (
	"fmt"

	"github.com/jmchacon/rhdl/component"
	"github.com/jmchacon/rhdl/ir"
)

// lowerPrimitive resolves a primitive instance's input bindings to concrete
// net lists and expands it into per-bit gates (or, for RAM, an opaque
// memory node), returning its output ports' net lists.
func (c *ctx) lowerPrimitive(d *component.Descriptor, bindings map[string]component.Source, parentInputs map[string][]int, siblingOutputs map[string]map[string][]int) (map[string][]int, error) {
	resolve := func(port string, width int) ([]int, error) {
		src, ok := bindings[port]
		if !ok {
			return nil, fmt.Errorf("port %q unbound", port)
		}
		return c.resolveSource(src, width, parentInputs, siblingOutputs)
	}

	switch d.Kind {
	case component.KindAnd, component.KindOr, component.KindXor:
		return c.expandBinaryBitwise(d, resolve)
	case component.KindNand, component.KindNor, component.KindXnor:
		return c.expandNegatedBitwise(d, resolve)
	case component.KindNot, component.KindBuf:
		return c.expandUnaryBitwise(d, resolve)
	case component.KindConst:
		return c.expandConst(d)
	case component.KindAdder:
		return c.expandAdder(d, resolve)
	case component.KindEquality:
		return c.expandEquality(d, resolve)
	case component.KindMux:
		return c.expandMux(d, resolve)
	case component.KindRegister:
		return c.expandRegister(d, resolve)
	case component.KindRAM:
		return c.expandRAM(d, resolve)
	default:
		return nil, fmt.Errorf("lower: unknown primitive kind %d", d.Kind)
	}
}

func gateKindFor(k component.Kind) ir.GateKind {
	switch k {
	case component.KindAnd, component.KindNand:
		return ir.GateAnd
	case component.KindOr, component.KindNor:
		return ir.GateOr
	case component.KindXor, component.KindXnor:
		return ir.GateXor
	}
	return ir.GateUnimplemented
}

func (c *ctx) expandBinaryBitwise(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	a, err := resolve("a", d.Width)
	if err != nil {
		return nil, err
	}
	b, err := resolve("b", d.Width)
	if err != nil {
		return nil, err
	}
	y := c.b.NewNets(d.Width)
	gk := gateKindFor(d.Kind)
	for i := 0; i < d.Width; i++ {
		if _, err := c.b.AddGate(gk, []int{a[i], b[i]}, y[i], nil); err != nil {
			return nil, err
		}
	}
	return map[string][]int{"y": y}, nil
}

// expandNegatedBitwise implements NAND/NOR/XNOR as NOT of the corresponding
// positive gate, one extra NOT per bit, per the canonicalization rule in
// the design's structural lowering algorithm.
func (c *ctx) expandNegatedBitwise(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	a, err := resolve("a", d.Width)
	if err != nil {
		return nil, err
	}
	b, err := resolve("b", d.Width)
	if err != nil {
		return nil, err
	}
	inner := c.b.NewNets(d.Width)
	y := c.b.NewNets(d.Width)
	gk := gateKindFor(d.Kind)
	for i := 0; i < d.Width; i++ {
		if _, err := c.b.AddGate(gk, []int{a[i], b[i]}, inner[i], nil); err != nil {
			return nil, err
		}
		if _, err := c.b.AddGate(ir.GateNot, []int{inner[i]}, y[i], nil); err != nil {
			return nil, err
		}
	}
	return map[string][]int{"y": y}, nil
}

func (c *ctx) expandUnaryBitwise(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	a, err := resolve("a", d.Width)
	if err != nil {
		return nil, err
	}
	y := c.b.NewNets(d.Width)
	gk := ir.GateNot
	if d.Kind == component.KindBuf {
		gk = ir.GateBuf
	}
	for i := 0; i < d.Width; i++ {
		if _, err := c.b.AddGate(gk, []int{a[i]}, y[i], nil); err != nil {
			return nil, err
		}
	}
	return map[string][]int{"y": y}, nil
}

func (c *ctx) expandConst(d *component.Descriptor) (map[string][]int, error) {
	y := c.b.NewNets(d.Width)
	v := d.ConstValue
	for _, n := range y {
		if _, err := c.b.AddGate(ir.GateConst, nil, n, &v); err != nil {
			return nil, err
		}
	}
	return map[string][]int{"y": y}, nil
}

// expandAdder implements the ripple-carry pattern from the design's
// arithmetic lowering section:
//   sum[i]  = a[i] XOR b[i] XOR c[i]
//   c[i+1]  = (a[i] AND b[i]) OR (c[i] AND (a[i] XOR b[i]))
// with c[0] bound to the "cin" input and c[w] exposed as "cout".
func (c *ctx) expandAdder(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	w := d.Width
	a, err := resolve("a", w)
	if err != nil {
		return nil, err
	}
	b, err := resolve("b", w)
	if err != nil {
		return nil, err
	}
	cin, err := resolve("cin", 1)
	if err != nil {
		return nil, err
	}

	sum := c.b.NewNets(w)
	carry := make([]int, w+1)
	carry[0] = cin[0]

	for i := 0; i < w; i++ {
		axb := c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateXor, []int{a[i], b[i]}, axb, nil); err != nil {
			return nil, err
		}
		if _, err := c.b.AddGate(ir.GateXor, []int{axb, carry[i]}, sum[i], nil); err != nil {
			return nil, err
		}
		aANDb := c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateAnd, []int{a[i], b[i]}, aANDb, nil); err != nil {
			return nil, err
		}
		axbANDc := c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateAnd, []int{axb, carry[i]}, axbANDc, nil); err != nil {
			return nil, err
		}
		carry[i+1] = c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateOr, []int{aANDb, axbANDc}, carry[i+1], nil); err != nil {
			return nil, err
		}
	}

	return map[string][]int{"sum": sum, "cout": {carry[w]}}, nil
}

// expandEquality implements zero = NOT OR_reduce(a XOR b) with a balanced
// binary reduction tree for shallower depth, per the design.
func (c *ctx) expandEquality(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	w := d.Width
	a, err := resolve("a", w)
	if err != nil {
		return nil, err
	}
	b, err := resolve("b", w)
	if err != nil {
		return nil, err
	}
	diffs := make([]int, w)
	for i := 0; i < w; i++ {
		diffs[i] = c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateXor, []int{a[i], b[i]}, diffs[i], nil); err != nil {
			return nil, err
		}
	}
	anyDiff, err := c.reduceBalanced(ir.GateOr, diffs)
	if err != nil {
		return nil, err
	}
	eq := c.b.NewNet()
	if _, err := c.b.AddGate(ir.GateNot, []int{anyDiff}, eq, nil); err != nil {
		return nil, err
	}
	return map[string][]int{"eq": {eq}}, nil
}

// reduceBalanced folds nets pairwise into a single net using gk, building a
// balanced tree (shallower depth than a left-deep chain) as described for
// n-ary gate canonicalization.
func (c *ctx) reduceBalanced(gk ir.GateKind, nets []int) (int, error) {
	if len(nets) == 0 {
		return -1, fmt.Errorf("lower: cannot reduce zero nets")
	}
	level := append([]int(nil), nets...)
	for len(level) > 1 {
		var next []int
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			out := c.b.NewNet()
			if _, err := c.b.AddGate(gk, []int{level[i], level[i+1]}, out, nil); err != nil {
				return -1, err
			}
			next = append(next, out)
		}
		level = next
	}
	return level[0], nil
}

// expandMux decodes the selector into a one-hot set of select lines (AND
// tree over the selector bits, true or complemented per bit of the
// candidate index) and then ORs the gated data inputs, per the design's
// "decode selector into one-hot via AND-tree, then OR the gated inputs."
func (c *ctx) expandMux(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	ways := 1 << uint(d.SelectWidth)
	sel, err := resolve("sel", d.SelectWidth)
	if err != nil {
		return nil, err
	}
	selNot := make([]int, d.SelectWidth)
	for i, s := range sel {
		selNot[i] = c.b.NewNet()
		if _, err := c.b.AddGate(ir.GateNot, []int{s}, selNot[i], nil); err != nil {
			return nil, err
		}
	}

	ins := make([][]int, ways)
	for j := 0; j < ways; j++ {
		ins[j], err = resolve(fmt.Sprintf("in%d", j), d.MuxWidth)
		if err != nil {
			return nil, err
		}
	}

	oneHot := make([]int, ways)
	for j := 0; j < ways; j++ {
		bits := make([]int, d.SelectWidth)
		for bit := 0; bit < d.SelectWidth; bit++ {
			if j&(1<<uint(bit)) != 0 {
				bits[bit] = sel[bit]
			} else {
				bits[bit] = selNot[bit]
			}
		}
		line, err := c.reduceBalanced(ir.GateAnd, bits)
		if err != nil {
			return nil, err
		}
		oneHot[j] = line
	}

	y := make([]int, d.MuxWidth)
	for bit := 0; bit < d.MuxWidth; bit++ {
		gated := make([]int, ways)
		for j := 0; j < ways; j++ {
			gated[j] = c.b.NewNet()
			if _, err := c.b.AddGate(ir.GateAnd, []int{oneHot[j], ins[j][bit]}, gated[j], nil); err != nil {
				return nil, err
			}
		}
		out, err := c.reduceBalanced(ir.GateOr, gated)
		if err != nil {
			return nil, err
		}
		y[bit] = out
	}
	return map[string][]int{"y": y}, nil
}

// expandRegister instantiates w parallel DFFs sharing en and rst, per the
// design's "Register of width W."
func (c *ctx) expandRegister(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	din, err := resolve("d", d.Width)
	if err != nil {
		return nil, err
	}
	var enPtr, rstPtr *int
	if en, err := resolve("en", 1); err == nil {
		v := en[0]
		enPtr = &v
	}
	if rst, err := resolve("rst", 1); err == nil {
		v := rst[0]
		rstPtr = &v
	}
	q := c.b.NewNets(d.Width)
	for i := 0; i < d.Width; i++ {
		if _, err := c.b.AddDFF(din[i], q[i], rstPtr, enPtr, d.AsyncReset); err != nil {
			return nil, err
		}
	}
	return map[string][]int{"q": q}, nil
}

// expandRAM emits the opaque behavioral memory node rather than expanding
// to gates, per the design.
func (c *ctx) expandRAM(d *component.Descriptor, resolve func(string, int) ([]int, error)) (map[string][]int, error) {
	addr, err := resolve("addr", d.AddrWidth)
	if err != nil {
		return nil, err
	}
	din, err := resolve("din", d.DataWidth)
	if err != nil {
		return nil, err
	}
	we, err := resolve("we", 1)
	if err != nil {
		return nil, err
	}
	dout := c.b.NewNets(d.DataWidth)
	size := 1 << uint(d.AddrWidth)
	if _, err := c.b.AddRAM(size, addr, din, dout, we[0]); err != nil {
		return nil, err
	}
	return map[string][]int{"dout": dout}, nil
}
