package component

// And returns an N-bit bitwise AND primitive descriptor, width w. Ports:
// inputs "a","b"; output "y".
func And(w int) *Descriptor { return &Descriptor{Kind: KindAnd, Width: w} }

// Or returns an N-bit bitwise OR primitive descriptor. Ports: "a","b" -> "y".
func Or(w int) *Descriptor { return &Descriptor{Kind: KindOr, Width: w} }

// Xor returns an N-bit bitwise XOR primitive descriptor. Ports: "a","b" ->
// "y".
func Xor(w int) *Descriptor { return &Descriptor{Kind: KindXor, Width: w} }

// Not returns an N-bit bitwise NOT primitive descriptor. Ports: "a" -> "y".
func Not(w int) *Descriptor { return &Descriptor{Kind: KindNot, Width: w} }

// Nand returns an N-bit bitwise NAND descriptor (NOT of AND).
func Nand(w int) *Descriptor { return &Descriptor{Kind: KindNand, Width: w} }

// Nor returns an N-bit bitwise NOR descriptor (NOT of OR).
func Nor(w int) *Descriptor { return &Descriptor{Kind: KindNor, Width: w} }

// Xnor returns an N-bit bitwise XNOR descriptor (NOT of XOR).
func Xnor(w int) *Descriptor { return &Descriptor{Kind: KindXnor, Width: w} }

// Buf returns an N-bit buffer (identity) descriptor. Ports: "a" -> "y".
func Buf(w int) *Descriptor { return &Descriptor{Kind: KindBuf, Width: w} }

// Const returns a w-bit constant descriptor broadcasting value (0 or 1) to
// every bit. No input ports; output "y".
func Const(w, value int) *Descriptor { return &Descriptor{Kind: KindConst, Width: w, ConstValue: value} }

// Adder returns a w-bit ripple-carry adder/subtractor descriptor. Ports:
// inputs "a","b","cin"; outputs "sum","cout".
func Adder(w int) *Descriptor { return &Descriptor{Kind: KindAdder, Width: w} }

// Equality returns a w-bit equality comparator descriptor. Ports: inputs
// "a","b"; output "eq" (1 bit).
func Equality(w int) *Descriptor { return &Descriptor{Kind: KindEquality, Width: w} }

// Mux returns a data-width-w, 2^selectWidth-way multiplexer descriptor.
// Ports: inputs "sel" (selectWidth bits), "in0".."in<2^selectWidth-1>"
// (each dataWidth bits); output "y" (dataWidth bits).
func Mux(dataWidth, selectWidth int) *Descriptor {
	return &Descriptor{Kind: KindMux, MuxWidth: dataWidth, SelectWidth: selectWidth}
}

// Register returns a w-bit register descriptor (w parallel DFFs sharing en
// and rst). Ports: inputs "d" (w bits), "en" (1 bit, optional), "rst" (1
// bit, optional); output "q" (w bits). The reset is synchronous: rst only
// takes effect at tick.
func Register(w int) *Descriptor { return &Descriptor{Kind: KindRegister, Width: w} }

// AsyncResetRegister is Register but with an asynchronous reset: rst
// additionally forces q=0 combinationally on every Evaluate, not only at
// Tick (see ir.DFF.AsyncReset).
func AsyncResetRegister(w int) *Descriptor {
	return &Descriptor{Kind: KindRegister, Width: w, AsyncReset: true}
}

// RAM returns a behavioral memory primitive descriptor with the given
// address and data widths; lowering emits it as an opaque node rather than
// expanding to gates (see the design's "RAM" subsection). Ports: inputs
// "addr" (addrWidth bits), "din" (dataWidth bits), "we" (1 bit); output
// "dout" (dataWidth bits).
func RAM(addrWidth, dataWidth int) *Descriptor {
	return &Descriptor{Kind: KindRAM, AddrWidth: addrWidth, DataWidth: dataWidth}
}

// Composite returns a new composite descriptor: children processed in
// order (a Source may only reference an earlier child), composite-level
// input ports allocated fresh at the root and bound to the parent's nets
// when nested, and composite-level output ports bound to
// child outputs (or parent inputs, or constants) via outputBindings.
func Composite(children []Instance, inputPorts, outputPorts map[string]int, outputBindings map[string]Source) *Descriptor {
	return &Descriptor{
		Kind:           KindComposite,
		Children:       children,
		InputPorts:     inputPorts,
		OutputPorts:    outputPorts,
		OutputBindings: outputBindings,
	}
}
