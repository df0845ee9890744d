// Package component defines the descriptor types that package lower
// consumes. Descriptors are the minimal concrete stand-in for the surface
// DSL described in the design — authors would normally declare components
// through a front-end language; this package gives the framework's core a
// testable tree shape without attempting to be that front-end.
//
// A Descriptor is either a Primitive (known gate/DFF/RAM expansion) or a
// Composite (named child instances wired together by Source bindings).
// Descriptors are immutable once built: lowering only reads them.
package component

// Kind enumerates the primitives package lower knows how to expand, plus
// the KindComposite marker for a hierarchical node.
type Kind int

const (
	KindUnimplemented Kind = iota
	KindAnd
	KindOr
	KindXor
	KindNot
	KindNand
	KindNor
	KindXnor
	KindBuf
	KindConst
	KindMux
	KindAdder
	KindEquality
	KindRegister
	KindRAM
	KindComposite
	kindMax
)

// Source names where a port's nets come from while walking a Composite's
// children in declaration order. Exactly one field is set.
type Source struct {
	// FromParentInput binds to one of the enclosing Composite's own input
	// ports (by name).
	FromParentInput string

	// FromInstance + FromPort bind to an already-processed sibling child's
	// output port (children are processed in Children order, so a source
	// must name an earlier child — this is the "opaque tree, front end's
	// responsibility" ordering assumption lowering relies on).
	FromInstance string
	FromPort     string

	// Const binds every bit of the target port to a constant 0 or 1.
	Const *int
}

// Instance is one child within a Composite: a name (used as the namespace
// for its outputs when later Sources reference it), the child descriptor,
// and the Source for each of the child's input ports.
type Instance struct {
	Name       string
	Descriptor *Descriptor
	Inputs     map[string]Source
}

// Descriptor is a node in the component tree. Exactly one of the
// primitive-specific field groups below is meaningful, selected by Kind;
// KindComposite uses Children/InputPorts/OutputPorts/OutputBindings
// instead.
type Descriptor struct {
	Kind Kind

	// Width applies to And/Or/Xor/Not/Nand/Nor/Xnor/Buf/Adder/Equality/
	// Register, and to Const (the constant is replicated across Width
	// bits).
	Width int

	// ConstValue is 0 or 1, meaningful only for KindConst.
	ConstValue int

	// MuxWidth is the data width for KindMux; SelectWidth is log2(the
	// number of data inputs in0..in(2^SelectWidth - 1)).
	MuxWidth    int
	SelectWidth int

	// RAM-specific sizing: address width in bits, data width in bits. Size
	// is 2^AddrWidth.
	AddrWidth int
	DataWidth int

	// AsyncReset applies to KindRegister: when true, every DFF in the
	// register asserts q=0 combinationally whenever rst is high (see
	// ir.DFF.AsyncReset), not only at tick.
	AsyncReset bool

	// Composite-only.
	Children       []Instance
	InputPorts     map[string]int // name -> width; fresh nets for the root, the parent's bound nets for a nested composite
	OutputPorts    map[string]int // name -> width, must match the bound Source's width
	OutputBindings map[string]Source
}
