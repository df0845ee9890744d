package ir

import (
	"encoding/json"
	"sort"

	"github.com/jmchacon/rhdl/rhdlerr"
)

// jsonGate is the wire shape of a single gate entry, matching the field
// names and nullability fixed by the design's IR JSON ABI.
type jsonGate struct {
	Type    string `json:"type"`
	Inputs  []int  `json:"inputs"`
	Output  int    `json:"output"`
	Value   *int   `json:"value"`
}

type jsonDFF struct {
	D          int   `json:"d"`
	Q          int   `json:"q"`
	Rst        *int  `json:"rst"`
	En         *int  `json:"en"`
	AsyncReset bool  `json:"async_reset"`
}

type jsonRAM struct {
	Size int   `json:"size"`
	Addr []int `json:"addr"`
	Din  []int `json:"din"`
	Dout []int `json:"dout"`
	We   int   `json:"we"`
}

type jsonMemorySpace struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	Kind string `json:"kind"`
}

type jsonIO struct {
	KeyIn           string `json:"key_in,omitempty"`
	KeyReady        string `json:"key_ready,omitempty"`
	KeyClear        string `json:"key_clear,omitempty"`
	TextDirtyRegion string `json:"text_dirty_region,omitempty"`
	Speaker         string `json:"speaker,omitempty"`
	PCDebug         string `json:"pc_debug,omitempty"`
	Halt            string `json:"halt,omitempty"`
	// Reset is an implementation field beyond the ABI's required "io" set
	// (see jsonRunner.ResetCycles); tolerated on read per §6's "unknown
	// fields MUST be ignored" for readers that predate it.
	Reset string `json:"reset,omitempty"`
}

type jsonBus struct {
	Addr    string `json:"addr"`
	DataIn  string `json:"data_in"`
	DataOut string `json:"data_out"`
	We      string `json:"we"`
	Re      string `json:"re"`
}

type jsonRunner struct {
	Kind         string            `json:"kind"`
	MemorySpaces []jsonMemorySpace `json:"memory_spaces"`
	IO           jsonIO            `json:"io"`
	Bus          jsonBus           `json:"bus"`
	SubCycles    int               `json:"sub_cycles"`
	// ResetCycles is an implementation field beyond the ABI's required set
	// (see design's Open Question on formalizing the reset cycle count);
	// §6 requires unknown fields to be tolerated on read, which permits
	// round-tripping this one without breaking other readers.
	ResetCycles int `json:"reset_cycles,omitempty"`
}

// jsonModule is the wire shape of a whole module. Field order here is the
// canonical order emitted by MarshalJSON (Go preserves struct field order
// when marshaling, so this doubles as the ABI's fixed field ordering).
type jsonModule struct {
	Name     string           `json:"name"`
	NetCount int              `json:"net_count"`
	Gates    []jsonGate       `json:"gates"`
	DFFs     []jsonDFF        `json:"dffs"`
	RAMs     []jsonRAM        `json:"rams,omitempty"`
	Inputs   map[string][]int `json:"inputs"`
	Outputs  map[string][]int `json:"outputs"`
	Schedule []int            `json:"schedule"`
	Runner   *jsonRunner      `json:"runner,omitempty"`
}

// MarshalJSON implements the canonical IR JSON ABI described in the
// design's external-interfaces section.
func (m *Module) MarshalJSON() ([]byte, error) {
	jm := jsonModule{
		Name:     m.Name,
		NetCount: m.NetCount,
		Inputs:   m.Inputs,
		Outputs:  m.Outputs,
		Schedule: m.Schedule,
	}
	jm.Gates = make([]jsonGate, len(m.Gates))
	for i, g := range m.Gates {
		jm.Gates[i] = jsonGate{
			Type:   g.Kind.String(),
			Inputs: g.Inputs,
			Output: g.Output,
			Value:  g.Value,
		}
	}
	jm.DFFs = make([]jsonDFF, len(m.DFFs))
	for i, d := range m.DFFs {
		jm.DFFs[i] = jsonDFF{D: d.D, Q: d.Q, Rst: d.Rst, En: d.En, AsyncReset: d.AsyncReset}
	}
	for _, r := range m.RAMs {
		jm.RAMs = append(jm.RAMs, jsonRAM{Size: r.Size, Addr: r.Addr, Din: r.Din, Dout: r.Dout, We: r.We})
	}
	if m.Runner != nil {
		jr := &jsonRunner{
			Kind:        m.Runner.Kind,
			SubCycles:   m.Runner.SubCycles,
			ResetCycles: m.Runner.ResetCycles,
			IO: jsonIO{
				KeyIn:           m.Runner.IO.KeyIn,
				KeyReady:        m.Runner.IO.KeyReady,
				KeyClear:        m.Runner.IO.KeyClear,
				TextDirtyRegion: m.Runner.IO.TextDirtyRegion,
				Speaker:         m.Runner.IO.Speaker,
				PCDebug:         m.Runner.IO.PCDebug,
				Halt:            m.Runner.IO.Halt,
				Reset:           m.Runner.IO.Reset,
			},
			Bus: jsonBus{
				Addr:    m.Runner.Bus.Addr,
				DataIn:  m.Runner.Bus.DataIn,
				DataOut: m.Runner.Bus.DataOut,
				We:      m.Runner.Bus.We,
				Re:      m.Runner.Bus.Re,
			},
		}
		for _, ms := range m.Runner.MemorySpaces {
			jr.MemorySpaces = append(jr.MemorySpaces, jsonMemorySpace{Name: ms.Name, Size: ms.Size, Kind: string(ms.Kind)})
		}
		jm.Runner = jr
	}
	return json.Marshal(jm)
}

// UnmarshalJSON implements the inverse of MarshalJSON, rejecting unknown
// gate "type" values and any structural violation (§6: additional/unknown
// top-level fields must be ignored — encoding/json already does this for
// free since jsonModule only declares the fixed field set).
func (m *Module) UnmarshalJSON(data []byte) error {
	var jm jsonModule
	if err := json.Unmarshal(data, &jm); err != nil {
		return rhdlerr.IrMalformed{Field: "<root>", Reason: err.Error()}
	}
	// Empty lists decode to nil, matching what Builder/Assemble produce, so
	// FromJSON(ToJSON(m)) is structurally identical to m.
	var gates []Gate
	if len(jm.Gates) > 0 {
		gates = make([]Gate, len(jm.Gates))
	}
	for i, jg := range jm.Gates {
		kind, ok := ParseGateKind(jg.Type)
		if !ok {
			return rhdlerr.IrMalformed{Field: "gates[].type", Reason: "unknown gate type " + jg.Type}
		}
		gates[i] = Gate{Kind: kind, Inputs: jg.Inputs, Output: jg.Output, Value: jg.Value}
	}
	var dffs []DFF
	if len(jm.DFFs) > 0 {
		dffs = make([]DFF, len(jm.DFFs))
	}
	for i, jd := range jm.DFFs {
		dffs[i] = DFF{D: jd.D, Q: jd.Q, Rst: jd.Rst, En: jd.En, AsyncReset: jd.AsyncReset}
	}
	var rams []RAMNode
	for _, jr := range jm.RAMs {
		rams = append(rams, RAMNode{Size: jr.Size, Addr: jr.Addr, Din: jr.Din, Dout: jr.Dout, We: jr.We})
	}
	*m = Module{
		Name:     jm.Name,
		NetCount: jm.NetCount,
		Gates:    gates,
		DFFs:     dffs,
		RAMs:     rams,
		Inputs:   jm.Inputs,
		Outputs:  jm.Outputs,
		Schedule: jm.Schedule,
	}
	if m.Inputs == nil {
		m.Inputs = map[string][]int{}
	}
	if m.Outputs == nil {
		m.Outputs = map[string][]int{}
	}
	if jm.Runner != nil {
		rd := &RunnerDescriptor{
			Kind:        jm.Runner.Kind,
			SubCycles:   jm.Runner.SubCycles,
			ResetCycles: jm.Runner.ResetCycles,
			IO: IO{
				KeyIn:           jm.Runner.IO.KeyIn,
				KeyReady:        jm.Runner.IO.KeyReady,
				KeyClear:        jm.Runner.IO.KeyClear,
				TextDirtyRegion: jm.Runner.IO.TextDirtyRegion,
				Speaker:         jm.Runner.IO.Speaker,
				PCDebug:         jm.Runner.IO.PCDebug,
				Halt:            jm.Runner.IO.Halt,
				Reset:           jm.Runner.IO.Reset,
			},
			Bus: Bus{
				Addr:    jm.Runner.Bus.Addr,
				DataIn:  jm.Runner.Bus.DataIn,
				DataOut: jm.Runner.Bus.DataOut,
				We:      jm.Runner.Bus.We,
				Re:      jm.Runner.Bus.Re,
			},
		}
		for _, jms := range jm.Runner.MemorySpaces {
			rd.MemorySpaces = append(rd.MemorySpaces, MemorySpace{Name: jms.Name, Size: jms.Size, Kind: MemorySpaceKind(jms.Kind)})
		}
		m.Runner = rd
	}
	return m.Validate()
}

// ToJSON renders the module to its canonical JSON ABI form.
func (m *Module) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON parses the canonical JSON ABI form into a new Module, validating
// all invariants before returning it.
func FromJSON(data []byte) (*Module, error) {
	m := &Module{}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}

// sortedPortNames returns a module's port names in sorted order, used by
// debug/printing paths that want determinism without relying on map
// iteration order.
func sortedPortNames(ports map[string][]int) []string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
