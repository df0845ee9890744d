package lower

import (
	"sort"

	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/rhdlerr"
)

// kahnSchedule computes a topological order over gates, tie-broken by
// ascending gate id for determinism, per the design's scheduling algorithm.
// Any gate left with unresolved dependencies after Kahn's algorithm
// terminates is part of a combinational cycle.
func kahnSchedule(gates []ir.Gate) ([]int, error) {
	n := len(gates)
	producer := make(map[int]int, n)
	for i, g := range gates {
		producer[g.Output] = i
	}

	indegree := make([]int, n)
	dependents := make(map[int][]int, n)
	for i, g := range gates {
		seen := map[int]bool{}
		for _, in := range g.Inputs {
			if src, ok := producer[in]; ok && !seen[src] {
				seen[src] = true
				indegree[i]++
				dependents[src] = append(dependents[src], i)
			}
		}
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	schedule := make([]int, 0, n)
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		schedule = append(schedule, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				idx := sort.SearchInts(ready, dep)
				ready = append(ready, 0)
				copy(ready[idx+1:], ready[idx:])
				ready[idx] = dep
			}
		}
	}

	if len(schedule) != n {
		scheduled := make([]bool, n)
		for _, id := range schedule {
			scheduled[id] = true
		}
		var nets []int
		for i, g := range gates {
			if !scheduled[i] {
				nets = append(nets, g.Output)
			}
		}
		return nil, rhdlerr.CombinationalLoop{Nets: nets}
	}
	return schedule, nil
}

// computeLiveGates marks which gates (by index into gates) are reachable
// backward from the module's outputs, DFF inputs, and RAM write/address
// inputs. When preserveAll is set every gate is considered live, per the
// design's "MUST be disabled when the IR is used for debugging" rule.
func computeLiveGates(gates []ir.Gate, dffs []ir.DFF, rams []ir.RAMNode, outputs map[string][]int, preserveAll bool) map[int]bool {
	live := make(map[int]bool, len(gates))
	if preserveAll {
		for i := range gates {
			live[i] = true
		}
		return live
	}

	producer := make(map[int]int, len(gates))
	for i, g := range gates {
		producer[g.Output] = i
	}

	var roots []int
	for _, nets := range outputs {
		roots = append(roots, nets...)
	}
	for _, d := range dffs {
		roots = append(roots, d.D)
		if d.Rst != nil {
			roots = append(roots, *d.Rst)
		}
		if d.En != nil {
			roots = append(roots, *d.En)
		}
	}
	for _, r := range rams {
		roots = append(roots, r.Addr...)
		roots = append(roots, r.Din...)
		roots = append(roots, r.We)
	}

	visited := make(map[int]bool, len(gates))
	var visit func(net int)
	visit = func(net int) {
		if visited[net] {
			return
		}
		visited[net] = true
		gi, ok := producer[net]
		if !ok || live[gi] {
			return
		}
		live[gi] = true
		for _, in := range gates[gi].Inputs {
			visit(in)
		}
	}
	for _, n := range roots {
		visit(n)
	}
	return live
}
