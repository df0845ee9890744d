package backend

import (
	"crypto/sha256"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jmchacon/rhdl/ir"
	"github.com/jmchacon/rhdl/simcompile"
)

// compileCache is the content-addressed cache of compiled simcompile
// Programs described in the design's backend-dispatch section: keyed by
// the IR's content hash (so two Modules built from identical IR share a
// compiled Program even across separate lower.Lower calls), bounded by a
// budget on the summed Program.Size (compiled gate count, a rough proxy for
// memory) rather than a bare entry count, and safe for
// concurrent Engine construction.
type compileCache struct {
	mu     sync.Mutex
	lru    *lru.Cache[[32]byte, *simcompile.Program]
	budget int64
	used   int64
}

// newCompileCache builds a cache with a soft budget in Program.Size units.
// The underlying LRU is sized generously (1024 entries) since eviction is
// actually driven by the budget check in get, not the LRU's own capacity.
func newCompileCache(budgetBytes int64) *compileCache {
	l, _ := lru.New[[32]byte, *simcompile.Program](1024)
	return &compileCache{lru: l, budget: budgetBytes}
}

func irKey(mod *ir.Module) ([32]byte, error) {
	data, err := mod.ToJSON()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// get returns a cached compile-backend engine bound to mod, compiling and
// inserting a new Program on a miss. Entries are evicted oldest-first once
// the summed Program.Size (one unit per compiled gate) exceeds the budget.
func (c *compileCache) get(mod *ir.Module, lanes int) (rawEngine, error) {
	key, err := irKey(mod)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	program, ok := c.lru.Get(key)
	if !ok {
		program = simcompile.Compile(mod)
		c.lru.Add(key, program)
		c.used += program.Size()
		for c.used > c.budget {
			_, p, evicted := c.lru.RemoveOldest()
			if !evicted {
				break
			}
			c.used -= p.Size()
		}
	}
	c.mu.Unlock()

	return simcompile.NewFromProgram(mod, program, lanes)
}

func (c *compileCache) stats() (entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.used
}
